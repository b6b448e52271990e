package server

import (
	"net/http"

	"github.com/maxaizer/job-intake/internal/progress"
)

type progressUpdateRequest struct {
	RunID    string `json:"runId" validate:"required"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
	Status   string `json:"status"`
}

type runErrorRequest struct {
	RunID   string `json:"runId" validate:"required"`
	Code    string `json:"code"`
	Message string `json:"message" validate:"required"`
}

type jobErrorRequest struct {
	JobID   string `json:"jobId" validate:"required"`
	Code    string `json:"code"`
	Message string `json:"message" validate:"required"`
}

func (s *Server) handleProgressUpdate(w http.ResponseWriter, r *http.Request) {
	var req progressUpdateRequest
	if !s.decodeValid(w, r, &req) {
		return
	}

	status, err := progress.ParseStatus(req.Status)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", "status must be running, completed or error")
		return
	}

	record := s.progress.SetProgress(req.RunID, req.Progress, req.Message, status)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "progress": record})
}

func (s *Server) handleRunErrorWrite(w http.ResponseWriter, r *http.Request) {
	var req runErrorRequest
	if !s.decodeValid(w, r, &req) {
		return
	}

	record := s.progress.SetRunError(req.RunID, req.Code, req.Message)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "error": record})
}

func (s *Server) handleJobErrorWrite(w http.ResponseWriter, r *http.Request) {
	var req jobErrorRequest
	if !s.decodeValid(w, r, &req) {
		return
	}

	record := s.progress.SetJobError(req.JobID, req.Code, req.Message)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "error": record})
}

func (s *Server) handleProgressRead(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.progress.GetProgress(r.PathValue("runId")))
}

func (s *Server) handleRunErrorRead(w http.ResponseWriter, r *http.Request) {
	record, _ := s.progress.GetRunError(r.PathValue("runId"))
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleJobErrorRead(w http.ResponseWriter, r *http.Request) {
	record, _ := s.progress.GetJobError(r.PathValue("jobId"))
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(r, dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", "request body must be a JSON object")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", err.Error())
		return false
	}
	return true
}
