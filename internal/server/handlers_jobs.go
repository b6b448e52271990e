package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/maxaizer/job-intake/internal/domain/models"
	"github.com/maxaizer/job-intake/internal/services"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type intakeRequest struct {
	Prompt string `json:"prompt" validate:"required,max=2000"`
}

type intakeResponse struct {
	Success bool                `json:"success"`
	RunID   string              `json:"runId"`
	Status  string              `json:"status"`
	Charged int                 `json:"charged"`
	Jobs    []models.JobPosting `json:"jobs"`
}

func (s *Server) handleCreateJobs(w http.ResponseWriter, r *http.Request) {
	var req intakeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", "request body must be a JSON object")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", "prompt is required")
		return
	}

	// the run is queued under the canonical id, unknown users never reach the engine
	user, ok := s.sessionUser(w, r)
	if !ok {
		return
	}

	runID, err := s.dispatcher.Dispatch(r.Context(), user.ID, req.Prompt)
	if err != nil {
		if errors.Is(err, services.ErrEmptyPrompt) {
			writeError(w, r, http.StatusBadRequest, "InvalidRequest", err.Error())
			return
		}
		writeError(w, r, http.StatusInternalServerError, "QueueUnavailable", "failed to queue the search")
		return
	}

	waitCtx, cancel := context.WithTimeout(r.Context(), s.intakeWait)
	defer cancel()

	outcome, err := s.dispatcher.Await(waitCtx, runID)
	switch {
	case err != nil && r.Context().Err() != nil:
		log.Infof("client left before run %s finished", runID)
		return
	case err != nil:
		writeJSON(w, http.StatusAccepted, intakeResponse{Success: true, RunID: runID, Status: "running", Jobs: []models.JobPosting{}})
		return
	case outcome.Err != nil:
		code := outcome.Code
		if code == "" {
			code = models.ErrorCode(outcome.Err)
		}
		writeError(w, r, http.StatusInternalServerError, code, outcome.Err.Error())
		return
	}

	jobs := outcome.Postings
	if jobs == nil {
		jobs = []models.JobPosting{}
	}
	writeJSON(w, http.StatusCreated, intakeResponse{
		Success: true,
		RunID:   runID,
		Status:  "completed",
		Charged: outcome.Charged,
		Jobs:    jobs,
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	user, ok := s.sessionUser(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", defaultPageSize)
	limit = max(1, min(limit, maxPageSize))
	offset := max(0, queryInt(r, "offset", 0))

	jobs, err := s.postings.GetByUser(r.Context(), user.ID, limit, offset)
	if err != nil {
		writeDomainError(w, r, errors.Wrap(models.ErrPersistence, err.Error()))
		return
	}
	if jobs == nil {
		jobs = []models.JobPosting{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "jobs": jobs})
}

func (s *Server) handleMarkApplied(w http.ResponseWriter, r *http.Request) {
	user, ok := s.sessionUser(w, r)
	if !ok {
		return
	}

	jobUUID := r.PathValue("uuid")
	updated, err := s.postings.MarkApplied(r.Context(), user.ID, jobUUID)
	if err != nil {
		writeDomainError(w, r, errors.Wrap(models.ErrPersistence, err.Error()))
		return
	}
	if !updated {
		writeError(w, r, http.StatusNotFound, "JobNotFound", "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "uuid": jobUUID, "applied": true})
}

// sessionUser loads the user behind the session. It writes the error response when it fails.
func (s *Server) sessionUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	userID, _ := UserIDFrom(r.Context())
	key, err := s.resolveKey(userID)
	if err != nil {
		writeDomainError(w, r, models.ErrUserNotFound)
		return nil, false
	}

	user, err := s.users.FindByKey(r.Context(), key)
	if err != nil {
		writeDomainError(w, r, errors.Wrap(models.ErrPersistence, err.Error()))
		return nil, false
	}
	if user == nil {
		writeDomainError(w, r, models.ErrUserNotFound)
		return nil, false
	}
	return user, true
}

func queryInt(r *http.Request, name string, fallback int) int {
	value, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return fallback
	}
	return value
}
