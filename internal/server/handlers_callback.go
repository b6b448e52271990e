package server

import (
	"net/http"

	"github.com/maxaizer/job-intake/internal/domain/models"
	"github.com/maxaizer/job-intake/internal/services"
	"github.com/pkg/errors"
)

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get(SharedSecretHeader)

	var payload services.CallbackPayload
	if err := decodeJSON(r, &payload); err != nil {
		if !s.callbacks.Authorized(secret) {
			writeDomainError(w, r, models.ErrUnauthorized)
			return
		}
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", "callback body must be a JSON object")
		return
	}

	job, err := s.callbacks.Ingest(r.Context(), payload, secret)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			writeDomainError(w, r, err)
			return
		}
		writeError(w, r, http.StatusInternalServerError, models.ErrorCode(err), "failed to store job result")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "job": job})
}
