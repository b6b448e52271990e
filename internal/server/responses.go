package server

import (
	"encoding/json"
	"net/http"

	"github.com/maxaizer/job-intake/internal/domain/models"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type apiError struct {
	Success bool `json:"success"`
	Error   struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId,omitempty"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var e apiError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	writeJSON(w, status, e)
}

// writeDomainError maps a domain error to its status code and stable error code.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, httpStatus(err), models.ErrorCode(err), err.Error())
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidUnitCount):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInsufficientCredits):
		return http.StatusPaymentRequired
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrUpstreamUnavailable), errors.Is(err, models.ErrUpstreamMalformed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	decoder.UseNumber()
	return decoder.Decode(dst)
}
