package server

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/maxaizer/job-intake/internal/domain/models"
	"github.com/maxaizer/job-intake/internal/services"
)

type deductRequest struct {
	UserID      any     `json:"userId" validate:"required"`
	JobCount    any     `json:"jobCount"`
	SessionID   *string `json:"sessionId"`
	RunID       *string `json:"runId"`
	SessionName *string `json:"sessionName"`
}

type deductFailure struct {
	services.ChargeResult
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *Server) handleDeduct(w http.ResponseWriter, r *http.Request) {
	var req deductRequest
	if !s.decodeValid(w, r, &req) {
		return
	}

	result, err := s.ledger.ChargeRun(r.Context(), services.ChargeRequest{
		UserID:      req.UserID,
		UnitCount:   unitCount(req.JobCount),
		SessionID:   req.SessionID,
		RunID:       req.RunID,
		SessionName: req.SessionName,
	})
	if err != nil {
		failure := deductFailure{ChargeResult: result}
		failure.Error.Code = models.ErrorCode(err)
		failure.Error.Message = result.Message
		writeJSON(w, httpStatus(err), failure)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCheckCredits(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")

	balance, err := s.ledger.GetBalance(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

// unitCount accepts integral numbers and numeric strings. Anything else becomes 0, which the ledger
// rejects as an invalid unit count.
func unitCount(raw any) int {
	var f float64
	switch v := raw.(type) {
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		f = parsed
	case float64:
		f = v
	case int:
		f = float64(v)
	default:
		return 0
	}

	if math.IsNaN(f) || f != math.Trunc(f) || f <= 0 || f > math.MaxInt32 {
		return 0
	}
	return int(f)
}
