package alertsapi

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/BearBump/DelayWatch/internal/logger"
	"github.com/BearBump/DelayWatch/internal/services/board"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, board.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, board.ErrNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, board.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Get().Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}
