package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rtdacademy/assessments/internal/assessment"
	"github.com/rtdacademy/assessments/internal/dispatch"
	"github.com/rtdacademy/assessments/internal/docstore"
)

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	var (
		cfg   *assessment.ConfigurationError
		op    *assessment.InvalidOperationError
		ex    *assessment.AttemptsExceededError
		nf    *assessment.NotFoundError
		req   *dispatch.RequestError
		long  *dispatch.TooLongError
		empty *assessment.EmptyPoolError
	)
	switch {
	case errors.As(err, &req), errors.As(err, &op):
		return http.StatusBadRequest
	case errors.As(err, &cfg), errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &ex), errors.Is(err, docstore.ErrConflict):
		return http.StatusConflict
	case errors.As(err, &long):
		return http.StatusUnprocessableEntity
	case errors.As(err, &empty):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error) string {
	var (
		req  *dispatch.RequestError
		long *dispatch.TooLongError
	)
	switch {
	case errors.As(err, &req), errors.As(err, &long):
		return err.Error()
	case errors.Is(err, docstore.ErrConflict):
		return "This assessment was updated by another request. Please try again."
	default:
		return assessment.UserMessage(err)
	}
}

// writeError maps err onto a status code and a student safe message.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status >= 500 {
		logger.Error("request failed", "status", status, "err", err)
	} else {
		logger.Debug("request rejected", "status", status, "err", err)
	}
	writeJSON(w, status, errorBody{Error: messageFor(err)})
}
