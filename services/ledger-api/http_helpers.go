package ledgerapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"deployledger/pkg/deployment"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

// statusFor maps ledger errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, deployment.ErrDeploymentNotFound), errors.Is(err, deployment.ErrUnsupportedNetwork):
		return http.StatusNotFound
	case errors.Is(err, deployment.ErrInvalidRecord), errors.Is(err, deployment.ErrInvalidPath):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
