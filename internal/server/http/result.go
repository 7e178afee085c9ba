// Package httpapi exposes the portal REST API consumed by the SPA and CLI.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openmunicipal/civicportal/internal/errs"
	"github.com/openmunicipal/civicportal/internal/service"
)

// Result is the envelope every endpoint returns.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, Result{Success: true, Message: message, Data: data})
}

func fail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Result{Success: false, Message: message})
}

// failErr maps sentinel errors onto HTTP statuses and safe messages.
// Validation errors surface their field so the client can mark it inline.
func failErr(w http.ResponseWriter, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		fail(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, errs.ErrNotFound):
		fail(w, http.StatusNotFound, "not found")
	case errors.Is(err, errs.ErrUnauthorized):
		fail(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, errs.ErrForbidden):
		fail(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, errs.ErrRateLimited):
		fail(w, http.StatusTooManyRequests, "too many requests, try again later")
	case errors.Is(err, errs.ErrSessionExpired):
		fail(w, http.StatusGone, "verification session expired, request a new code")
	case errors.Is(err, errs.ErrCodeMismatch):
		fail(w, http.StatusBadRequest, "incorrect verification code")
	case errors.Is(err, errs.ErrTooManyAttempts):
		fail(w, http.StatusTooManyRequests, "too many incorrect codes, request a new one")
	case errors.Is(err, errs.ErrCaptchaMismatch):
		fail(w, http.StatusBadRequest, "captcha verification failed")
	case errors.Is(err, errs.ErrAlreadyExists):
		fail(w, http.StatusConflict, "already exists")
	default:
		fail(w, http.StatusInternalServerError, "internal error")
	}
}
