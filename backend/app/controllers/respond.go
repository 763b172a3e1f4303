package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"taskrelay/backend/app/dto"
	"taskrelay/backend/app/services"
	"taskrelay/backend/app/session"
	"taskrelay/backend/app/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrAgentNotFound),
		errors.Is(err, session.ErrCommandNotFound),
		errors.Is(err, storage.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidState),
		errors.Is(err, services.ErrUserExists):
		return http.StatusConflict
	case session.IsValidation(err),
		errors.Is(err, storage.ErrInvalidName),
		errors.Is(err, services.ErrInvalidRole):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, session.ErrAllocationExhausted):
		return http.StatusServiceUnavailable
	case errors.Is(err, storage.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeError(w, status, msg)
}

func pathInt(r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(r.PathValue(name))
	return v, err == nil
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
