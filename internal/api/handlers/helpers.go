package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/witw-events/server/internal/api/problem"
	"github.com/witw-events/server/internal/validation"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields and
// trailing data. It writes the problem response itself and reports false on
// failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, env string, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err == nil && dec.Decode(&struct{}{}) != io.EOF {
		err = errors.New("body must contain a single JSON object")
	}
	if err == nil {
		return true
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypeTooLarge, "Payload too large",
			fmt.Errorf("body exceeds %d bytes", maxErr.Limit), env)
		return false
	}
	if errors.Is(err, io.EOF) {
		err = errors.New("request body is empty")
	}
	problem.Write(w, r, http.StatusBadRequest, problem.TypeInvalidJSON, "Invalid request body", err, env)
	return false
}

// writeValidation answers 400 naming the offending field.
func writeValidation(w http.ResponseWriter, r *http.Request, env string, verr validation.Error) {
	problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", verr, env,
		problem.WithDetail(verr.Error()),
		problem.WithFieldError(verr.Field, verr.Message))
}

func writeServerError(w http.ResponseWriter, r *http.Request, env string, err error) {
	problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, env)
}
