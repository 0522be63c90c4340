package handlers

import (
	"errors"
	"net/http"

	"github.com/witw-events/server/internal/api/problem"
	"github.com/witw-events/server/internal/audit"
	"github.com/witw-events/server/internal/auth"
	"github.com/witw-events/server/internal/metrics"
	"github.com/witw-events/server/internal/validation"
)

type AuthHandler struct {
	Authenticator *auth.Authenticator
	Audit         *audit.Logger
	Env           string
}

func NewAuthHandler(authenticator *auth.Authenticator, auditLogger *audit.Logger, env string) *AuthHandler {
	return &AuthHandler{Authenticator: authenticator, Audit: auditLogger, Env: env}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Login handles POST /auth/login. Every credential failure gets the same 403
// so callers cannot probe which usernames exist.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, h.Env, &req) {
		return
	}

	session, err := h.Authenticator.Login(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrInvalidCredentials):
		metrics.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
		h.Audit.LogRequest(r, audit.ActionLogin, req.Username, "", audit.StatusFailure, "invalid_credentials")
		problem.Forbidden(w, r)
		return
	default:
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		h.Audit.LogRequest(r, audit.ActionLogin, req.Username, "", audit.StatusFailure, "error")
		writeServerError(w, r, h.Env, err)
		return
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	h.Audit.LogRequest(r, audit.ActionLogin, session.Subject, "", audit.StatusSuccess, "")
	writeJSON(w, http.StatusOK, tokenResponse{Token: session.Token})
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input auth.RegisterInput
	if !decodeJSON(w, r, h.Env, &input) {
		return
	}

	session, err := h.Authenticator.Register(r.Context(), input)
	if err != nil {
		var verr validation.Error
		switch {
		case errors.As(err, &verr):
			metrics.Registrations.WithLabelValues("invalid").Inc()
			writeValidation(w, r, h.Env, verr)
		case errors.Is(err, auth.ErrDuplicateUsername):
			metrics.Registrations.WithLabelValues("duplicate").Inc()
			h.Audit.LogRequest(r, audit.ActionRegister, input.Username, "", audit.StatusFailure, "duplicate_username")
			problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Conflict", err, h.Env,
				problem.WithDetail(auth.ErrDuplicateUsername.Error()))
		default:
			metrics.Registrations.WithLabelValues("error").Inc()
			writeServerError(w, r, h.Env, err)
		}
		return
	}

	metrics.Registrations.WithLabelValues("success").Inc()
	h.Audit.LogRequest(r, audit.ActionRegister, session.Subject, "", audit.StatusSuccess, "")
	writeJSON(w, http.StatusOK, tokenResponse{Token: session.Token})
}
