package middleware

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/witw-events/server/internal/api/problem"
	"github.com/witw-events/server/internal/auth"
	"github.com/witw-events/server/internal/metrics"
)

// Authenticate runs the gate once per request. A fresh AuthResult is stored in
// the request context and the request logger gains a principal field; every
// other outcome leaves the context untouched and the request continues.
func Authenticate(gate *auth.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			outcome := gate.Evaluate(r)
			metrics.AuthGateOutcomes.WithLabelValues(string(outcome.State), outcome.Reason).Inc()

			ev := zerolog.Ctx(r.Context()).Debug().
				Str("gate_state", string(outcome.State)).
				Str("gate_reason", outcome.Reason).
				Str("path", r.URL.Path)
			if outcome.Err != nil {
				ev = ev.Err(outcome.Err)
			}
			ev.Msg("auth gate")

			if outcome.State == auth.StateAuthenticated && outcome.Reason == auth.ReasonAuthenticated {
				ctx := auth.WithAuthResult(r.Context(), outcome.Result)
				logger := zerolog.Ctx(ctx).With().Str("principal", outcome.Result.Principal.Username).Logger()
				r = r.WithContext(logger.WithContext(ctx))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthenticated answers 403 with a generic problem document unless the
// gate established an AuthResult.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.FromContext(r.Context()); !ok {
			problem.Forbidden(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
