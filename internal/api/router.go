package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/witw-events/server/internal/api/handlers"
	"github.com/witw-events/server/internal/api/middleware"
	"github.com/witw-events/server/internal/audit"
	"github.com/witw-events/server/internal/auth"
	"github.com/witw-events/server/internal/config"
	"github.com/witw-events/server/internal/domain/events"
	"github.com/witw-events/server/internal/metrics"
	"github.com/witw-events/server/internal/storage"
)

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	Config   config.Config
	Logger   zerolog.Logger
	Store    storage.Repository
	Codec    *auth.JWTManager
	Hasher   auth.PasswordHasher
	Geocoder events.AddressResolver
	Build    BuildInfo
}

// NewRouter assembles the middleware chain and routes. Background work owned
// by the router (rate limiter sweeps) stops when ctx is done.
//
// Chain, outermost first: correlation id, tracing, access log, security
// headers, CORS, authentication gate, metrics, mux. Metrics wraps the mux
// directly so it sees the matched route pattern.
func NewRouter(ctx context.Context, deps Dependencies) http.Handler {
	cfg := deps.Config
	logger := deps.Logger

	issuer := auth.NewTokenIssuer(deps.Codec, cfg.Auth.JWTExpiry)
	authenticator := auth.NewAuthenticator(deps.Store.Users(), deps.Hasher, issuer, logger)
	gate := auth.NewGate(deps.Codec, deps.Store.Users(), cfg.Auth.ExemptPaths)
	location, err := cfg.Events.Location()
	if err != nil {
		logger.Warn().Err(err).Msg("falling back to UTC for event schedules")
		location = time.UTC
	}
	eventService := events.NewService(deps.Store.Events(), deps.Geocoder, logger, events.WithLocation(location))
	auditLogger := audit.NewLogger(logger)

	authHandler := handlers.NewAuthHandler(authenticator, auditLogger, cfg.Environment)
	eventsHandler := handlers.NewEventsHandler(eventService, auditLogger, cfg.Environment)

	limiter := middleware.NewRateLimiter(ctx, cfg.RateLimit)
	authTier := limiter.Limit(middleware.TierAuth)
	apiTier := limiter.Limit(middleware.TierAPI)
	bodyLimit := middleware.RequestSize(cfg.Server.MaxBodyBytes)

	public := func(h http.HandlerFunc) http.Handler {
		return authTier(bodyLimit(h))
	}
	protected := func(h http.HandlerFunc) http.Handler {
		return apiTier(middleware.RequireAuthenticated(bodyLimit(h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /auth/register", public(authHandler.Register))
	mux.Handle("POST /auth/login", public(authHandler.Login))

	mux.Handle("POST /api/v1/demo", protected(handlers.Demo))
	mux.Handle("POST /api/v1/events", protected(eventsHandler.Create))
	mux.Handle("GET /api/v1/events", protected(eventsHandler.List))
	mux.Handle("GET /api/v1/events/search", protected(eventsHandler.Search))
	mux.Handle("GET /api/v1/events/cheap", protected(eventsHandler.Cheap))
	mux.Handle("GET /api/v1/events/upcoming", protected(eventsHandler.Upcoming))
	mux.Handle("GET /api/v1/events/{id}", protected(eventsHandler.Get))

	mux.Handle("GET /healthz", handlers.Healthz())
	mux.Handle("GET /readyz", handlers.Readyz(deps.Store))
	mux.Handle("GET /version", VersionHandler(deps.Build))
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	var h http.Handler = metrics.HTTPMiddleware(mux)
	h = middleware.Authenticate(gate)(h)
	h = middleware.CORS(cfg.CORS, logger)(h)
	h = middleware.SecurityHeaders(cfg.IsProduction())(h)
	h = middleware.RequestLogging(h)
	h = middleware.Tracing(h)
	h = middleware.CorrelationID(logger)(h)
	return h
}
