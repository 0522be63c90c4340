// Package geocoding resolves event coordinates to display addresses.
package geocoding

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/witw-events/server/internal/geocoding/nominatim"
	"github.com/witw-events/server/internal/metrics"
)

// Addresses stored when a lookup does not produce one.
const (
	FallbackAPIError = "address unavailable due to API error"
	FallbackNotFound = "address not found"
)

// ReverseGeocoder is the subset of the Nominatim client the resolver needs.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (*nominatim.ReverseResult, error)
}

// DefaultLookupTimeout bounds a whole lookup, including the wait for a rate
// limiter slot.
const DefaultLookupTimeout = nominatim.DefaultConnectTimeout + nominatim.DefaultReadTimeout

// Resolver turns coordinates into an address string. Lookup failures never
// reach the caller; they are logged and replaced by a fallback string.
type Resolver struct {
	client  ReverseGeocoder
	logger  zerolog.Logger
	timeout time.Duration
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLookupTimeout sets the deadline applied to each Address call.
func WithLookupTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func NewResolver(client ReverseGeocoder, logger zerolog.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client:  client,
		logger:  logger.With().Str("component", "geocoding").Logger(),
		timeout: DefaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Address answers within the lookup timeout. Callers queued behind the rate
// limiter past the deadline get FallbackAPIError without waiting.
func (r *Resolver) Address(ctx context.Context, latitude, longitude float64) string {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	result, err := r.client.Reverse(ctx, latitude, longitude)
	metrics.GeocodingNominatimLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.GeocodingRequestsTotal.WithLabelValues("error").Inc()
		r.logger.Warn().Err(err).
			Float64("latitude", latitude).
			Float64("longitude", longitude).
			Msg("reverse geocoding failed")
		return FallbackAPIError
	}

	address := ""
	if result != nil {
		address = strings.TrimSpace(result.DisplayName)
	}
	if address == "" {
		metrics.GeocodingRequestsTotal.WithLabelValues("not_found").Inc()
		return FallbackNotFound
	}

	metrics.GeocodingRequestsTotal.WithLabelValues("success").Inc()
	return address
}

// StaticResolver returns the same address for every lookup. It backs the
// server when geocoding is disabled.
type StaticResolver string

func (s StaticResolver) Address(context.Context, float64, float64) string {
	return string(s)
}
