package middleware

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/witw-events/server/internal/api/problem"
	"github.com/witw-events/server/internal/config"
	"golang.org/x/time/rate"
)

type RateLimitTier string

const (
	// TierAuth covers login and registration, the password-guessing surface.
	TierAuth RateLimitTier = "auth"
	TierAPI  RateLimitTier = "api"
)

const (
	limiterIdleTTL      = 15 * time.Minute
	limiterSweepPeriod  = 5 * time.Minute
	retryAfterFloorSecs = 1
)

// RateLimiter keeps one token bucket per tier and client address.
type RateLimiter struct {
	perMinute map[RateLimitTier]int
	trusted   []netip.Prefix
	now       func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter builds a limiter whose idle buckets are swept until ctx is
// done. Unparseable trusted proxy CIDRs are ignored.
func NewRateLimiter(ctx context.Context, cfg config.RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		perMinute: map[RateLimitTier]int{
			TierAuth: cfg.AuthPerMinute,
			TierAPI:  cfg.APIPerMinute,
		},
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	for _, cidr := range cfg.TrustedProxyCIDRs {
		if prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr)); err == nil {
			rl.trusted = append(rl.trusted, prefix)
		}
	}
	go rl.sweepLoop(ctx)
	return rl
}

// Limit returns middleware enforcing the tier's per-minute budget. A tier
// configured with 0 is not limited.
func (rl *RateLimiter) Limit(tier RateLimitTier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := rl.limiter(tier, rl.clientKey(r))
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			reservation := limiter.ReserveN(rl.now(), 1)
			if delay := reservation.DelayFrom(rl.now()); delay > 0 {
				reservation.CancelAt(rl.now())
				secs := int(delay.Round(time.Second) / time.Second)
				if secs < retryAfterFloorSecs {
					secs = retryAfterFloorSecs
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				problem.WriteProblem(w, problem.ProblemDetails{
					Type:     problem.TypeRateLimited,
					Title:    "Too many requests",
					Status:   http.StatusTooManyRequests,
					Instance: r.URL.Path,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) limiter(tier RateLimitTier, key string) *rate.Limiter {
	perMinute := rl.perMinute[tier]
	if perMinute <= 0 {
		return nil
	}
	lookup := string(tier) + ":" + key

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if b, ok := rl.buckets[lookup]; ok {
		b.lastSeen = now
		return b.limiter
	}
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	rl.buckets[lookup] = &bucket{limiter: limiter, lastSeen: now}
	return limiter
}

func (rl *RateLimiter) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-ctx.Done():
			return
		}
	}
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-limiterIdleTTL)
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// clientKey is the connection address. When the connection comes from a
// trusted proxy it is the rightmost X-Forwarded-For hop that is not itself a
// trusted proxy; hops to its left are client supplied.
func (rl *RateLimiter) clientKey(r *http.Request) string {
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	if !rl.isTrustedProxy(remote) {
		return remote
	}
	if forwarded := r.Header.Values("X-Forwarded-For"); len(forwarded) > 0 {
		hops := strings.Split(strings.Join(forwarded, ","), ",")
		leftmost := ""
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !rl.isTrustedProxy(hop) {
				return hop
			}
			leftmost = hop
		}
		if leftmost != "" {
			return leftmost
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return remote
}

func (rl *RateLimiter) isTrustedProxy(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range rl.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
