package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medicore/medicore/internal/platform/auth"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
	}
}

// staleAfter is how long an idle client entry survives before eviction.
const staleAfter = 10 * time.Minute

// client is a token bucket for a single caller.
type client struct {
	tokens   float64
	lastSeen time.Time
}

// limiterStore maps caller keys to token buckets. Stale entries are evicted
// lazily during lookups so the map does not grow without bound.
type limiterStore struct {
	mu      sync.Mutex
	clients map[string]*client
	cfg     RateLimitConfig

	nextSweep time.Time
}

func newLimiterStore(cfg RateLimitConfig) *limiterStore {
	return &limiterStore{
		clients:   make(map[string]*client),
		cfg:       cfg,
		nextSweep: time.Now().Add(staleAfter),
	}
}

// take refills the caller's bucket for elapsed time and spends one token.
// It reports whether the request is allowed and, when denied, how many
// seconds until a token becomes available.
func (s *limiterStore) take(key string) (allowed bool, retryAfter int) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.After(s.nextSweep) {
		for k, cl := range s.clients {
			if now.Sub(cl.lastSeen) > staleAfter {
				delete(s.clients, k)
			}
		}
		s.nextSweep = now.Add(staleAfter)
	}

	cl, ok := s.clients[key]
	if !ok {
		cl = &client{tokens: float64(s.cfg.BurstSize), lastSeen: now}
		s.clients[key] = cl
	} else {
		cl.tokens += now.Sub(cl.lastSeen).Seconds() * s.cfg.RequestsPerSecond
		if cl.tokens > float64(s.cfg.BurstSize) {
			cl.tokens = float64(s.cfg.BurstSize)
		}
		cl.lastSeen = now
	}

	if cl.tokens >= 1 {
		cl.tokens--
		return true, 0
	}

	if s.cfg.RequestsPerSecond <= 0 {
		return false, 1
	}
	wait := (1 - cl.tokens) / s.cfg.RequestsPerSecond
	return false, int(math.Ceil(wait))
}

// RateLimit returns a per-caller rate limiting middleware. Authenticated
// requests are keyed by user ID so one noisy user cannot exhaust the budget
// of everyone behind the same NAT; anonymous requests fall back to client IP.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	store := newLimiterStore(cfg)
	limitHeader := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP()
			if uid := auth.UserIDFromContext(c.Request().Context()); uid != "" {
				key = uid
			}

			allowed, retryAfter := store.take(key)
			c.Response().Header().Set("X-RateLimit-Limit", limitHeader)
			if !allowed {
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}

			return next(c)
		}
	}
}
