package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	// DefaultRateLimit is the default rate limit per minute
	DefaultRateLimit = 6
	// DefaultBurstSize is the default burst size
	DefaultBurstSize = 3
	// LimiterTTL is how long an idle owner's bucket is kept
	LimiterTTL = 10 * time.Minute

	maxTrackedOwners = 10000
)

// RateLimiter holds one token bucket per owner. Buckets of idle owners expire.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  *expirable.LRU[int32, *rate.Limiter]
	perMinute int
	burst     int
}

// NewRateLimiter creates a new RateLimiter with default settings
func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWithConfig(DefaultRateLimit, DefaultBurstSize)
}

// NewRateLimiterWithConfig creates a RateLimiter with custom configuration
func NewRateLimiterWithConfig(requestsPerMinute int, burstSize int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRateLimit
	}
	if burstSize <= 0 {
		burstSize = DefaultBurstSize
	}
	return &RateLimiter{
		limiters:  expirable.NewLRU[int32, *rate.Limiter](maxTrackedOwners, nil, LimiterTTL),
		perMinute: requestsPerMinute,
		burst:     burstSize,
	}
}

func (r *RateLimiter) bucket(ownerID int32) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	lim, ok := r.limiters.Get(ownerID)
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(r.perMinute)), r.burst)
	}
	// re-adding pushes the expiry out while the owner stays active
	r.limiters.Add(ownerID, lim)
	return lim
}

// Allow checks if a request from the given owner is allowed
func (r *RateLimiter) Allow(ownerID int32) bool {
	return r.bucket(ownerID).Allow()
}

// RetryAfter reports how long the owner must wait for the next token
func (r *RateLimiter) RetryAfter(ownerID int32) time.Duration {
	lim := r.bucket(ownerID)
	missing := 1 - lim.Tokens()
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / float64(lim.Limit()) * float64(time.Second))
}

// Remaining returns the whole tokens left in the owner's bucket
func (r *RateLimiter) Remaining(ownerID int32) int {
	tokens := int(r.bucket(ownerID).Tokens())
	if tokens < 0 {
		return 0
	}
	return tokens
}

// RateLimitMiddleware returns an Echo middleware that limits each owner's requests.
// It must run after Authenticate; requests without an owner pass through.
func RateLimitMiddleware(rl *RateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ownerID := GetOwnerID(c)
			if ownerID == 0 {
				return next(c)
			}

			header := c.Response().Header()
			header.Set("X-RateLimit-Limit", strconv.Itoa(rl.perMinute))

			if !rl.Allow(ownerID) {
				retryAfter := int(rl.RetryAfter(ownerID).Round(time.Second).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				header.Set("X-RateLimit-Remaining", "0")
				header.Set("Retry-After", strconv.Itoa(retryAfter))

				log.Warn().
					Int32("owner_id", ownerID).
					Str("path", c.Path()).
					Int("retry_after", retryAfter).
					Msg("Rate limit exceeded")

				return tooManyRequestsError(c, "Too many requests. Please retry after "+strconv.Itoa(retryAfter)+" seconds.")
			}

			header.Set("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining(ownerID)))
			return next(c)
		}
	}
}
