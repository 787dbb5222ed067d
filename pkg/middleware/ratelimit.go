package middleware

import (
	"net/http"
	"time"

	"clinic-booking/pkg/utils"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter hands out one token bucket per caller. Buckets of idle callers
// expire from the cache.
type RateLimiter struct {
	limiters *cache.Cache
	rps      rate.Limit
	burst    int
	log      *zap.Logger
}

// NewRateLimiter builds a limiter from config. A non-positive RPS disables
// limiting.
func NewRateLimiter(config utils.RateLimitConfig, log *zap.Logger) *RateLimiter {
	limit := rate.Limit(config.RPS)
	if config.RPS <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{
		limiters: cache.New(10*time.Minute, 15*time.Minute),
		rps:      limit,
		burst:    config.Burst,
		log:      log.With(zap.String("middleware", "rate_limit")),
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	if l, ok := rl.limiters.Get(key); ok {
		return l.(*rate.Limiter)
	}
	l := rate.NewLimiter(rl.rps, rl.burst)
	// Add fails when a concurrent request created the bucket first
	if err := rl.limiters.Add(key, l, cache.DefaultExpiration); err != nil {
		if existing, ok := rl.limiters.Get(key); ok {
			return existing.(*rate.Limiter)
		}
	}
	return l
}

// Limit keys authenticated callers by user and everyone else by client IP.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + clientIP(r)
		if userID, ok := utils.GetUserIDFromContext(r.Context()); ok {
			key = "user:" + userID.String()
		}

		l := rl.limiter(key)
		if !l.Allow() {
			rl.log.Warn("Rate limit exceeded", zap.String("key", key), zap.String("path", r.URL.Path))
			utils.ResponseTooManyRequests(w, "Rate limit exceeded. Try again later.")
			return
		}

		// Refresh the expiry of active callers
		rl.limiters.SetDefault(key, l)
		next.ServeHTTP(w, r)
	})
}
