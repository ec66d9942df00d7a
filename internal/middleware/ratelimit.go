package middleware

import (
	"errors"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	apperrors "github.com/jwalitptl/postop-monitor/pkg/errors"
	"github.com/jwalitptl/postop-monitor/pkg/httputil"
)

var errRateLimited = errors.New("rate limit exceeded")

type RateLimiterConfig struct {
	Rate  rate.Limit
	Burst int
	// Idle clients are forgotten after this long
	IdleTTL time.Duration
}

// RateLimiter applies a token bucket per client IP
type RateLimiter struct {
	mu       sync.Mutex
	config   RateLimiterConfig
	limiters *cache.Cache
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	return &RateLimiter{
		config:   config,
		limiters: cache.New(config.IdleTTL, 2*config.IdleTTL),
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, ok := rl.limiters.Get(key); ok {
		l := v.(*rate.Limiter)
		rl.limiters.SetDefault(key, l)
		return l
	}
	l := rate.NewLimiter(rl.config.Rate, rl.config.Burst)
	rl.limiters.SetDefault(key, l)
	return l
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiter(c.ClientIP()).Allow() {
			c.Header("Retry-After", "1")
			httputil.RespondWithError(c, &apperrors.AppError{
				Kind:    apperrors.KindTooManyRequests,
				Message: errRateLimited.Error(),
				Err:     errRateLimited,
			})
			return
		}
		c.Next()
	}
}
