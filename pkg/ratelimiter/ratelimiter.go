package ratelimiter

import (
	"golang.org/x/time/rate"
)

// RateLimit is the requests per second budget of a remote service. A zero Limit disables limiting.
type RateLimit struct {
	Limit float64 `json:"limit" yaml:"limit"`
	Burst int     `json:"burst" yaml:"burst"`
}

// NewRateLimiter creates a token bucket limiter for the given budget
func NewRateLimiter(rl RateLimit) *rate.Limiter {
	if rl.Limit <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := rl.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rl.Limit), burst)
}
