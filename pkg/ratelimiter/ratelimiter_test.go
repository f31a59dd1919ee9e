package ratelimiter_test

import (
	"context"
	"testing"
	"time"

	"freelaw.courtlistener.cl-update-index/pkg/ratelimiter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnlimited(t *testing.T) {
	limiter := ratelimiter.NewRateLimiter(ratelimiter.RateLimit{})
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, limiter.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestBurstDefaultsToOne(t *testing.T) {
	limiter := ratelimiter.NewRateLimiter(ratelimiter.RateLimit{Limit: 5})
	assert.Equal(t, 1, limiter.Burst())
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())
}
