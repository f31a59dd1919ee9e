package search

import (
	"context"
	"fmt"
	"time"

	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"freelaw.courtlistener.cl-update-index/pkg/ratelimiter"
	"freelaw.courtlistener.cl-update-index/pkg/types"
	"golang.org/x/time/rate"
)

// Retrier paces the requests made to one remote index and retries transient failures
type Retrier struct {
	Service string

	rateLimiter *rate.Limiter
	maxRetries  int
	delay       time.Duration
}

func NewRetrier(service string, config Config) *Retrier {
	return &Retrier{
		Service:     service,
		rateLimiter: ratelimiter.NewRateLimiter(config.RateLimit),
		maxRetries:  config.MaxRetries,
		delay:       config.RetryDelay(),
	}
}

// waitMyTurn() checks in with the rate limiter and waits if rate limit has been exceeded
func (r *Retrier) waitMyTurn(ctx context.Context) error {
	startWait := time.Now()
	if err := r.rateLimiter.Wait(ctx); err != nil {
		return err
	}
	if waited := time.Since(startWait); waited > time.Millisecond {
		log.Debugf("rate limited for %f seconds", waited.Seconds())
	}
	return nil
}

// Do calls fn until it succeeds, fails with a permanent error or runs out of retries.
// fn reports whether its failure is transient (network errors, 503s). Exhausted retries
// are wrapped with types.ErrIndexUnavailable.
func (r *Retrier) Do(ctx context.Context, op string, fn func() (transient bool, err error)) error {
	retry := 0
	for {
		if err := r.waitMyTurn(ctx); err != nil {
			return err
		}
		transient, err := fn()
		if err == nil || !transient {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		retry++
		if retry > r.maxRetries {
			return fmt.Errorf("%s %s: retry [%d] exceeded max retries [%d]: %w: %v",
				r.Service, op, retry, r.maxRetries, types.ErrIndexUnavailable, err)
		}
		log.Warnf("%s %s failed (%v), retrying in %v", r.Service, op, err, r.delay)
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
