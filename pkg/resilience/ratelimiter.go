package resilience

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/GeneBoardAI/geneboard-mvp/pkg/fn"
)

var ErrRateLimited = errors.New("rate limited")

// LimiterOpts sizes the token bucket.
type LimiterOpts struct {
	// Rate is tokens refilled per second. Zero or negative means unlimited.
	Rate float64
	// Burst is the bucket capacity. Zero or negative defaults to 1.
	Burst int
}

// Limiter throttles Neo4j and Qdrant exports. It is a thin wrapper over
// golang.org/x/time/rate keeping the Call and Stage helpers.
type Limiter struct {
	bucket *rate.Limiter
}

// NewLimiter builds a limiter from opts, applying the documented defaults.
func NewLimiter(opts LimiterOpts) *Limiter {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	limit := rate.Limit(opts.Rate)
	if opts.Rate <= 0 {
		limit = rate.Inf
	}
	return &Limiter{bucket: rate.NewLimiter(limit, opts.Burst)}
}

// Allow reports whether a token is available, consuming one if so.
func (l *Limiter) Allow() bool {
	return l.bucket.Allow()
}

// Wait blocks until a token is available or ctx ends.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.bucket.Wait(ctx)
}

// Call runs f if a token is available and returns ErrRateLimited otherwise.
func (l *Limiter) Call(ctx context.Context, f func(context.Context) error) error {
	if !l.Allow() {
		return ErrRateLimited
	}
	return f(ctx)
}

// CallWait blocks for a token, then runs f.
func (l *Limiter) CallWait(ctx context.Context, f func(context.Context) error) error {
	if err := l.Wait(ctx); err != nil {
		return err
	}
	return f(ctx)
}

// LimiterStage throttles a pipeline stage, failing fast when no token is
// available.
func LimiterStage[In, Out any](l *Limiter, stage fn.Stage[In, Out]) fn.Stage[In, Out] {
	return func(ctx context.Context, in In) fn.Result[Out] {
		if !l.Allow() {
			return fn.Err[Out](ErrRateLimited)
		}
		return stage(ctx, in)
	}
}

// LimiterStageWait throttles a pipeline stage, blocking for a token.
func LimiterStageWait[In, Out any](l *Limiter, stage fn.Stage[In, Out]) fn.Stage[In, Out] {
	return func(ctx context.Context, in In) fn.Result[Out] {
		if err := l.Wait(ctx); err != nil {
			return fn.Err[Out](err)
		}
		return stage(ctx, in)
	}
}
