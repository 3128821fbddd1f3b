package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GeneBoardAI/geneboard-mvp/pkg/fn"
)

var errBackend = errors.New("backend unavailable")

func failingCall(context.Context) error { return errBackend }
func okCall(context.Context) error      { return nil }

func TestBreakerStartsClosed(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 3, Timeout: time.Second})
	if got := b.State(); got != StateClosed {
		t.Fatalf("new breaker state = %v, want closed", got)
	}
}

func TestBreakerDefaults(t *testing.T) {
	b := NewBreaker(BreakerOpts{})
	if b.opts.FailThreshold != DefaultBreakerOpts.FailThreshold {
		t.Fatalf("FailThreshold = %d, want %d", b.opts.FailThreshold, DefaultBreakerOpts.FailThreshold)
	}
	if b.opts.Timeout != DefaultBreakerOpts.Timeout {
		t.Fatalf("Timeout = %v, want %v", b.opts.Timeout, DefaultBreakerOpts.Timeout)
	}
	if b.opts.HalfOpenMax != DefaultBreakerOpts.HalfOpenMax {
		t.Fatalf("HalfOpenMax = %d, want %d", b.opts.HalfOpenMax, DefaultBreakerOpts.HalfOpenMax)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(99):     "unknown",
	}
	for st, want := range cases {
		if got := st.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", st, got, want)
		}
	}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 3, Timeout: time.Second})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = b.Call(ctx, failingCall)
	}
	if got := b.State(); got != StateOpen {
		t.Fatalf("state after threshold = %v, want open", got)
	}

	err := b.Call(ctx, okCall)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("call while open: err = %v, want ErrCircuitOpen", err)
	}
}

func TestBreakerSuccessClearsFailures(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 3, Timeout: time.Second})
	ctx := context.Background()

	_ = b.Call(ctx, failingCall)
	_ = b.Call(ctx, failingCall)
	_ = b.Call(ctx, okCall)
	if got := b.State(); got != StateClosed {
		t.Fatalf("state after success = %v, want closed", got)
	}

	// The counter restarted, so two more failures must not trip it.
	_ = b.Call(ctx, failingCall)
	_ = b.Call(ctx, failingCall)
	if got := b.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed", got)
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	now := time.Now()
	b := NewBreaker(BreakerOpts{FailThreshold: 2, Timeout: 5 * time.Second, HalfOpenMax: 1})
	b.now = func() time.Time { return now }
	ctx := context.Background()

	_ = b.Call(ctx, failingCall)
	_ = b.Call(ctx, failingCall)
	if got := b.State(); got != StateOpen {
		t.Fatalf("state = %v, want open", got)
	}

	now = now.Add(6 * time.Second)
	if got := b.State(); got != StateHalfOpen {
		t.Fatalf("state after timeout = %v, want half-open", got)
	}

	_ = b.Call(ctx, okCall)
	if got := b.State(); got != StateClosed {
		t.Fatalf("state after probe success = %v, want closed", got)
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker(BreakerOpts{FailThreshold: 2, Timeout: 5 * time.Second, HalfOpenMax: 1})
	b.now = func() time.Time { return now }
	ctx := context.Background()

	_ = b.Call(ctx, failingCall)
	_ = b.Call(ctx, failingCall)

	now = now.Add(6 * time.Second)

	_ = b.Call(ctx, failingCall)
	if got := b.State(); got != StateOpen {
		t.Fatalf("state after probe failure = %v, want open", got)
	}
}

func TestCallResultTripsBreaker(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 2, Timeout: time.Second})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = CallResult(b, ctx, func(context.Context) fn.Result[string] {
			return fn.Err[string](errBackend)
		})
	}

	r := CallResult(b, ctx, func(context.Context) fn.Result[string] {
		return fn.Ok("should not run")
	})
	_, err := r.Unwrap()
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestBreakerStage(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 2, Timeout: time.Second})
	ctx := context.Background()

	stage := BreakerStage(b, func(ctx context.Context, in int) fn.Result[int] {
		return fn.Err[int](errBackend)
	})

	_ = stage(ctx, 1)
	_ = stage(ctx, 2)

	r := stage(ctx, 3)
	if r.IsOk() {
		t.Fatal("expected tripped breaker to reject the stage call")
	}
	_, err := r.Unwrap()
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}
