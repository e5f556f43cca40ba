package engine

import (
	"context"
	"log/slog"
	"time"
)

// Sleeper blocks for a duration. Implementations must return early with
// ctx.Err() when the context is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// timerSleeper sleeps on a real timer.
type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Backoff bounds a poll: at most MaxAttempts waits of Interval each.
type Backoff struct {
	MaxAttempts int
	Interval    time.Duration
}

// Timings are the waits around state changes. The target applies state
// changes asynchronously, so the engine waits instead of observing
// completion.
type Timings struct {
	// StateChange follows every publish, unpublish, activate and deactivate.
	StateChange time.Duration

	// VerifySettle precedes verification of duplicate rules, workflows and SLAs.
	VerifySettle time.Duration

	// WorkflowPoll bounds the wait for a workflow to leave the active state
	// after its SLAs were deactivated.
	WorkflowPoll Backoff
}

// DefaultTimings returns the waits used against a live environment.
func DefaultTimings() Timings {
	return Timings{
		StateChange:  2 * time.Second,
		VerifySettle: 16 * time.Second,
		WorkflowPoll: Backoff{MaxAttempts: 3, Interval: 2 * time.Second},
	}
}

// Waiter implements best-effort waits. Running out of attempts is never an
// error; only cancellation is.
type Waiter struct {
	Sleeper Sleeper
}

// Settle waits d.
func (w Waiter) Settle(ctx context.Context, d time.Duration) error {
	return w.Sleeper.Sleep(ctx, d)
}

// Until calls done until it reports true, sleeping b.Interval between calls,
// at most b.MaxAttempts times. It returns whether done reported true.
func (w Waiter) Until(ctx context.Context, b Backoff, done func(context.Context) (bool, error)) (bool, error) {
	for attempt := 0; ; attempt++ {
		ok, err := done(ctx)
		if err != nil || ok {
			return ok, err
		}
		if attempt >= b.MaxAttempts {
			slog.Debug("wait gave up, proceeding", "attempts", attempt)
			return false, nil
		}
		if err := w.Sleeper.Sleep(ctx, b.Interval); err != nil {
			return false, err
		}
	}
}
