package worker

import (
	"context"
	"time"
)

// Clock abstracts time for the loop so tests can drive the throttle.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
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

// Remaining is the part of budget left after elapsed. An overrun leaves
// nothing; it is not carried into the next iteration.
func Remaining(elapsed, budget time.Duration) time.Duration {
	if elapsed >= budget {
		return 0
	}
	return budget - elapsed
}
