package audit

import (
	"context"
	"time"
)

// Poller waits for a crawl with a fixed interval and a fixed attempt budget.
// Each attempt sleeps once and then checks once.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
	// Sleep defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// SleepContext blocks for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait runs check until it reports ready or the budget is spent. It returns
// the number of checks made and whether the last one was ready. A failing
// check counts as not ready. notReady, when set, is called after every
// unready check with the 1-based attempt number.
func (p Poller) Wait(ctx context.Context, check func(context.Context) (bool, error),
	notReady func(attempt, max int, err error)) (int, bool, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := sleep(ctx, p.Interval); err != nil {
			return attempt - 1, false, err
		}
		ready, err := check(ctx)
		if err == nil && ready {
			return attempt, true, nil
		}
		if notReady != nil {
			notReady(attempt, p.MaxAttempts, err)
		}
	}
	return p.MaxAttempts, false, nil
}
