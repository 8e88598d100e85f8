package host

import (
	"context"
	"time"
)

// Backoff bounds a polling wait: the interval starts at Initial, doubles up
// to Max, and the wait gives up after Timeout.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Timeout time.Duration
}

// DefaultBackoff is the clipboard polling schedule.
var DefaultBackoff = Backoff{
	Initial: time.Millisecond,
	Max:     20 * time.Millisecond,
	Timeout: 300 * time.Millisecond,
}

// WaitForChange polls cb until its change count differs from since. It
// returns the new count, ErrTimeout once b.Timeout elapses, or the context
// error.
func WaitForChange(ctx context.Context, cb Clipboard, since int64, b Backoff) (int64, error) {
	deadline := time.Now().Add(b.Timeout)
	interval := b.Initial
	if interval <= 0 {
		interval = time.Millisecond
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return since, err
		}
		n, err := cb.ChangeCount()
		if err != nil {
			return since, err
		}
		if n != since {
			return n, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return since, ErrTimeout
		}
		wait := interval
		if wait > remaining {
			wait = remaining
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return since, ctx.Err()
		case <-timer.C:
		}

		interval *= 2
		if b.Max > 0 && interval > b.Max {
			interval = b.Max
		}
	}
}
