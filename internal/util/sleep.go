package util

import (
	"context"
	"time"
)

// SleepFunc pauses for d or until ctx is done. Tests swap it for a simulated clock.
type SleepFunc func(ctx context.Context, d time.Duration) error

func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
