package utils

import (
	"context"
	"time"
)

// StartPurger launches a background goroutine that periodically calls purge until ctx is
// cancelled. It is best-effort and logs failures.
func StartPurger(ctx context.Context, name string, interval time.Duration, purge func(context.Context) (int64, error)) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			n, err := purge(ctx)
			if err != nil {
				Sugar.Warnf("%s purge failed: %v", name, err)
				continue
			}
			if n > 0 {
				Sugar.Debugf("%s purged %d rows", name, n)
			}
		}
	}()
}
