package crawl

import (
	"context"
	"errors"
	"time"
)

// WaitUntil polls cond every interval until it returns true, timeout elapses or ctx is done.
// Errors from cond are treated as "not yet", the page may be mid-navigation. On timeout the
// returned error wraps the last condition error, if any.
func WaitUntil(ctx context.Context, interval, timeout time.Duration, cond func(ctx context.Context) (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		ok, err := cond(ctx)
		if err == nil && ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ctx.Err()
			}
			if lastErr != nil {
				return errors.Join(errWaitTimeout, lastErr)
			}
			return errWaitTimeout
		case <-ticker.C:
		}
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errWaitTimeout)
}
