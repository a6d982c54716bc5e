package utilities

import (
	"context"
	"time"
)

// RetryWithBackoff retries fn until it succeeds, maxRetry attempts are
// exhausted or ctx is done. The backoff doubles each time, up to maxBackoff.
// It returns the last error fn produced, or ctx.Err() when cancelled while
// waiting.
func RetryWithBackoff(ctx context.Context, fn func() error, maxRetry int, startBackoff, maxBackoff time.Duration) error {
	if maxRetry <= 0 {
		maxRetry = 1
	}
	backoff := startBackoff
	var err error
	for attempt := 0; attempt < maxRetry; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == maxRetry-1 {
			break
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if backoff < maxBackoff {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
	return err
}
