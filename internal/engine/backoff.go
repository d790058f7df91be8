package engine

import (
	"context"
	"time"
)

// Retry policy for provider calls. The original system never documented its
// backoff beyond "retries happen"; base 500ms doubling with two extra
// attempts is the chosen contract here.
const (
	retryBaseDelay     = 500 * time.Millisecond
	extraAttempts      = 2
	rateLimitMinWait   = time.Second
	defaultCallTimeout = 30 * time.Second
)

// sleep waits for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
