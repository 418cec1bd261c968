package sensor

import (
	"context"
	"time"

	"github.com/yuwei/yunduanban-runner/pkg/logger"
)

// Retry defaults for sensing the next work item.
const (
	DefaultAttempts = 3
	DefaultDelay    = 500 * time.Millisecond
)

// RetryPolicy is a bounded, fixed-delay retry around a read that may
// come back empty.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
	// Wait sleeps between attempts; nil uses a timer. It returns an error
	// when ctx ends first.
	Wait func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns 3 attempts 500ms apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: DefaultAttempts, Delay: DefaultDelay}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultAttempts
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	if p.Wait == nil {
		p.Wait = sleep
	}
	return p
}

// ReadWithRetry calls read until it reports a value or the attempts run
// out. Absence after the last attempt is returned as absence; it is not
// an error.
func ReadWithRetry(ctx context.Context, p RetryPolicy, read func(ctx context.Context) (string, bool)) (string, bool) {
	p = p.withDefaults()
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if ctx.Err() != nil {
			return "", false
		}
		if v, ok := read(ctx); ok {
			return v, true
		}
		if attempt == p.Attempts {
			break
		}
		logger.Debug("read empty, retrying (%d/%d) after %v", attempt, p.Attempts, p.Delay)
		if err := p.Wait(ctx, p.Delay); err != nil {
			return "", false
		}
	}
	return "", false
}

func sleep(ctx context.Context, d time.Duration) error {
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
