package conversation

import (
	"context"
	"time"
)

// RetryPolicy bounds how often an operation is attempted. Backoff is the
// fixed delay between attempts; zero retries immediately.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultPlacementPolicy is two attempts with no delay.
var DefaultPlacementPolicy = RetryPolicy{MaxAttempts: 2}

// Do calls fn until it succeeds or MaxAttempts is reached, returning the
// number of attempts made and the last error. attempt is 1-based.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	limit := p.MaxAttempts
	if limit < 1 {
		limit = 1
	}
	var err error
	for attempt := 1; attempt <= limit; attempt++ {
		if err = fn(ctx, attempt); err == nil {
			return attempt, nil
		}
		if attempt == limit {
			return attempt, err
		}
		if p.Backoff > 0 {
			timer := time.NewTimer(p.Backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return attempt, err
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return attempt, err
		}
	}
	return limit, err
}
