package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyDo(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name     string
		policy   RetryPolicy
		failures int
		attempts int
		wantErr  bool
	}{
		{name: "first try", policy: RetryPolicy{MaxAttempts: 2}, failures: 0, attempts: 1},
		{name: "fail then succeed", policy: RetryPolicy{MaxAttempts: 2}, failures: 1, attempts: 2},
		{name: "always fail", policy: RetryPolicy{MaxAttempts: 2}, failures: 5, attempts: 2, wantErr: true},
		{name: "zero means once", policy: RetryPolicy{}, failures: 5, attempts: 1, wantErr: true},
		{name: "backoff", policy: RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}, failures: 2, attempts: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			n, err := tt.policy.Do(context.Background(), func(_ context.Context, attempt int) error {
				calls++
				assert.Equal(t, calls, attempt)
				if calls <= tt.failures {
					return boom
				}
				return nil
			})
			assert.Equal(t, tt.attempts, n)
			assert.Equal(t, tt.attempts, calls)
			if tt.wantErr {
				assert.ErrorIs(t, err, boom)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetryPolicyStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	n, err := RetryPolicy{MaxAttempts: 5, Backoff: time.Hour}.Do(ctx, func(context.Context, int) error {
		calls++
		cancel()
		return errors.New("down")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, calls)
}
