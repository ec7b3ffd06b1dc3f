// Package idempotency records which vendor delivery identifiers have already
// produced side effects so redelivered webhooks become no-ops.
package idempotency

import (
	"context"
	"errors"
)

// ErrDuplicate is returned by MarkProcessed when the request id was already recorded.
var ErrDuplicate = errors.New("idempotency: duplicate request")

// Guard is the contract every backend satisfies.
type Guard interface {
	// IsDuplicate reports whether requestID was recorded by an earlier delivery.
	IsDuplicate(ctx context.Context, requestID string) (bool, error)
	// MarkProcessed records requestID, returning ErrDuplicate when another
	// delivery already recorded it.
	MarkProcessed(ctx context.Context, requestID string) error
}

// Rememberer is implemented by guards that keep a fast-path copy of ids that
// were committed elsewhere (for example inside a store transaction).
type Rememberer interface {
	Remember(ctx context.Context, requestID string)
}
