package storage

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres failure classes that resolve themselves once the competing
// transaction finishes. Re-running the whole unit is safe because InTx
// rolled everything back.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

func transientConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}

// WithRetry runs fn, re-running it up to maxRetries more times when it
// fails with a serialization or deadlock conflict. Delays between attempts
// double from baseDelay with random jitter added on top. Any other error,
// and context cancellation, end the loop at once.
func WithRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() error) error {
	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !transientConflict(err) || attempt == maxRetries {
			return err
		}
		jitter := time.Duration(rand.Int64N(int64(delay)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay + jitter):
		}
		delay *= 2
	}
}
