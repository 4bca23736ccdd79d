package postgres

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// ReminderLockKey is the advisory lock id shared by every reminder runner.
const ReminderLockKey int64 = 738291

// AdvisoryLocker holds a transaction-scoped advisory lock for the duration
// of a run. Ending the transaction releases the lock, so a crashed runner
// never leaves it held.
type AdvisoryLocker struct {
	db     DB
	key    int64
	logger *zerolog.Logger
}

func NewAdvisoryLocker(db DB, key int64, logger *zerolog.Logger) *AdvisoryLocker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &AdvisoryLocker{db: db, key: key, logger: logger}
}

func (l *AdvisoryLocker) TryLock(ctx context.Context) (func(), bool, error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("postgres: begin lock tx: %w", err)
	}

	var ok bool
	if err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock($1)`, l.key).Scan(&ok); err != nil {
		_ = tx.Rollback(ctx)
		return nil, false, fmt.Errorf("postgres: try advisory lock: %w", err)
	}
	if !ok {
		_ = tx.Rollback(ctx)
		return nil, false, nil
	}

	release := func() {
		if err := tx.Rollback(context.Background()); err != nil {
			l.logger.Warn().Err(err).Int64("key", l.key).Msg("advisory lock release failed")
		}
	}
	return release, true, nil
}
