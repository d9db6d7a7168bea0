package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// busyPolicy bounds how long a write waits on another process holding the
// SQLite write lock. busy_timeout covers most contention; this handles the
// cases where SQLite gives up immediately, such as WAL upgrades.
type busyPolicy struct {
	attempts int
	backoff  time.Duration
}

var defaultBusyPolicy = busyPolicy{attempts: 4, backoff: 25 * time.Millisecond}

// run calls fn until it succeeds, fails with a non-busy error, or the
// attempts run out. The backoff doubles after each busy failure.
func (p busyPolicy) run(ctx context.Context, fn func(attempt int) error) error {
	wait := p.backoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(attempt)
		if !isBusy(err) || attempt >= p.attempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
}

// exec runs a single write statement under the busy policy.
func (db *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var result sql.Result
	err := defaultBusyPolicy.run(ctx, func(attempt int) error {
		var err error
		result, err = db.ExecContext(ctx, query, args...)
		if isBusy(err) {
			db.logger.Debug().Err(err).Int("attempt", attempt).Msg("database busy, retrying write")
		}
		return err
	})
	return result, err
}

// WriteTx runs fn in a transaction under the busy policy. fn may run more
// than once and must not keep side effects outside tx.
func (db *DB) WriteTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return defaultBusyPolicy.run(ctx, func(int) error {
		return db.Transaction(ctx, fn)
	})
}

func isBusy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database is busy") ||
		strings.Contains(msg, "sqlite_busy")
}
