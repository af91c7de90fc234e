package tx

import (
	"context"
	"database/sql"
	"time"

	dErrors "swasthya/pkg/domain-errors"
)

const defaultTxTimeout = 5 * time.Second

// Runner executes fn inside a transaction boundary. The transaction travels
// through the context (WithTx), so every tx-aware store touched by fn joins
// the same transaction without knowing about its peers.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLRunner runs fn in a database/sql transaction.
type SQLRunner struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "transaction aborted: context cancelled")
	}

	timeout := r.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = dbTx.Rollback()
	}()

	if err := fn(WithTx(ctx, dbTx)); err != nil {
		return err
	}

	return dbTx.Commit()
}

// PassthroughRunner satisfies Runner without a transaction. Used with the
// in-memory stores, whose conditional updates are already atomic under their
// own locks.
type PassthroughRunner struct{}

func (PassthroughRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
