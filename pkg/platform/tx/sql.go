package tx

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dErrors "landledger/pkg/domain-errors"
)

// SQLRunner wraps each unit of work in a database transaction. Row locks
// (SELECT ... FOR UPDATE) taken by stores provide the per-aggregate
// serialisation, so the key is only used for diagnostics.
type SQLRunner struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQLRunner(db *sql.DB, timeout time.Duration) *SQLRunner {
	return &SQLRunner{db: db, timeout: timeout}
}

func (r *SQLRunner) RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	ctx, cancel := withDefaultTimeout(ctx, r.timeout)
	defer cancel()

	sqlTx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx for %s: %w", key, err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	j := &journal{}
	if err := fn(context.WithValue(WithTx(ctx, sqlTx), journalKey, j)); err != nil {
		j.rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		j.rollback()
		return fmt.Errorf("commit tx for %s: %w", key, err)
	}
	j.committed()
	return nil
}
