package engine

import (
	"context"
	"database/sql"

	"github.com/rcliao/memex/internal/memexerr"
)

// withWriteTx runs fn inside a transaction on the single-writer pool,
// committing on success and rolling back on any error or panic. Writes are
// totally ordered per writer connection. Every mutating operation goes
// through here except the best-effort access bookkeeping flush, which
// writes on the writer pool directly.
func (e *Engine) withWriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.storage.Writer().BeginTx(ctx, nil)
	if err != nil {
		if ctx.Err() != nil {
			return memexerr.Wrap(memexerr.Timeout, "begin write transaction", err)
		}
		return memexerr.Wrap(memexerr.Busy, "begin write transaction", err)
	}

	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return memexerr.Wrap(memexerr.IO, "commit write transaction", err)
	}
	committed = true
	return nil
}
