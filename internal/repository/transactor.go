package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riteshkumar/peer-transfers/internal/errors"
)

// Transactor runs fn inside one database transaction. The transaction
// commits only when fn returns nil; any error or panic rolls it back.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error
}

type PostgresTransactor struct {
	db *sql.DB
}

func NewTransactor(db *sql.DB) *PostgresTransactor {
	return &PostgresTransactor{db: db}
}

// WithinTransaction uses READ COMMITTED. Callers take row locks with
// SELECT ... FOR UPDATE, so a waiter re-reads the committed row instead of
// failing with a serialization error.
func (t *PostgresTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) (err error) {
	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return errors.NewTransactionError("begin", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.NewTransactionError("commit", err)
	}
	return nil
}
