package core

import (
	"context"
	"database/sql"
	"fmt"
)

// Tx represents a database transaction. It implements the Executor interface
// and hands out queries and loaders bound to the transaction.
type Tx struct {
	db    *DB
	sqlTx *sql.Tx
}

// Query starts a query for the given entity kind within the transaction.
func (tx *Tx) Query(kind string) *Query {
	return newQuery(tx.db, tx, kind)
}

// Loader returns a relation loader bound to the transaction.
func (tx *Tx) Loader() *Loader {
	return &Loader{db: tx.db, executor: tx, strict: tx.db.strict}
}

// Migrator returns a schema migrator bound to the transaction.
func (tx *Tx) Migrator() *Migrator {
	return &Migrator{db: tx.db, executor: tx}
}

// Commit commits the transaction.
func (tx *Tx) Commit() error {
	if err := tx.sqlTx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

// Rollback rolls back the transaction.
func (tx *Tx) Rollback() error {
	if err := tx.sqlTx.Rollback(); err != nil {
		return fmt.Errorf("transaction rollback failed: %w", err)
	}
	return nil
}

// QueryContext executes a query that returns rows, typically a SELECT.
func (tx *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := tx.sqlTx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("transaction query failed: %w", err)
	}
	return rows, nil
}

// QueryRowContext executes a query that is expected to return at most one row.
func (tx *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return tx.sqlTx.QueryRowContext(ctx, query, args...)
}

// ExecContext executes a query that doesn't return rows, such as an INSERT or UPDATE.
func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := tx.sqlTx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("transaction exec failed: %w", err)
	}
	return res, nil
}
