// Package store implements SQLite persistence for users, items,
// reservations, rentals and the audit log.
//
// Every function takes a DBTX so it can run either directly against the
// database or inside a transaction opened with WithTx. Lookups return
// (nil, nil) when the row does not exist.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // dialect registration
	"github.com/jmoiron/sqlx"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dialect builds the dynamic list queries.
var dialect = goqu.Dialect("sqlite3")

// WithTx runs fn in a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// queryAll scans every row of query into a slice of T using db struct tags.
func queryAll[T any](ctx context.Context, db DBTX, query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	if err := sqlx.StructScan(rows, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// queryOne returns the first row of query, or nil if there is none.
func queryOne[T any](ctx context.Context, db DBTX, query string, args ...any) (*T, error) {
	out, err := queryAll[T](ctx, db, query, args...)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return &out[0], nil
}

// selectAll renders ds and scans its rows.
func selectAll[T any](ctx context.Context, db DBTX, ds *goqu.SelectDataset) ([]T, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	return queryAll[T](ctx, db, query, args...)
}

// Page bounds a list query. A zero Limit means no limit; Offset is only
// honored together with a Limit.
type Page struct {
	Limit  uint
	Offset uint
}

func (p Page) apply(ds *goqu.SelectDataset) *goqu.SelectDataset {
	if p.Limit == 0 {
		return ds
	}
	ds = ds.Limit(p.Limit)
	if p.Offset > 0 {
		ds = ds.Offset(p.Offset)
	}
	return ds
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n == 1, nil
}
