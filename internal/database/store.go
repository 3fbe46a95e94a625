// Package database owns the catalog's own store: the connection handle, the
// per-dialect query builder, transactions and the schema migration.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Options struct {
	MaxOpenConns int
}

// Store is the explicitly constructed store handle. The entry point opens it,
// hands it to the services and closes it on shutdown.
type Store struct {
	db      *sql.DB
	dialect Dialect
	qb      squirrel.StatementBuilderType
}

func Open(ctx context.Context, provider, url string, opts Options) (*Store, error) {
	dialect, err := ParseDialect(provider)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.DriverName(), dialect.NormalizeDSN(url))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", dialect, err)
	}

	switch dialect {
	case SQLite:
		// one writer; transactions serialize on the single connection
		db.SetMaxOpenConns(1)
		db.SetConnMaxIdleTime(0)
	default:
		maxOpen := opts.MaxOpenConns
		if maxOpen <= 0 {
			maxOpen = 10
		}
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen / 2)
		db.SetConnMaxLifetime(15 * time.Minute)
		db.SetConnMaxIdleTime(3 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", dialect, err)
	}

	return &Store{
		db:      db,
		dialect: dialect,
		qb:      squirrel.StatementBuilder.PlaceholderFormat(dialect.Placeholder()),
	}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Builder returns a squirrel statement builder with the dialect's placeholders.
func (s *Store) Builder() squirrel.StatementBuilderType {
	return s.qb
}

// WithTx runs fn inside a transaction, committing when fn returns nil and
// rolling back on error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Exec builds and runs a squirrel statement on q.
func Exec(ctx context.Context, q Querier, b squirrel.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return q.ExecContext(ctx, query, args...)
}

func Query(ctx context.Context, q Querier, b squirrel.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return q.QueryContext(ctx, query, args...)
}

func QueryRow(ctx context.Context, q Querier, b squirrel.Sqlizer) (*sql.Row, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return q.QueryRowContext(ctx, query, args...), nil
}

// Count runs a SELECT COUNT(*) statement and returns the single value.
func Count(ctx context.Context, q Querier, b squirrel.SelectBuilder) (int, error) {
	row, err := QueryRow(ctx, q, b)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
