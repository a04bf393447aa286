package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-storefront/internal/database"
)

// PostgresBackend keeps entries in the kv_entries table created by
// migrations/000001_kv_entries.up.sql.
type PostgresBackend struct {
	db   *sql.DB
	opts database.TxOptions
}

func NewPostgresBackend(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{db: db, opts: database.DefaultTxOptions()}
}

func (p *PostgresBackend) Get(ctx context.Context, key string) (Entry, error) {
	var e Entry
	err := p.db.QueryRowContext(ctx,
		`SELECT value, version FROM kv_entries WHERE key = $1`,
		key).Scan(&e.Value, &e.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("select kv entry: %w", err)
	}
	return e, nil
}

func (p *PostgresBackend) Version(ctx context.Context, key string) (int64, error) {
	var version int64
	err := p.db.QueryRowContext(ctx,
		`SELECT version FROM kv_entries WHERE key = $1`,
		key).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select kv version: %w", err)
	}
	return version, nil
}

func (p *PostgresBackend) Put(ctx context.Context, key string, value []byte, expectedVersion int64) (int64, error) {
	next := expectedVersion + 1

	err := database.WithRetry(ctx, p.db, p.opts, func(tx *sql.Tx) error {
		var (
			result sql.Result
			err    error
		)
		if expectedVersion == 0 {
			result, err = tx.ExecContext(ctx,
				`INSERT INTO kv_entries (key, value, version, updated_at)
				 VALUES ($1, $2, $3, NOW())
				 ON CONFLICT (key) DO NOTHING`,
				key, string(value), next)
		} else {
			result, err = tx.ExecContext(ctx,
				`UPDATE kv_entries
				 SET value = $2, version = $3, updated_at = NOW()
				 WHERE key = $1
				   AND version = $4`,
				key, string(value), next, expectedVersion)
		}
		if err != nil {
			return fmt.Errorf("write kv entry: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return database.ErrOptimisticLockFailed
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}
