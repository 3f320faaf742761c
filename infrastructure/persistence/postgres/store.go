// Package postgres reads dashboard aggregates from the LMS PostgreSQL database
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lms-dashboard/application/ports"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PoolConfig tunes the connection pool
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to PostgreSQL and verifies the connection
func Open(ctx context.Context, dsn string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Store implements the read, resync, audit and directory ports over the LMS tables.
// The DB handle is owned by the caller.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore creates a new PostgreSQL store
func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Ping reports database reachability for readiness checks
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// countQuery runs a single-value COUNT query
func (s *Store) countQuery(ctx context.Context, op, query string, args ...interface{}) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, dbError(op, err)
	}
	return n, nil
}

// idQuery runs a query returning one int64 column
func (s *Store) idQuery(ctx context.Context, op, query string, args ...interface{}) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError(op, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, dbError(op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(op, err)
	}
	return ids, nil
}

var (
	_ ports.StatsReader      = (*Store)(nil)
	_ ports.CompletionSyncer = (*Store)(nil)
	_ ports.AuditLog         = (*Store)(nil)
	_ ports.Directory        = (*Store)(nil)
)
