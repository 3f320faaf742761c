// Package schema applies versioned SQL migrations
package schema

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SchemaVersion is one applied migration
type SchemaVersion struct {
	Version     int       `json:"version"`
	Description string    `json:"description"`
	AppliedAt   time.Time `json:"applied_at"`
	Checksum    string    `json:"checksum"`
}

// Migration moves the schema from Version-1 to Version
type Migration struct {
	Version     int
	Description string
	Statements  []string
}

// Checksum fingerprints the migration's statements
func (m Migration) Checksum() string {
	sum := sha256.Sum256([]byte(strings.Join(m.Statements, ";\n")))
	return hex.EncodeToString(sum[:])
}

const historyTable = `CREATE TABLE IF NOT EXISTS schema_versions (
	version     INTEGER PRIMARY KEY,
	description TEXT NOT NULL,
	checksum    TEXT NOT NULL,
	applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// SchemaEvolution applies registered migrations in version order, each in its
// own transaction, and records them in schema_versions
type SchemaEvolution struct {
	db         *sql.DB
	migrations []Migration
	logger     *zap.Logger
}

// NewSchemaEvolution creates a new schema evolution manager
func NewSchemaEvolution(db *sql.DB, logger *zap.Logger) *SchemaEvolution {
	return &SchemaEvolution{db: db, logger: logger}
}

// RegisterMigration registers a new migration
func (s *SchemaEvolution) RegisterMigration(migration Migration) error {
	if migration.Version <= 0 {
		return fmt.Errorf("invalid migration: version must be positive")
	}
	if len(migration.Statements) == 0 {
		return fmt.Errorf("invalid migration %d: no statements", migration.Version)
	}
	for _, existing := range s.migrations {
		if existing.Version == migration.Version {
			return fmt.Errorf("migration %d already registered", migration.Version)
		}
	}

	s.migrations = append(s.migrations, migration)
	sort.Slice(s.migrations, func(i, j int) bool { return s.migrations[i].Version < s.migrations[j].Version })
	return nil
}

// History returns the applied migrations, oldest first
func (s *SchemaEvolution) History(ctx context.Context) ([]SchemaVersion, error) {
	if _, err := s.db.ExecContext(ctx, historyTable); err != nil {
		return nil, fmt.Errorf("failed to create schema history: %w", err)
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT version, description, checksum, applied_at FROM schema_versions ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema history: %w", err)
	}
	defer rows.Close()

	var history []SchemaVersion
	for rows.Next() {
		var v SchemaVersion
		if err := rows.Scan(&v.Version, &v.Description, &v.Checksum, &v.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to read schema history: %w", err)
		}
		history = append(history, v)
	}
	return history, rows.Err()
}

// Migrate applies every pending migration and returns the resulting version.
// An applied migration whose checksum changed is an error.
func (s *SchemaEvolution) Migrate(ctx context.Context) (int, error) {
	history, err := s.History(ctx)
	if err != nil {
		return 0, err
	}

	applied := make(map[int]SchemaVersion, len(history))
	current := 0
	for _, v := range history {
		applied[v.Version] = v
		if v.Version > current {
			current = v.Version
		}
	}

	for _, m := range s.migrations {
		if v, ok := applied[m.Version]; ok {
			if v.Checksum != m.Checksum() {
				return current, fmt.Errorf("migration %d was modified after being applied", m.Version)
			}
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return current, err
		}
		current = m.Version
		s.logger.Info("Applied schema migration",
			zap.Int("version", m.Version),
			zap.String("description", m.Description),
		)
	}
	return current, nil
}

func (s *SchemaEvolution) apply(ctx context.Context, m Migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d: begin: %w", m.Version, err)
	}
	defer tx.Rollback()

	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.Version, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_versions (version, description, checksum) VALUES ($1, $2, $3)",
		m.Version, m.Description, m.Checksum()); err != nil {
		return fmt.Errorf("migration %d: record: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration %d: commit: %w", m.Version, err)
	}
	return nil
}
