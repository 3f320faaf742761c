// Package pgnotify fans dashboard invalidations out to every long-running
// process through PostgreSQL LISTEN/NOTIFY. Each process keeps its own memory
// store, so each one must hear every eviction.
package pgnotify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"lms-dashboard/application/ports"
	"lms-dashboard/domain/events"

	"go.uber.org/zap"
)

// maxPayload is the NOTIFY payload limit of a default PostgreSQL build
const maxPayload = 8000

// Execer is the subset of *sql.DB the broadcaster uses
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Broadcaster implements ports.InvalidationBroadcaster with pg_notify
type Broadcaster struct {
	db      Execer
	channel string
	logger  *zap.Logger
}

// NewBroadcaster creates a broadcaster notifying channel
func NewBroadcaster(db Execer, channel string, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{db: db, channel: channel, logger: logger}
}

// Broadcast notifies every listener, this process included; the coordinator
// skips its own events by origin
func (b *Broadcaster) Broadcast(ctx context.Context, event events.InvalidationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation: %w", err)
	}
	if len(payload) >= maxPayload {
		return fmt.Errorf("invalidation payload of %d bytes exceeds the notify limit", len(payload))
	}

	if _, err := b.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, b.channel, string(payload)); err != nil {
		return fmt.Errorf("failed to notify %s: %w", b.channel, err)
	}

	b.logger.Debug("Invalidation notified",
		zap.String("channel", b.channel),
		zap.String("target", string(event.Target)),
		zap.String("aggregateID", event.AggregateID),
	)
	return nil
}

var _ ports.InvalidationBroadcaster = (*Broadcaster)(nil)
