package pgnotify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lms-dashboard/domain/events"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Applier evicts the entries named by an invalidation from another process
type Applier interface {
	Apply(ctx context.Context, event events.InvalidationEvent)
}

// Source is the subset of *pq.Listener the listener uses
type Source interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Close() error
}

var _ Source = (*pq.Listener)(nil)

// Listener applies invalidations notified by other processes to the local
// store. A dropped connection may have lost notifications, so after a
// reconnect the whole local dashboard cache is cleared.
type Listener struct {
	source  Source
	channel string
	applier Applier
	logger  *zap.Logger

	started  bool
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewListener opens a dedicated LISTEN connection to dsn
func NewListener(dsn, channel string, applier Applier, logger *zap.Logger) *Listener {
	source := pq.NewListener(dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
			logger.Warn("Invalidation listener connection lost", zap.String("channel", channel), zap.Error(err))
		case pq.ListenerEventReconnected:
			logger.Info("Invalidation listener reconnected", zap.String("channel", channel))
		}
	})
	return newListener(source, channel, applier, logger)
}

func newListener(source Source, channel string, applier Applier, logger *zap.Logger) *Listener {
	return &Listener{
		source:  source,
		channel: channel,
		applier: applier,
		logger:  logger,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start subscribes to the channel and applies notifications until Stop
func (l *Listener) Start(ctx context.Context) error {
	if err := l.source.Listen(l.channel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.channel, err)
	}
	l.started = true
	go l.run(ctx)
	l.logger.Info("Listening for invalidations", zap.String("channel", l.channel))
	return nil
}

// Stop ends listening and closes the connection
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		if l.started {
			<-l.done
		}
		if err := l.source.Close(); err != nil {
			l.logger.Warn("Failed to close invalidation listener", zap.Error(err))
		}
	})
}

func (l *Listener) run(ctx context.Context) {
	defer close(l.done)
	notifications := l.source.NotificationChannel()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ctx.Done():
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			l.handle(ctx, n)
		}
	}
}

func (l *Listener) handle(ctx context.Context, n *pq.Notification) {
	// pq delivers nil after re-establishing a lost connection
	if n == nil {
		l.logger.Warn("Notifications may have been missed, clearing local dashboard cache")
		l.applier.Apply(ctx, events.NewInvalidationEvent(events.TargetAll, events.EntityOperator, 0,
			events.OperationDeleted, nil, nil, nil, time.Now()))
		return
	}

	event, err := events.DecodeInvalidation([]byte(n.Extra))
	if err != nil {
		l.logger.Error("Dropping malformed invalidation", zap.String("channel", n.Channel), zap.Error(err))
		return
	}
	l.applier.Apply(ctx, event)
	l.logger.Debug("Applied notified invalidation",
		zap.String("target", string(event.Target)),
		zap.String("origin", event.Origin),
	)
}
