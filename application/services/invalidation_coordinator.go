package services

import (
	"context"

	"lms-dashboard/application/ports"
	"lms-dashboard/domain/core/entities"
	"lms-dashboard/domain/dashboard"
	"lms-dashboard/domain/events"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// InvalidationScope is the derived tenancy of a changed record
type InvalidationScope struct {
	BranchID   *int64
	BusinessID *int64
	UserID     *int64
}

// InvalidationCoordinator maps writes to the dashboard entries they make
// stale and evicts them eagerly. It never fails the write that triggered it.
type InvalidationCoordinator struct {
	cache       *MetricsCache
	directory   ports.Directory
	broadcaster ports.InvalidationBroadcaster
	clock       clockwork.Clock
	origin      string
	logger      *zap.Logger
}

// NewInvalidationCoordinator creates a coordinator. broadcaster may be nil
// when every process shares one cache store.
func NewInvalidationCoordinator(
	cache *MetricsCache,
	directory ports.Directory,
	broadcaster ports.InvalidationBroadcaster,
	clock clockwork.Clock,
	logger *zap.Logger,
) *InvalidationCoordinator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &InvalidationCoordinator{
		cache:       cache,
		directory:   directory,
		broadcaster: broadcaster,
		clock:       clock,
		origin:      uuid.NewString(),
		logger:      logger,
	}
}

// Origin identifies this coordinator on broadcast events
func (c *InvalidationCoordinator) Origin() string {
	return c.origin
}

// InvalidateDashboardData is the funnel every event handler goes through.
// It evicts the global stats, the branch stats of the scope, progress entries
// for the branch and business, every activity series of the branch and, when
// a user is given, that user's instructor stats.
func (c *InvalidationCoordinator) InvalidateDashboardData(ctx context.Context, scope InvalidationScope) {
	c.evict(ctx, scope)
	c.publish(ctx, events.NewInvalidationEvent(events.TargetDashboard, events.EntityOperator, 0, events.OperationUpdated,
		scope.BranchID, scope.BusinessID, scope.UserID, c.clock.Now()))
}

func (c *InvalidationCoordinator) evict(ctx context.Context, scope InvalidationScope) {
	c.cache.ClearGlobalStats(ctx)
	if scope.BranchID != nil {
		c.cache.safeDelete(ctx, dashboard.BranchStatsKey(*scope.BranchID))
	}
	c.cache.ClearProgressCache(ctx, scope.BranchID, scope.BusinessID)
	c.cache.ClearActivityCache(ctx, scope.BranchID)
	if scope.UserID != nil {
		c.cache.ClearInstructorCache(ctx, *scope.UserID)
	}

	c.logger.Debug("Dashboard data invalidated",
		zap.Any("branchID", scope.BranchID),
		zap.Any("businessID", scope.BusinessID),
		zap.Any("userID", scope.UserID),
	)
}

// OnEnrollmentChanged runs after an enrollment is created, updated or deleted
func (c *InvalidationCoordinator) OnEnrollmentChanged(ctx context.Context, enrollment entities.Enrollment, op events.Operation) {
	scope := c.deriveScope(ctx, enrollment.UserID)
	c.evict(ctx, scope)
	c.publish(ctx, events.NewInvalidationEvent(events.TargetDashboard, events.EntityEnrollment, enrollment.ID, op,
		scope.BranchID, scope.BusinessID, nil, c.clock.Now()))
}

// OnUserActivityChanged runs after a user record changes. Creation is
// ignored since a new user has no activity to aggregate yet.
func (c *InvalidationCoordinator) OnUserActivityChanged(ctx context.Context, user entities.User, op events.Operation) {
	if op == events.OperationCreated {
		return
	}
	scope := c.deriveScope(ctx, user.ID)
	uid := user.ID
	scope.UserID = &uid
	c.evict(ctx, scope)
	c.publish(ctx, events.NewInvalidationEvent(events.TargetDashboard, events.EntityUser, user.ID, op,
		scope.BranchID, scope.BusinessID, scope.UserID, c.clock.Now()))
}

// ClearBranch evicts branch statistics and branch activity
func (c *InvalidationCoordinator) ClearBranch(ctx context.Context, branchID int64) {
	c.cache.ClearBranchCache(ctx, branchID)
	b := branchID
	c.publish(ctx, events.NewInvalidationEvent(events.TargetBranch, events.EntityBranch, branchID, events.OperationUpdated,
		&b, nil, nil, c.clock.Now()))
}

// ClearUser evicts a user's instructor statistics and progress entries
func (c *InvalidationCoordinator) ClearUser(ctx context.Context, userID int64) {
	c.cache.ClearUserCache(ctx, userID)
	u := userID
	c.publish(ctx, events.NewInvalidationEvent(events.TargetUser, events.EntityUser, userID, events.OperationUpdated,
		nil, nil, &u, c.clock.Now()))
}

// ClearProgress evicts progress entries for the scope, or all of them
func (c *InvalidationCoordinator) ClearProgress(ctx context.Context, branchID, businessID *int64) {
	c.cache.ClearProgressCache(ctx, branchID, businessID)
	c.publish(ctx, events.NewInvalidationEvent(events.TargetProgress, events.EntityOperator, 0, events.OperationUpdated,
		branchID, businessID, nil, c.clock.Now()))
}

// ClearActivity evicts activity series for the branch, or all of them
func (c *InvalidationCoordinator) ClearActivity(ctx context.Context, branchID *int64) {
	c.cache.ClearActivityCache(ctx, branchID)
	c.publish(ctx, events.NewInvalidationEvent(events.TargetActivity, events.EntityOperator, 0, events.OperationUpdated,
		branchID, nil, nil, c.clock.Now()))
}

// ClearAllDashboardCache is the break-glass clear
func (c *InvalidationCoordinator) ClearAllDashboardCache(ctx context.Context) {
	c.cache.ClearAllDashboardCache(ctx)
	c.publish(ctx, events.NewInvalidationEvent(events.TargetAll, events.EntityOperator, 0, events.OperationDeleted,
		nil, nil, nil, c.clock.Now()))
}

// Apply replays an event received from another process. It evicts locally
// and never rebroadcasts; events this coordinator published are skipped.
func (c *InvalidationCoordinator) Apply(ctx context.Context, event events.InvalidationEvent) {
	if event.Origin != "" && event.Origin == c.origin {
		return
	}

	switch event.Target {
	case events.TargetDashboard:
		c.evict(ctx, InvalidationScope{
			BranchID:   event.BranchID,
			BusinessID: event.BusinessID,
			UserID:     event.UserID,
		})
	case events.TargetBranch:
		if event.BranchID != nil {
			c.cache.ClearBranchCache(ctx, *event.BranchID)
		}
	case events.TargetUser:
		if event.UserID != nil {
			c.cache.ClearUserCache(ctx, *event.UserID)
		}
	case events.TargetProgress:
		c.cache.ClearProgressCache(ctx, event.BranchID, event.BusinessID)
	case events.TargetActivity:
		c.cache.ClearActivityCache(ctx, event.BranchID)
	case events.TargetAll:
		c.cache.ClearAllDashboardCache(ctx)
	default:
		c.logger.Warn("Ignoring invalidation with unknown target",
			zap.String("target", string(event.Target)),
			zap.String("aggregateID", event.AggregateID),
		)
	}
}

// deriveScope resolves the user's branch and business. Lookup failures and
// users without a branch yield nil values, never an error.
func (c *InvalidationCoordinator) deriveScope(ctx context.Context, userID int64) InvalidationScope {
	if c.directory == nil {
		return InvalidationScope{}
	}
	us, err := c.directory.UserScope(ctx, userID)
	if err != nil {
		c.logger.Warn("Could not derive scope for invalidation, using unscoped keys",
			zap.Int64("userID", userID),
			zap.Error(err),
		)
		return InvalidationScope{}
	}
	return InvalidationScope{BranchID: us.BranchID, BusinessID: us.BusinessID}
}

func (c *InvalidationCoordinator) publish(ctx context.Context, event events.InvalidationEvent) {
	if c.broadcaster == nil {
		return
	}
	event.Origin = c.origin
	if err := c.broadcaster.Broadcast(ctx, event); err != nil {
		c.logger.Warn("Failed to broadcast invalidation",
			zap.String("target", string(event.Target)),
			zap.String("aggregateID", event.AggregateID),
			zap.Error(err),
		)
	}
}
