package services

import (
	"context"
	"fmt"

	"lms-dashboard/application/ports"
	"lms-dashboard/domain/core/entities"
	"lms-dashboard/domain/events"
	pkgerrors "lms-dashboard/pkg/errors"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// UserActivityService records activity-relevant user changes and
// invalidates the dashboards that aggregate them
type UserActivityService struct {
	repo        ports.UserRepository
	audit       ports.AuditLog
	policy      *AccessPolicy
	coordinator *InvalidationCoordinator
	clock       clockwork.Clock
	logger      *zap.Logger
}

// NewUserActivityService creates a new user activity service
func NewUserActivityService(
	repo ports.UserRepository,
	audit ports.AuditLog,
	policy *AccessPolicy,
	coordinator *InvalidationCoordinator,
	clock clockwork.Clock,
	logger *zap.Logger,
) *UserActivityService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &UserActivityService{
		repo:        repo,
		audit:       audit,
		policy:      policy,
		coordinator: coordinator,
		clock:       clock,
		logger:      logger,
	}
}

// Register creates a user on behalf of actor, who must outrank the new
// user's role. The branch is settled by the actor's reach. Creation does
// not invalidate activity aggregates.
func (s *UserActivityService) Register(ctx context.Context, actor *entities.Viewer, user *entities.User) error {
	if user.Username == "" {
		return pkgerrors.NewValidationError("username is required")
	}
	if !user.Role.IsValid() {
		return pkgerrors.NewValidationError(fmt.Sprintf("unknown role %q", user.Role))
	}
	branchID, err := s.policy.AuthorizeUserCreate(ctx, actor, user.Role, user.BranchID)
	if err != nil {
		return err
	}
	user.BranchID = branchID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.clock.Now()
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	s.coordinator.OnUserActivityChanged(ctx, *user, events.OperationCreated)
	return nil
}

// RecordLogin stamps the user's last login. Users record their own logins;
// otherwise the actor must be allowed to change the user.
func (s *UserActivityService) RecordLogin(ctx context.Context, actor *entities.Viewer, userID int64) (*entities.User, error) {
	target, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.AuthorizeLogin(ctx, actor, target); err != nil {
		return nil, err
	}

	user, err := s.repo.RecordLogin(ctx, userID, s.clock.Now())
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		uid := user.ID
		entry := entities.AuditEntry{
			UserID:      &uid,
			Username:    user.Username,
			Action:      "login",
			Description: fmt.Sprintf("%s logged in", user.Username),
			Timestamp:   s.clock.Now(),
		}
		if err := s.audit.Record(ctx, entry); err != nil {
			s.logger.Warn("Failed to record audit entry", zap.String("action", entry.Action), zap.Error(err))
		}
	}

	s.coordinator.OnUserActivityChanged(ctx, *user, events.OperationUpdated)
	return user, nil
}

// SetActive activates or deactivates a user the actor may change
func (s *UserActivityService) SetActive(ctx context.Context, actor *entities.Viewer, userID int64, active bool) (*entities.User, error) {
	target, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.AuthorizeUserChange(ctx, actor, target); err != nil {
		return nil, err
	}

	user, err := s.repo.SetActive(ctx, userID, active)
	if err != nil {
		return nil, err
	}
	s.coordinator.OnUserActivityChanged(ctx, *user, events.OperationUpdated)
	return user, nil
}
