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

// EnrollmentService performs enrollment writes and invalidates the
// dashboards they affect once the write has committed
type EnrollmentService struct {
	repo        ports.EnrollmentRepository
	audit       ports.AuditLog
	policy      *AccessPolicy
	coordinator *InvalidationCoordinator
	clock       clockwork.Clock
	logger      *zap.Logger
}

// NewEnrollmentService creates a new enrollment service
func NewEnrollmentService(
	repo ports.EnrollmentRepository,
	audit ports.AuditLog,
	policy *AccessPolicy,
	coordinator *InvalidationCoordinator,
	clock clockwork.Clock,
	logger *zap.Logger,
) *EnrollmentService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &EnrollmentService{
		repo:        repo,
		audit:       audit,
		policy:      policy,
		coordinator: coordinator,
		clock:       clock,
		logger:      logger,
	}
}

// ProgressUpdate changes an enrollment's progress. Nil fields are left alone.
type ProgressUpdate struct {
	TopicsCompleted *int
	TotalTopics     *int
	Completed       *bool
}

// Enroll creates an enrollment
func (s *EnrollmentService) Enroll(ctx context.Context, actor *entities.Viewer, enrollment *entities.Enrollment) error {
	if err := enrollment.Validate(); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	if err := s.policy.AuthorizeEnrollmentWrite(ctx, actor, enrollment.UserID, enrollment.CourseID); err != nil {
		return err
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = s.clock.Now()
	}
	s.applyCompletion(enrollment)

	if err := s.repo.Create(ctx, enrollment); err != nil {
		return fmt.Errorf("failed to create enrollment: %w", err)
	}

	s.record(ctx, actor, "enrollment_create", fmt.Sprintf("Enrolled user %d in course %d", enrollment.UserID, enrollment.CourseID))
	s.coordinator.OnEnrollmentChanged(ctx, *enrollment, events.OperationCreated)
	return nil
}

// UpdateProgress applies a progress change and keeps the completion flag consistent
func (s *EnrollmentService) UpdateProgress(ctx context.Context, actor *entities.Viewer, id int64, update ProgressUpdate) (*entities.Enrollment, error) {
	enrollment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.AuthorizeEnrollmentWrite(ctx, actor, enrollment.UserID, enrollment.CourseID); err != nil {
		return nil, err
	}

	if update.TotalTopics != nil {
		enrollment.TotalTopics = *update.TotalTopics
	}
	if update.TopicsCompleted != nil {
		enrollment.TopicsCompleted = *update.TopicsCompleted
	}
	if update.Completed != nil {
		enrollment.Completed = *update.Completed
	}
	if err := enrollment.Validate(); err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	s.applyCompletion(enrollment)

	if err := s.repo.Update(ctx, enrollment); err != nil {
		return nil, fmt.Errorf("failed to update enrollment: %w", err)
	}

	s.record(ctx, actor, "enrollment_update", fmt.Sprintf("Updated progress of enrollment %d", enrollment.ID))
	s.coordinator.OnEnrollmentChanged(ctx, *enrollment, events.OperationUpdated)
	return enrollment, nil
}

// Unenroll deletes an enrollment
func (s *EnrollmentService) Unenroll(ctx context.Context, actor *entities.Viewer, id int64) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.policy.AuthorizeEnrollmentWrite(ctx, actor, existing.UserID, existing.CourseID); err != nil {
		return err
	}

	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}

	s.record(ctx, actor, "enrollment_delete", fmt.Sprintf("Removed user %d from course %d", removed.UserID, removed.CourseID))
	s.coordinator.OnEnrollmentChanged(ctx, *removed, events.OperationDeleted)
	return nil
}

// applyCompletion sets the completion flag and date implied by topic progress
func (s *EnrollmentService) applyCompletion(e *entities.Enrollment) {
	e.Completed = e.ShouldBeCompleted()
	switch {
	case e.Completed && e.CompletionDate == nil:
		now := s.clock.Now()
		e.CompletionDate = &now
	case !e.Completed:
		e.CompletionDate = nil
	}
}

// record appends to the audit log; failures never fail the write
func (s *EnrollmentService) record(ctx context.Context, actor *entities.Viewer, action, description string) {
	if s.audit == nil {
		return
	}
	entry := entities.AuditEntry{
		Action:      action,
		Description: description,
		Timestamp:   s.clock.Now(),
	}
	if actor != nil {
		uid := actor.UserID
		entry.UserID = &uid
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("Failed to record audit entry",
			zap.String("action", action),
			zap.Error(err),
		)
	}
}
