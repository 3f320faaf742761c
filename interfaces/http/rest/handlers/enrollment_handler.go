package handlers

import (
	"context"
	"net/http"
	"time"

	"lms-dashboard/application/services"
	"lms-dashboard/domain/core/entities"
	"lms-dashboard/pkg/common"
	pkgerrors "lms-dashboard/pkg/errors"
	"lms-dashboard/pkg/utils"

	"go.uber.org/zap"
)

// EnrollmentWriter performs enrollment writes followed by dashboard invalidation
type EnrollmentWriter interface {
	Enroll(ctx context.Context, actor *entities.Viewer, enrollment *entities.Enrollment) error
	UpdateProgress(ctx context.Context, actor *entities.Viewer, id int64, update services.ProgressUpdate) (*entities.Enrollment, error)
	Unenroll(ctx context.Context, actor *entities.Viewer, id int64) error
}

// EnrollmentHandler handles enrollment writes
type EnrollmentHandler struct {
	writer EnrollmentWriter
	errors *pkgerrors.ErrorHandler
	logger *zap.Logger
}

// NewEnrollmentHandler creates a new enrollment handler
func NewEnrollmentHandler(writer EnrollmentWriter, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{
		writer: writer,
		errors: errHandler,
		logger: logger,
	}
}

// CreateEnrollmentRequest represents the request body for creating an enrollment
type CreateEnrollmentRequest struct {
	UserID          int64      `json:"user_id" validate:"required,gt=0"`
	CourseID        int64      `json:"course_id" validate:"required,gt=0"`
	TopicsCompleted int        `json:"topics_completed" validate:"gte=0"`
	TotalTopics     int        `json:"total_topics" validate:"gte=0"`
	Completed       bool       `json:"completed"`
	EnrolledAt      *time.Time `json:"enrolled_at,omitempty"`
}

// UpdateEnrollmentRequest represents the request body for a progress update
type UpdateEnrollmentRequest struct {
	TopicsCompleted *int  `json:"topics_completed,omitempty" validate:"omitempty,gte=0"`
	TotalTopics     *int  `json:"total_topics,omitempty" validate:"omitempty,gte=0"`
	Completed       *bool `json:"completed,omitempty"`
}

// CreateEnrollment handles POST /enrollments
func (h *EnrollmentHandler) CreateEnrollment(w http.ResponseWriter, r *http.Request) {
	actor, err := viewer(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req CreateEnrollmentRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("Invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	enrollment := &entities.Enrollment{
		UserID:          req.UserID,
		CourseID:        req.CourseID,
		TopicsCompleted: req.TopicsCompleted,
		TotalTopics:     req.TotalTopics,
		Completed:       req.Completed,
	}
	if req.EnrolledAt != nil {
		enrollment.EnrolledAt = *req.EnrolledAt
	}

	if err := h.writer.Enroll(r.Context(), actor, enrollment); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.logger.Info("Enrollment created",
		zap.Int64("enrollmentID", enrollment.ID),
		zap.Int64("userID", enrollment.UserID),
		zap.Int64("courseID", enrollment.CourseID),
	)
	common.RespondJSON(w, http.StatusCreated, enrollment)
}

// UpdateEnrollment handles PUT /enrollments/{enrollmentID}
func (h *EnrollmentHandler) UpdateEnrollment(w http.ResponseWriter, r *http.Request) {
	actor, err := viewer(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	id, err := pathID(r, "enrollmentID")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req UpdateEnrollmentRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("Invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	enrollment, err := h.writer.UpdateProgress(r.Context(), actor, id, services.ProgressUpdate{
		TopicsCompleted: req.TopicsCompleted,
		TotalTopics:     req.TotalTopics,
		Completed:       req.Completed,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, enrollment)
}

// DeleteEnrollment handles DELETE /enrollments/{enrollmentID}
func (h *EnrollmentHandler) DeleteEnrollment(w http.ResponseWriter, r *http.Request) {
	actor, err := viewer(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	id, err := pathID(r, "enrollmentID")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	if err := h.writer.Unenroll(r.Context(), actor, id); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.logger.Info("Enrollment deleted", zap.Int64("enrollmentID", id))
	w.WriteHeader(http.StatusNoContent)
}
