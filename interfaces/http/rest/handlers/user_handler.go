package handlers

import (
	"context"
	"net/http"

	"lms-dashboard/domain/core/entities"
	"lms-dashboard/domain/core/valueobjects"
	"lms-dashboard/pkg/common"
	pkgerrors "lms-dashboard/pkg/errors"
	"lms-dashboard/pkg/utils"

	"go.uber.org/zap"
)

// UserActivityWriter records user activity followed by dashboard
// invalidation. It refuses actors outside the target user's reach.
type UserActivityWriter interface {
	Register(ctx context.Context, actor *entities.Viewer, user *entities.User) error
	RecordLogin(ctx context.Context, actor *entities.Viewer, userID int64) (*entities.User, error)
	SetActive(ctx context.Context, actor *entities.Viewer, userID int64, active bool) (*entities.User, error)
}

// CreateUserRequest represents the request body for registering a user
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Role     string `json:"role" validate:"required,oneof=globaladmin superadmin admin instructor learner"`
	BranchID *int64 `json:"branch_id,omitempty" validate:"omitempty,gt=0"`
}

// UpdateUserRequest represents the request body for a user update
type UpdateUserRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// UserHandler handles user activity writes
type UserHandler struct {
	writer UserActivityWriter
	errors *pkgerrors.ErrorHandler
	logger *zap.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(writer UserActivityWriter, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		writer: writer,
		errors: errHandler,
		logger: logger,
	}
}

// RecordLogin handles POST /users/{userID}/login. Users record their own
// logins; administrators those of users they manage.
func (h *UserHandler) RecordLogin(w http.ResponseWriter, r *http.Request) {
	v, err := viewer(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	user, err := h.writer.RecordLogin(r.Context(), v, userID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.logger.Debug("Login recorded", zap.Int64("userID", user.ID))
	common.RespondJSON(w, http.StatusOK, user)
}

// CreateUser handles POST /users. Users are created with a role below the
// actor's and inside the actor's branches.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	v, err := viewer(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req CreateUserRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("Invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	user := &entities.User{
		Username: req.Username,
		Role:     valueobjects.Role(req.Role),
		BranchID: req.BranchID,
		IsActive: true,
	}
	if err := h.writer.Register(r.Context(), v, user); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.logger.Info("User registered", zap.Int64("userID", user.ID), zap.Int64("actorID", v.UserID))
	common.RespondJSON(w, http.StatusCreated, user)
}

// UpdateUser handles PATCH /users/{userID}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	v, err := viewer(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req UpdateUserRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("Invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	user, err := h.writer.SetActive(r.Context(), v, userID, *req.IsActive)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.logger.Info("User updated",
		zap.Int64("userID", user.ID),
		zap.Bool("active", user.IsActive),
		zap.Int64("actorID", v.UserID),
	)
	common.RespondJSON(w, http.StatusOK, user)
}
