package handlers

import (
	"net/http"
	"testing"

	"lms-dashboard/domain/core/entities"
	"lms-dashboard/domain/core/valueobjects"
	pkgerrors "lms-dashboard/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func newUserHandler(writer *mockUserWriter) *UserHandler {
	return NewUserHandler(writer, pkgerrors.NewErrorHandler(zap.NewNop(), false), zap.NewNop())
}

func TestUserHandler_CreateUser(t *testing.T) {
	tests := []struct {
		name       string
		viewer     *entities.Viewer
		body       string
		writerErr  error
		wantStatus int
		wantBranch *int64
		wantCall   bool
	}{
		{
			name:       "requested branch is passed to the service",
			viewer:     globalAdmin,
			body:       `{"username":"carol","role":"learner","branch_id":9}`,
			wantStatus: http.StatusCreated,
			wantBranch: int64p(9),
			wantCall:   true,
		},
		{
			name:       "omitted branch is left to the service",
			viewer:     branchAdmin,
			body:       `{"username":"carol","role":"learner"}`,
			wantStatus: http.StatusCreated,
			wantCall:   true,
		},
		{
			name:       "refusal renders forbidden",
			viewer:     branchAdmin,
			body:       `{"username":"carol","role":"learner","branch_id":9}`,
			writerErr:  pkgerrors.NewForbiddenError("administrators can only reach their own branch"),
			wantStatus: http.StatusForbidden,
			wantBranch: int64p(9),
			wantCall:   true,
		},
		{
			name:       "unknown role",
			viewer:     globalAdmin,
			body:       `{"username":"carol","role":"owner"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown field",
			viewer:     globalAdmin,
			body:       `{"username":"carol","role":"learner","password":"x"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			writer := new(mockUserWriter)
			writer.On("Register", mock.Anything, tt.viewer, mock.AnythingOfType("*entities.User")).
				Run(func(args mock.Arguments) { args.Get(2).(*entities.User).ID = 42 }).
				Return(tt.writerErr)
			h := newUserHandler(writer)

			// Act
			rec := serve(http.MethodPost, "/users", "/users", tt.body, tt.viewer, h.CreateUser)

			// Assert
			assert.Equal(t, tt.wantStatus, rec.Code)
			if !tt.wantCall {
				writer.AssertNotCalled(t, "Register", mock.Anything, mock.Anything, mock.Anything)
				return
			}
			registered := writer.Calls[0].Arguments.Get(2).(*entities.User)
			assert.Equal(t, "carol", registered.Username)
			assert.Equal(t, valueobjects.RoleLearner, registered.Role)
			assert.Equal(t, tt.wantBranch, registered.BranchID)
			assert.True(t, registered.IsActive)
		})
	}
}

func TestUserHandler_UpdateUser(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCall   bool
	}{
		{name: "deactivate", body: `{"is_active":false}`, wantStatus: http.StatusOK, wantCall: true},
		{name: "missing flag", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "malformed", body: `{`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := new(mockUserWriter)
			writer.On("SetActive", mock.Anything, globalAdmin, int64(5), false).
				Return(&entities.User{ID: 5, Role: valueobjects.RoleLearner}, nil)
			h := newUserHandler(writer)

			rec := serve(http.MethodPatch, "/users/{userID}", "/users/5", tt.body, globalAdmin, h.UpdateUser)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCall {
				writer.AssertExpectations(t)
			} else {
				writer.AssertNotCalled(t, "SetActive", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestUserHandler_UpdateUser_NotFound(t *testing.T) {
	writer := new(mockUserWriter)
	writer.On("SetActive", mock.Anything, globalAdmin, int64(5), true).Return(nil, pkgerrors.NewNotFoundError("user"))
	h := newUserHandler(writer)

	rec := serve(http.MethodPatch, "/users/{userID}", "/users/5", `{"is_active":true}`, globalAdmin, h.UpdateUser)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserHandler_UpdateUser_Forbidden(t *testing.T) {
	writer := new(mockUserWriter)
	writer.On("SetActive", mock.Anything, branchAdmin, int64(5), false).
		Return(nil, pkgerrors.NewForbiddenError("user is outside your branches"))
	h := newUserHandler(writer)

	rec := serve(http.MethodPatch, "/users/{userID}", "/users/5", `{"is_active":false}`, branchAdmin, h.UpdateUser)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	writer.AssertExpectations(t)
}
