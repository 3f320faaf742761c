package handlers

import (
	"net/http"
	"testing"

	"lms-dashboard/application/services"
	"lms-dashboard/domain/core/entities"
	"lms-dashboard/domain/core/valueobjects"
	pkgerrors "lms-dashboard/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func newEnrollmentHandler(writer *mockEnrollmentWriter) *EnrollmentHandler {
	return NewEnrollmentHandler(writer, pkgerrors.NewErrorHandler(zap.NewNop(), false), zap.NewNop())
}

func TestEnrollmentHandler_CreateEnrollment(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		enrollErr  error
		wantStatus int
		wantCall   bool
	}{
		{
			name:       "created",
			body:       `{"user_id":4,"course_id":1,"topics_completed":2,"total_topics":5}`,
			wantStatus: http.StatusCreated,
			wantCall:   true,
		},
		{
			name:       "missing course",
			body:       `{"user_id":4}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown field",
			body:       `{"user_id":4,"course_id":1,"grade":"A"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "service validation",
			body:       `{"user_id":4,"course_id":1,"topics_completed":9,"total_topics":5}`,
			enrollErr:  pkgerrors.NewValidationError("topics completed exceeds total topics"),
			wantStatus: http.StatusBadRequest,
			wantCall:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			writer := new(mockEnrollmentWriter)
			writer.On("Enroll", mock.Anything, branchAdmin, mock.MatchedBy(func(e *entities.Enrollment) bool {
				return e.UserID == 4 && e.CourseID == 1
			})).Return(tt.enrollErr)
			h := newEnrollmentHandler(writer)

			// Act
			rec := serve(http.MethodPost, "/enrollments", "/enrollments", tt.body, branchAdmin, h.CreateEnrollment)

			// Assert
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCall {
				writer.AssertExpectations(t)
			} else {
				writer.AssertNotCalled(t, "Enroll", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestEnrollmentHandler_UpdateEnrollment(t *testing.T) {
	t.Run("applies partial update", func(t *testing.T) {
		writer := new(mockEnrollmentWriter)
		writer.On("UpdateProgress", mock.Anything, instructor, int64(11), mock.MatchedBy(func(u services.ProgressUpdate) bool {
			return u.TopicsCompleted != nil && *u.TopicsCompleted == 3 && u.TotalTopics == nil && u.Completed == nil
		})).Return(&entities.Enrollment{ID: 11, TopicsCompleted: 3}, nil)
		h := newEnrollmentHandler(writer)

		rec := serve(http.MethodPut, "/enrollments/{enrollmentID}", "/enrollments/11", `{"topics_completed":3}`, instructor, h.UpdateEnrollment)

		assert.Equal(t, http.StatusOK, rec.Code)
		writer.AssertExpectations(t)
	})

	t.Run("missing enrollment", func(t *testing.T) {
		writer := new(mockEnrollmentWriter)
		writer.On("UpdateProgress", mock.Anything, mock.Anything, int64(99), mock.Anything).
			Return(nil, pkgerrors.NewNotFoundError("enrollment"))
		h := newEnrollmentHandler(writer)

		rec := serve(http.MethodPut, "/enrollments/{enrollmentID}", "/enrollments/99", `{"completed":true}`, instructor, h.UpdateEnrollment)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("negative progress", func(t *testing.T) {
		h := newEnrollmentHandler(new(mockEnrollmentWriter))

		rec := serve(http.MethodPut, "/enrollments/{enrollmentID}", "/enrollments/11", `{"topics_completed":-1}`, instructor, h.UpdateEnrollment)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestEnrollmentHandler_DeleteEnrollment(t *testing.T) {
	writer := new(mockEnrollmentWriter)
	writer.On("Unenroll", mock.Anything, globalAdmin, int64(5)).Return(nil)
	h := newEnrollmentHandler(writer)

	rec := serve(http.MethodDelete, "/enrollments/{enrollmentID}", "/enrollments/5", "", globalAdmin, h.DeleteEnrollment)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	writer.AssertExpectations(t)
}

func TestUserHandler_RecordLogin(t *testing.T) {
	tests := []struct {
		name       string
		viewer     *entities.Viewer
		target     string
		writerErr  error
		wantStatus int
	}{
		{name: "own login", viewer: learner, target: "/users/4/login", wantStatus: http.StatusOK},
		{name: "refused by the service", viewer: learner, target: "/users/5/login",
			writerErr: pkgerrors.NewForbiddenError("learner cannot change a learner"), wantStatus: http.StatusForbidden},
		{name: "bad id", viewer: learner, target: "/users/x/login", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := new(mockUserWriter)
			var user *entities.User
			if tt.writerErr == nil {
				user = &entities.User{ID: 4, Role: valueobjects.RoleLearner}
			}
			writer.On("RecordLogin", mock.Anything, tt.viewer, mock.AnythingOfType("int64")).Return(user, tt.writerErr)
			h := NewUserHandler(writer, pkgerrors.NewErrorHandler(zap.NewNop(), false), zap.NewNop())

			rec := serve(http.MethodPost, "/users/{userID}/login", tt.target, "", tt.viewer, h.RecordLogin)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
