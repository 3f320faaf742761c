package utils

import (
	"testing"

	pkgerrors "lms-dashboard/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	UserID   int64  `validate:"required,gt=0"`
	CourseID int64  `validate:"required,gt=0"`
	Status   string `validate:"omitempty,oneof=active completed"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name       string
		req        sampleRequest
		wantFields []string
	}{
		{name: "valid", req: sampleRequest{UserID: 1, CourseID: 2, Status: "active"}},
		{name: "missing ids", req: sampleRequest{}, wantFields: []string{"user_id", "course_id"}},
		{name: "bad status", req: sampleRequest{UserID: 1, CourseID: 2, Status: "paused"}, wantFields: []string{"status"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.req)

			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
			appErr := pkgerrors.GetAppError(err)
			for _, f := range tt.wantFields {
				assert.Contains(t, appErr.Details, f)
			}
		})
	}
}

func TestToSnake(t *testing.T) {
	tests := map[string]string{
		"UserID":      "user_id",
		"CourseID":    "course_id",
		"Status":      "status",
		"HTTPStatus":  "http_status",
		"ProgressPct": "progress_pct",
	}
	for in, want := range tests {
		assert.Equal(t, want, toSnake(in), in)
	}
}
