package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompletionRate(t *testing.T) {
	assert.Equal(t, 0, CompletionRate(0, 0))
	assert.Equal(t, 40, CompletionRate(8, 20))
	assert.Equal(t, 33, CompletionRate(1, 3))
	assert.Equal(t, 67, CompletionRate(2, 3))
	assert.Equal(t, 100, CompletionRate(5, 5))
}

func TestNewProgressData(t *testing.T) {
	tests := []struct {
		name                               string
		completed, inProgress, notStarted  int64
		wantC, wantI, wantN, wantNotPassed int
	}{
		{"exact split", 2, 1, 1, 50, 25, 25, 0},
		{"rounding drift leaves a residual", 1, 1, 1, 33, 33, 33, 1},
		{"rounding overshoot clamps to zero", 1, 1, 0, 50, 50, 0, 0},
		{"empty", 0, 0, 0, 0, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProgressData(tt.completed, tt.inProgress, tt.notStarted)

			assert.Equal(t, tt.completed+tt.inProgress+tt.notStarted, p.TotalEnrollments)
			assert.Equal(t, p.TotalEnrollments, p.CompletedCount+p.InProgressCount+p.NotStartedCount)
			assert.Equal(t, tt.wantC, p.CompletedPercentage)
			assert.Equal(t, tt.wantI, p.InProgressPercentage)
			assert.Equal(t, tt.wantN, p.NotStartedPercentage)
			assert.Equal(t, tt.wantNotPassed, p.NotPassedPercentage)
		})
	}
}

func TestNewProgressData_ResidualNeverNegative(t *testing.T) {
	p := NewProgressData(5, 5, 5)
	assert.GreaterOrEqual(t, p.NotPassedPercentage, 0)

	p = NewProgressData(1, 2, 2) // 20 + 40 + 40
	assert.Equal(t, 0, p.NotPassedPercentage)
}

func TestIconForAction(t *testing.T) {
	assert.Equal(t, "plus-circle", IconForAction("course_create"))
	assert.Equal(t, "edit", IconForAction("UPDATE"))
	assert.Equal(t, "trash", IconForAction("enrollment_delete"))
	assert.Equal(t, "sign-in-alt", IconForAction("login"))
	assert.Equal(t, DefaultActivityIcon, IconForAction("export"))
}
