package entities

import (
	"errors"
	"time"
)

// Enrollment relates a user to a course and carries completion state
type Enrollment struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"user_id"`
	CourseID        int64      `json:"course_id"`
	Completed       bool       `json:"completed"`
	CompletionDate  *time.Time `json:"completion_date,omitempty"`
	TopicsCompleted int        `json:"topics_completed"`
	TotalTopics     int        `json:"total_topics"`
	EnrolledAt      time.Time  `json:"enrolled_at"`
}

// Validate checks the enrollment invariants enforced before writes
func (e Enrollment) Validate() error {
	if e.UserID <= 0 {
		return errors.New("enrollment requires a user")
	}
	if e.CourseID <= 0 {
		return errors.New("enrollment requires a course")
	}
	if e.TopicsCompleted < 0 {
		return errors.New("topics completed cannot be negative")
	}
	if e.TotalTopics > 0 && e.TopicsCompleted > e.TotalTopics {
		return errors.New("topics completed exceeds total topics")
	}
	return nil
}

// ShouldBeCompleted reports the completion flag implied by topic progress.
// Enrollments without topics keep whatever flag they carry.
func (e Enrollment) ShouldBeCompleted() bool {
	if e.TotalTopics == 0 {
		return e.Completed
	}
	return e.TopicsCompleted >= e.TotalTopics
}

// ProgressState places an enrollment in exactly one progress bucket
type ProgressState int

const (
	ProgressNotStarted ProgressState = iota
	ProgressInProgress
	ProgressCompleted
)

// State returns the bucket the enrollment falls into
func (e Enrollment) State() ProgressState {
	switch {
	case e.Completed:
		return ProgressCompleted
	case e.TopicsCompleted > 0:
		return ProgressInProgress
	default:
		return ProgressNotStarted
	}
}
