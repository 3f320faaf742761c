package dashboard

import (
	"time"

	"lms-dashboard/domain/core/valueobjects"
)

// GlobalStats is the unscoped platform summary
type GlobalStats struct {
	TotalUsers           int64 `json:"total_users"`
	ActiveUsers          int64 `json:"active_users"`
	LearnerCount         int64 `json:"learner_count"`
	InstructorCount      int64 `json:"instructor_count"`
	AdminCount           int64 `json:"admin_count"`
	SuperAdminCount      int64 `json:"superadmin_count"`
	GlobalAdminCount     int64 `json:"globaladmin_count"`
	TotalCourses         int64 `json:"total_courses"`
	TotalBranches        int64 `json:"total_branches"`
	TotalEnrollments     int64 `json:"total_enrollments"`
	CompletedEnrollments int64 `json:"completed_enrollments"`
	CompletionRate       int   `json:"completion_rate"`
}

// BranchStats has the global shape filtered to one branch
type BranchStats struct {
	BranchID             int64 `json:"branch_id"`
	TotalUsers           int64 `json:"total_users"`
	ActiveUsers          int64 `json:"active_users"`
	LearnerCount         int64 `json:"learner_count"`
	InstructorCount      int64 `json:"instructor_count"`
	AdminCount           int64 `json:"admin_count"`
	TotalCourses         int64 `json:"total_courses"`
	TotalEnrollments     int64 `json:"total_enrollments"`
	CompletedEnrollments int64 `json:"completed_enrollments"`
	CompletionRate       int   `json:"completion_rate"`
}

// InstructorStats summarises the courses an instructor teaches
type InstructorStats struct {
	UserID                int64 `json:"user_id"`
	AssignedCoursesCount  int64 `json:"assigned_courses_count"`
	InstructorGroupsCount int64 `json:"instructor_groups_count"`
	UniqueLearnersCount   int64 `json:"unique_learners_count"`
	TotalEnrollments      int64 `json:"total_enrollments"`
	CompletedEnrollments  int64 `json:"completed_enrollments"`
	CompletionRate        int   `json:"completion_rate"`
}

// ProgressData splits learner enrollments into disjoint buckets
type ProgressData struct {
	TotalEnrollments     int64 `json:"total_enrollments"`
	CompletedCount       int64 `json:"completed_count"`
	InProgressCount      int64 `json:"in_progress_count"`
	NotStartedCount      int64 `json:"not_started_count"`
	CompletedPercentage  int   `json:"completed_percentage"`
	InProgressPercentage int   `json:"in_progress_percentage"`
	NotStartedPercentage int   `json:"not_started_percentage"`
	NotPassedPercentage  int   `json:"not_passed_percentage"`
}

// ActivityData holds parallel series for a chart
type ActivityData struct {
	Timeframe   valueobjects.Timeframe `json:"timeframe"`
	Labels      []string               `json:"labels"`
	Logins      []int64                `json:"logins"`
	Completions []int64                `json:"completions"`
}

// RecentActivity is one row of the activity feed
type RecentActivity struct {
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	Icon        string    `json:"icon"`
	User        string    `json:"user"`
}
