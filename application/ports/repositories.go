package ports

import (
	"context"
	"time"

	"lms-dashboard/domain/core/entities"
	"lms-dashboard/domain/core/valueobjects"
	"lms-dashboard/domain/dashboard"
)

// UserFilter narrows user counts
type UserFilter struct {
	BranchID   *int64
	ActiveOnly bool
}

// EnrollmentFilter narrows enrollment aggregates. Nil fields do not filter.
type EnrollmentFilter struct {
	BranchID   *int64
	BusinessID *int64
	// BranchIDs restricts to any of these branches when non-nil
	BranchIDs []int64
	// UserIDs restricts to enrollments of these users when non-nil
	UserIDs []int64
	// CourseIDs restricts to these courses when non-nil
	CourseIDs    []int64
	LearnersOnly bool
	Completed    *bool
}

// ProgressCounts are the three disjoint progress buckets
type ProgressCounts struct {
	Completed  int64
	InProgress int64
	NotStarted int64
}

// ActivityQuery selects a time-bucketed count
type ActivityQuery struct {
	From        time.Time
	To          time.Time
	Granularity dashboard.Granularity
	BranchID    *int64
}

// StatsReader defines the aggregate queries the dashboards are computed from
// This is a port in hexagonal architecture - the store behind it is owned by the LMS
type StatsReader interface {
	// CountUsers counts users matching the filter
	CountUsers(ctx context.Context, filter UserFilter) (int64, error)

	// CountUsersByRole counts users matching the filter, grouped by role
	CountUsersByRole(ctx context.Context, filter UserFilter) (map[valueobjects.Role]int64, error)

	// CountCourses counts courses, optionally in one branch
	CountCourses(ctx context.Context, branchID *int64) (int64, error)

	// CountBranches counts all branches
	CountBranches(ctx context.Context) (int64, error)

	// CountEnrollments counts enrollments matching the filter
	CountEnrollments(ctx context.Context, filter EnrollmentFilter) (int64, error)

	// CountProgress groups enrollments matching the filter into progress buckets
	CountProgress(ctx context.Context, filter EnrollmentFilter) (ProgressCounts, error)

	// CountDistinctLearners counts learner-role users enrolled in any of the courses
	CountDistinctLearners(ctx context.Context, courseIDs []int64) (int64, error)

	// DirectCourseIDs returns courses whose instructor is the user
	DirectCourseIDs(ctx context.Context, instructorID int64) ([]int64, error)

	// ActiveGroupIDs returns groups the user is an active member of
	ActiveGroupIDs(ctx context.Context, userID int64) ([]int64, error)

	// TeachingCourseIDs returns courses the groups can access under an instructor or general label
	TeachingCourseIDs(ctx context.Context, groupIDs []int64) ([]int64, error)

	// GroupIDsForCourses returns groups with active access to any of the courses
	GroupIDsForCourses(ctx context.Context, courseIDs []int64) ([]int64, error)

	// CountLoginsByBucket groups last-login timestamps into buckets
	CountLoginsByBucket(ctx context.Context, query ActivityQuery) ([]dashboard.BucketCount, error)

	// CountCompletionsByBucket groups enrollment completion timestamps into buckets
	CountCompletionsByBucket(ctx context.Context, query ActivityQuery) ([]dashboard.BucketCount, error)
}

// CompletionSyncer brings stored completion flags in line with topic progress.
// Both operations are idempotent and safe to run concurrently.
type CompletionSyncer interface {
	// ResyncBranch updates enrollments of users in the branch, returning the rows changed
	ResyncBranch(ctx context.Context, branchID int64) (int64, error)

	// ResyncUser updates enrollments of one user, returning the rows changed
	ResyncUser(ctx context.Context, userID int64) (int64, error)
}

// AuditLog reads recent actions
type AuditLog interface {
	// RecentEntries returns up to limit entries, newest first
	RecentEntries(ctx context.Context, limit int) ([]entities.AuditEntry, error)

	// Record appends an entry
	Record(ctx context.Context, entry entities.AuditEntry) error
}

// Directory resolves tenancy for users
type Directory interface {
	// UserScope returns the user's branch and that branch's business; missing values are nil
	UserScope(ctx context.Context, userID int64) (entities.UserScope, error)

	// UserBranches maps each known user to its branch; users without a branch are absent
	UserBranches(ctx context.Context, userIDs []int64) (map[int64]int64, error)

	// BusinessBranchIDs returns the branches of the businesses
	BusinessBranchIDs(ctx context.Context, businessIDs []int64) ([]int64, error)
}

// EnrollmentScoper applies role-based visibility to an enrollment filter
type EnrollmentScoper interface {
	// Scope narrows filter to what viewer may see
	Scope(ctx context.Context, viewer entities.Viewer, filter EnrollmentFilter) (EnrollmentFilter, error)
}

// EnrollmentRepository persists enrollments
type EnrollmentRepository interface {
	// Create persists a new enrollment and assigns its ID
	Create(ctx context.Context, enrollment *entities.Enrollment) error

	// GetByID retrieves an enrollment
	GetByID(ctx context.Context, id int64) (*entities.Enrollment, error)

	// Update persists progress and completion changes
	Update(ctx context.Context, enrollment *entities.Enrollment) error

	// Delete removes an enrollment and returns the removed row
	Delete(ctx context.Context, id int64) (*entities.Enrollment, error)
}

// UserRepository persists the activity-relevant parts of users
type UserRepository interface {
	// GetByID retrieves a user
	GetByID(ctx context.Context, id int64) (*entities.User, error)

	// Create persists a new user and assigns its ID
	Create(ctx context.Context, user *entities.User) error

	// RecordLogin sets the last-login timestamp
	RecordLogin(ctx context.Context, userID int64, at time.Time) (*entities.User, error)

	// SetActive toggles the active flag
	SetActive(ctx context.Context, userID int64, active bool) (*entities.User, error)
}
