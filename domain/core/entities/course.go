package entities

import "lms-dashboard/domain/core/valueobjects"

// Course is a unit of learning delivered in a branch
type Course struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	BranchID     *int64 `json:"branch_id,omitempty"`
	InstructorID *int64 `json:"instructor_id,omitempty"`
}

// Group is a set of users that can be granted access to courses
type Group struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	BranchID *int64 `json:"branch_id,omitempty"`
}

// GroupMember links a user to a group
type GroupMember struct {
	GroupID  int64 `json:"group_id"`
	UserID   int64 `json:"user_id"`
	IsActive bool  `json:"is_active"`
}

// CourseAccess grants a group access to a course under an access label
type CourseAccess struct {
	CourseID int64                    `json:"course_id"`
	GroupID  int64                    `json:"group_id"`
	Label    valueobjects.AccessLabel `json:"label"`
	IsActive bool                     `json:"is_active"`
}
