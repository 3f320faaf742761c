package entities

import (
	"time"

	"lms-dashboard/domain/core/valueobjects"
)

// User is the subset of an LMS account the dashboards aggregate over
type User struct {
	ID        int64             `json:"id"`
	Username  string            `json:"username"`
	Role      valueobjects.Role `json:"role"`
	IsActive  bool              `json:"is_active"`
	BranchID  *int64            `json:"branch_id,omitempty"`
	LastLogin *time.Time        `json:"last_login,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// InBranch reports whether the user is assigned to the given branch
func (u User) InBranch(branchID int64) bool {
	return u.BranchID != nil && *u.BranchID == branchID
}

// Branch is a tenant-scoped organizational unit owning users and courses
type Branch struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	BusinessID *int64 `json:"business_id,omitempty"`
}

// Business groups branches under a shared owner
type Business struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// UserScope is the tenancy derived for a user: its branch and that branch's business.
// Either value may be nil; users without a branch are valid.
type UserScope struct {
	BranchID   *int64
	BusinessID *int64
}
