package entities

import "lms-dashboard/domain/core/valueobjects"

// Viewer is the user a dashboard is rendered for
type Viewer struct {
	UserID      int64
	Role        valueobjects.Role
	BranchID    *int64
	BusinessIDs []int64
}
