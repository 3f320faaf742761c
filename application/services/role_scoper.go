package services

import (
	"context"
	"errors"

	"lms-dashboard/application/ports"
	"lms-dashboard/domain/core/entities"
	"lms-dashboard/domain/core/valueobjects"
)

// ErrViewerWithoutBranch is returned when a branch-bound role has no branch
var ErrViewerWithoutBranch = errors.New("viewer has no branch assigned")

// RoleScoper narrows enrollment filters by the viewer's role. Restrictions
// intersect with what the caller asked for, so a request outside the
// viewer's reach yields an empty result rather than an error.
type RoleScoper struct {
	reader    ports.StatsReader
	directory ports.Directory
}

// NewRoleScoper creates a role scoper
func NewRoleScoper(reader ports.StatsReader, directory ports.Directory) *RoleScoper {
	return &RoleScoper{reader: reader, directory: directory}
}

// Scope implements ports.EnrollmentScoper
func (s *RoleScoper) Scope(ctx context.Context, viewer entities.Viewer, filter ports.EnrollmentFilter) (ports.EnrollmentFilter, error) {
	switch viewer.Role {
	case valueobjects.RoleGlobalAdmin:
		return filter, nil

	case valueobjects.RoleSuperAdmin:
		branches, err := s.directory.BusinessBranchIDs(ctx, viewer.BusinessIDs)
		if err != nil {
			return filter, err
		}
		filter.BranchIDs = intersectIDs(filter.BranchIDs, branches)
		return filter, nil

	case valueobjects.RoleAdmin:
		if viewer.BranchID == nil {
			return filter, ErrViewerWithoutBranch
		}
		filter.BranchIDs = intersectIDs(filter.BranchIDs, []int64{*viewer.BranchID})
		return filter, nil

	case valueobjects.RoleInstructor:
		courses, err := teachingCourseIDs(ctx, s.reader, viewer.UserID)
		if err != nil {
			return filter, err
		}
		filter.CourseIDs = intersectIDs(filter.CourseIDs, courses)
		return filter, nil

	case valueobjects.RoleLearner:
		filter.UserIDs = intersectIDs(filter.UserIDs, []int64{viewer.UserID})
		return filter, nil

	default:
		return filter, valueobjects.ErrInvalidRole
	}
}

// teachingCourseIDs returns the courses an instructor teaches directly or
// through an active group
func teachingCourseIDs(ctx context.Context, reader ports.StatsReader, userID int64) ([]int64, error) {
	direct, err := reader.DirectCourseIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	groups, err := reader.ActiveGroupIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	var viaGroups []int64
	if len(groups) > 0 {
		if viaGroups, err = reader.TeachingCourseIDs(ctx, groups); err != nil {
			return nil, err
		}
	}
	return unionIDs(direct, viaGroups), nil
}

// intersectIDs applies allowed on top of an existing restriction. A nil
// current list means unrestricted; the result is never nil.
func intersectIDs(current, allowed []int64) []int64 {
	if current == nil {
		out := make([]int64, len(allowed))
		copy(out, allowed)
		return out
	}
	keep := make(map[int64]struct{}, len(allowed))
	for _, id := range allowed {
		keep[id] = struct{}{}
	}
	out := []int64{}
	for _, id := range current {
		if _, ok := keep[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

var _ ports.EnrollmentScoper = (*RoleScoper)(nil)
