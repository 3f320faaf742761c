package services

import (
	"context"
	"errors"
	"fmt"

	"lms-dashboard/application/ports"
	"lms-dashboard/domain/core/entities"
	"lms-dashboard/domain/core/valueobjects"
	pkgerrors "lms-dashboard/pkg/errors"
)

// AccessPolicy decides which tenants an actor may read and change.
//
// Global administrators reach everything. Superadministrators reach the
// branches of their businesses, branch administrators their own branch and
// instructors the courses they teach. Users are only ever created or changed
// by someone whose role is strictly higher.
type AccessPolicy struct {
	reader    ports.StatsReader
	directory ports.Directory
}

// NewAccessPolicy creates an access policy
func NewAccessPolicy(reader ports.StatsReader, directory ports.Directory) *AccessPolicy {
	return &AccessPolicy{reader: reader, directory: directory}
}

// BranchScope resolves the branch a branch-scoped request may use. nil means
// every branch and is only returned to global administrators. A
// superadministrator with a single branch is pinned to it; with several, the
// branch must be named.
func (p *AccessPolicy) BranchScope(ctx context.Context, actor *entities.Viewer, requested *int64) (*int64, error) {
	if actor == nil {
		return nil, pkgerrors.NewUnauthorizedError("")
	}

	switch actor.Role {
	case valueobjects.RoleGlobalAdmin:
		return requested, nil

	case valueobjects.RoleSuperAdmin:
		branches, err := p.businessBranches(ctx, actor)
		if err != nil {
			return nil, err
		}
		if requested == nil {
			switch len(branches) {
			case 0:
				return nil, pkgerrors.NewForbiddenError("no branches in your businesses")
			case 1:
				return &branches[0], nil
			}
			return nil, pkgerrors.NewValidationError("branch is required")
		}
		if !containsID(branches, *requested) {
			return nil, pkgerrors.NewForbiddenError("branch is outside your businesses")
		}
		return requested, nil

	case valueobjects.RoleAdmin:
		if actor.BranchID == nil {
			return nil, pkgerrors.NewForbiddenError("administrator has no branch")
		}
		if requested != nil && *requested != *actor.BranchID {
			return nil, pkgerrors.NewForbiddenError("administrators can only reach their own branch")
		}
		return actor.BranchID, nil
	}
	return nil, pkgerrors.NewForbiddenError("branch statistics require an administrator")
}

// CanViewAllBranches reports whether the actor may read unscoped aggregates
func (p *AccessPolicy) CanViewAllBranches(actor *entities.Viewer) bool {
	return actor != nil && actor.Role == valueobjects.RoleGlobalAdmin
}

// AuthorizeInstructorRead allows instructors their own statistics and
// administrators those of users inside their reach
func (p *AccessPolicy) AuthorizeInstructorRead(ctx context.Context, actor *entities.Viewer, userID int64) error {
	if actor == nil {
		return pkgerrors.NewUnauthorizedError("")
	}
	switch actor.Role {
	case valueobjects.RoleGlobalAdmin:
		return nil
	case valueobjects.RoleInstructor:
		if actor.UserID != userID {
			return pkgerrors.NewForbiddenError("instructors can only view their own statistics")
		}
		return nil
	case valueobjects.RoleSuperAdmin, valueobjects.RoleAdmin:
		return p.requireUserInReach(ctx, actor, userID)
	}
	return pkgerrors.NewForbiddenError("")
}

// AuthorizeUserCreate checks that the actor may create a user with role and
// returns the branch the user is placed in
func (p *AccessPolicy) AuthorizeUserCreate(ctx context.Context, actor *entities.Viewer, role valueobjects.Role, branchID *int64) (*int64, error) {
	if actor == nil {
		return nil, pkgerrors.NewUnauthorizedError("")
	}
	if !actor.Role.Outranks(role) {
		return nil, pkgerrors.NewForbiddenError(fmt.Sprintf("%s cannot create a %s", actor.Role, role))
	}
	return p.BranchScope(ctx, actor, branchID)
}

// AuthorizeUserChange checks that the actor may change target. The actor must
// outrank the target and reach the target's branch.
func (p *AccessPolicy) AuthorizeUserChange(ctx context.Context, actor *entities.Viewer, target *entities.User) error {
	if actor == nil {
		return pkgerrors.NewUnauthorizedError("")
	}
	if !actor.Role.Outranks(target.Role) {
		return pkgerrors.NewForbiddenError(fmt.Sprintf("%s cannot change a %s", actor.Role, target.Role))
	}
	if actor.Role == valueobjects.RoleGlobalAdmin {
		return nil
	}
	return p.requireBranchInReach(ctx, actor, target.BranchID)
}

// AuthorizeLogin allows users to record their own login and otherwise
// applies AuthorizeUserChange
func (p *AccessPolicy) AuthorizeLogin(ctx context.Context, actor *entities.Viewer, target *entities.User) error {
	if actor != nil && actor.UserID == target.ID {
		return nil
	}
	return p.AuthorizeUserChange(ctx, actor, target)
}

// AuthorizeEnrollmentWrite checks that the actor may enroll userID in
// courseID, or change or remove that enrollment. Administrators work on the
// learner's branch; instructors on the courses they teach.
func (p *AccessPolicy) AuthorizeEnrollmentWrite(ctx context.Context, actor *entities.Viewer, userID, courseID int64) error {
	if actor == nil {
		return pkgerrors.NewUnauthorizedError("")
	}
	switch actor.Role {
	case valueobjects.RoleGlobalAdmin:
		return nil
	case valueobjects.RoleSuperAdmin, valueobjects.RoleAdmin:
		return p.requireUserInReach(ctx, actor, userID)
	case valueobjects.RoleInstructor:
		courses, err := teachingCourseIDs(ctx, p.reader, actor.UserID)
		if err != nil {
			return fmt.Errorf("failed to resolve teaching courses: %w", err)
		}
		if !containsID(courses, courseID) {
			return pkgerrors.NewForbiddenError("instructors can only manage enrollments in courses they teach")
		}
		return nil
	}
	return pkgerrors.NewForbiddenError("")
}

func (p *AccessPolicy) requireUserInReach(ctx context.Context, actor *entities.Viewer, userID int64) error {
	scope, err := p.directory.UserScope(ctx, userID)
	if err != nil {
		var appErr *pkgerrors.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return fmt.Errorf("failed to resolve user scope: %w", err)
	}
	return p.requireBranchInReach(ctx, actor, scope.BranchID)
}

// requireBranchInReach applies to branch-bound roles only
func (p *AccessPolicy) requireBranchInReach(ctx context.Context, actor *entities.Viewer, branchID *int64) error {
	if branchID == nil {
		return pkgerrors.NewForbiddenError("user has no branch in your reach")
	}
	switch actor.Role {
	case valueobjects.RoleSuperAdmin:
		branches, err := p.businessBranches(ctx, actor)
		if err != nil {
			return err
		}
		if containsID(branches, *branchID) {
			return nil
		}
	case valueobjects.RoleAdmin:
		if actor.BranchID != nil && *actor.BranchID == *branchID {
			return nil
		}
	}
	return pkgerrors.NewForbiddenError("user is outside your branches")
}

func (p *AccessPolicy) businessBranches(ctx context.Context, actor *entities.Viewer) ([]int64, error) {
	if len(actor.BusinessIDs) == 0 {
		return nil, nil
	}
	branches, err := p.directory.BusinessBranchIDs(ctx, actor.BusinessIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve business branches: %w", err)
	}
	return branches, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
