package valueobjects

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRole is returned for role strings outside the known set
var ErrInvalidRole = errors.New("invalid role")

// Role is the closed set of LMS user roles.
// Callers parse role strings once at the boundary and pass the enum inward.
type Role string

const (
	RoleGlobalAdmin Role = "globaladmin"
	RoleSuperAdmin  Role = "superadmin"
	RoleAdmin       Role = "admin"
	RoleInstructor  Role = "instructor"
	RoleLearner     Role = "learner"
)

// AllRoles lists every role in descending privilege order
var AllRoles = []Role{RoleGlobalAdmin, RoleSuperAdmin, RoleAdmin, RoleInstructor, RoleLearner}

// ParseRole converts a stored role string into a Role
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// IsValid reports whether r is one of the known roles
func (r Role) IsValid() bool {
	switch r {
	case RoleGlobalAdmin, RoleSuperAdmin, RoleAdmin, RoleInstructor, RoleLearner:
		return true
	}
	return false
}

// Outranks reports whether r sits strictly above other in AllRoles
func (r Role) Outranks(other Role) bool {
	return r.rank() < other.rank()
}

func (r Role) rank() int {
	for i, role := range AllRoles {
		if role == r {
			return i
		}
	}
	return len(AllRoles)
}

// IsLearner is the only role predicate the dashboard cache needs for enrollment filtering
func (r Role) IsLearner() bool {
	return r == RoleLearner
}

func (r Role) String() string {
	return string(r)
}
