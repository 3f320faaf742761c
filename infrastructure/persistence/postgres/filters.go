package postgres

import (
	"fmt"
	"strings"

	"lms-dashboard/application/ports"
	"lms-dashboard/domain/core/valueobjects"

	"github.com/lib/pq"
)

// where accumulates AND-ed conditions with positional placeholders
type where struct {
	conds []string
	args  []interface{}
}

// add appends a condition; each "?" in cond becomes the next $n placeholder
func (w *where) add(cond string, args ...interface{}) {
	for _, a := range args {
		w.args = append(w.args, a)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

// String renders the WHERE clause, or nothing when there are no conditions
func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

const enrollmentFrom = ` FROM enrollments e
	JOIN users u ON u.id = e.user_id
	LEFT JOIN branches b ON b.id = u.branch_id`

// enrollmentWhere translates an enrollment filter. An enrollment's branch is
// its user's branch.
func enrollmentWhere(filter ports.EnrollmentFilter) *where {
	w := &where{}
	if filter.LearnersOnly {
		w.add("u.role = ?", string(valueobjects.RoleLearner))
	}
	if filter.Completed != nil {
		w.add("e.completed = ?", *filter.Completed)
	}
	if filter.UserIDs != nil {
		w.add("e.user_id = ANY(?)", pq.Array(filter.UserIDs))
	}
	if filter.CourseIDs != nil {
		w.add("e.course_id = ANY(?)", pq.Array(filter.CourseIDs))
	}
	if filter.BranchID != nil {
		w.add("u.branch_id = ?", *filter.BranchID)
	}
	if filter.BranchIDs != nil {
		w.add("u.branch_id = ANY(?)", pq.Array(filter.BranchIDs))
	}
	if filter.BusinessID != nil {
		w.add("b.business_id = ?", *filter.BusinessID)
	}
	return w
}

func userWhere(filter ports.UserFilter) *where {
	w := &where{}
	if filter.ActiveOnly {
		w.add("is_active = ?", true)
	}
	if filter.BranchID != nil {
		w.add("branch_id = ?", *filter.BranchID)
	}
	return w
}
