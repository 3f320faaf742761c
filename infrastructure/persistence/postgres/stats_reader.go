package postgres

import (
	"context"
	"fmt"
	"time"

	"lms-dashboard/application/ports"
	"lms-dashboard/domain/core/valueobjects"
	"lms-dashboard/domain/dashboard"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// CountUsers implements ports.StatsReader
func (s *Store) CountUsers(ctx context.Context, filter ports.UserFilter) (int64, error) {
	w := userWhere(filter)
	return s.countQuery(ctx, "count_users", "SELECT COUNT(*) FROM users"+w.String(), w.args...)
}

// CountUsersByRole implements ports.StatsReader
func (s *Store) CountUsersByRole(ctx context.Context, filter ports.UserFilter) (map[valueobjects.Role]int64, error) {
	w := userWhere(filter)
	rows, err := s.db.QueryContext(ctx, "SELECT role, COUNT(*) FROM users"+w.String()+" GROUP BY role", w.args...)
	if err != nil {
		return nil, dbError("count_users_by_role", err)
	}
	defer rows.Close()

	counts := make(map[valueobjects.Role]int64)
	for rows.Next() {
		var raw string
		var n int64
		if err := rows.Scan(&raw, &n); err != nil {
			return nil, dbError("count_users_by_role", err)
		}
		role, err := valueobjects.ParseRole(raw)
		if err != nil {
			s.logger.Warn("Skipping users with unknown role", zap.String("role", raw), zap.Int64("count", n))
			continue
		}
		counts[role] += n
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("count_users_by_role", err)
	}
	return counts, nil
}

// CountCourses implements ports.StatsReader
func (s *Store) CountCourses(ctx context.Context, branchID *int64) (int64, error) {
	if branchID == nil {
		return s.countQuery(ctx, "count_courses", "SELECT COUNT(*) FROM courses")
	}
	return s.countQuery(ctx, "count_courses", "SELECT COUNT(*) FROM courses WHERE branch_id = $1", *branchID)
}

// CountBranches implements ports.StatsReader
func (s *Store) CountBranches(ctx context.Context) (int64, error) {
	return s.countQuery(ctx, "count_branches", "SELECT COUNT(*) FROM branches")
}

// CountEnrollments implements ports.StatsReader
func (s *Store) CountEnrollments(ctx context.Context, filter ports.EnrollmentFilter) (int64, error) {
	w := enrollmentWhere(filter)
	return s.countQuery(ctx, "count_enrollments", "SELECT COUNT(*)"+enrollmentFrom+w.String(), w.args...)
}

// CountProgress implements ports.StatsReader. The three buckets are disjoint:
// completed wins over topic progress.
func (s *Store) CountProgress(ctx context.Context, filter ports.EnrollmentFilter) (ports.ProgressCounts, error) {
	w := enrollmentWhere(filter)
	query := `SELECT
		COUNT(*) FILTER (WHERE e.completed),
		COUNT(*) FILTER (WHERE NOT e.completed AND e.topics_completed > 0),
		COUNT(*) FILTER (WHERE NOT e.completed AND e.topics_completed = 0)` + enrollmentFrom + w.String()

	var c ports.ProgressCounts
	if err := s.db.QueryRowContext(ctx, query, w.args...).Scan(&c.Completed, &c.InProgress, &c.NotStarted); err != nil {
		return ports.ProgressCounts{}, dbError("count_progress", err)
	}
	return c, nil
}

// CountDistinctLearners implements ports.StatsReader
func (s *Store) CountDistinctLearners(ctx context.Context, courseIDs []int64) (int64, error) {
	return s.countQuery(ctx, "count_distinct_learners",
		`SELECT COUNT(DISTINCT e.user_id) FROM enrollments e
		JOIN users u ON u.id = e.user_id
		WHERE e.course_id = ANY($1) AND u.role = $2`,
		pq.Array(courseIDs), string(valueobjects.RoleLearner))
}

// DirectCourseIDs implements ports.StatsReader
func (s *Store) DirectCourseIDs(ctx context.Context, instructorID int64) ([]int64, error) {
	return s.idQuery(ctx, "direct_course_ids",
		"SELECT id FROM courses WHERE instructor_id = $1 ORDER BY id", instructorID)
}

// ActiveGroupIDs implements ports.StatsReader
func (s *Store) ActiveGroupIDs(ctx context.Context, userID int64) ([]int64, error) {
	return s.idQuery(ctx, "active_group_ids",
		"SELECT DISTINCT group_id FROM group_members WHERE user_id = $1 AND is_active ORDER BY group_id", userID)
}

// TeachingCourseIDs implements ports.StatsReader
func (s *Store) TeachingCourseIDs(ctx context.Context, groupIDs []int64) ([]int64, error) {
	return s.idQuery(ctx, "teaching_course_ids",
		`SELECT DISTINCT course_id FROM course_group_access
		WHERE group_id = ANY($1) AND is_active AND access_label = ANY($2)
		ORDER BY course_id`,
		pq.Array(groupIDs), pq.Array([]string{string(valueobjects.AccessInstructor), string(valueobjects.AccessGeneral)}))
}

// GroupIDsForCourses implements ports.StatsReader
func (s *Store) GroupIDsForCourses(ctx context.Context, courseIDs []int64) ([]int64, error) {
	return s.idQuery(ctx, "group_ids_for_courses",
		`SELECT DISTINCT group_id FROM course_group_access
		WHERE course_id = ANY($1) AND is_active
		ORDER BY group_id`,
		pq.Array(courseIDs))
}

// CountLoginsByBucket implements ports.StatsReader
func (s *Store) CountLoginsByBucket(ctx context.Context, query ports.ActivityQuery) ([]dashboard.BucketCount, error) {
	w := &where{}
	w.add("last_login >= ?", query.From)
	w.add("last_login < ?", query.To)
	if query.BranchID != nil {
		w.add("branch_id = ?", *query.BranchID)
	}
	return s.bucketQuery(ctx, "count_logins_by_bucket", "last_login", "users", w, query)
}

// CountCompletionsByBucket implements ports.StatsReader
func (s *Store) CountCompletionsByBucket(ctx context.Context, query ports.ActivityQuery) ([]dashboard.BucketCount, error) {
	w := &where{}
	w.add("e.completed = ?", true)
	w.add("e.completion_date >= ?", query.From)
	w.add("e.completion_date < ?", query.To)
	if query.BranchID != nil {
		w.add("u.branch_id = ?", *query.BranchID)
	}
	return s.bucketQuery(ctx, "count_completions_by_bucket", "e.completion_date",
		"enrollments e JOIN users u ON u.id = e.user_id", w, query)
}

// bucketQuery groups column by date_trunc in the window's time zone
func (s *Store) bucketQuery(ctx context.Context, op, column, from string, w *where, query ports.ActivityQuery) ([]dashboard.BucketCount, error) {
	loc := query.From.Location()
	unit := "day"
	if query.Granularity == dashboard.GranularityHour {
		unit = "hour"
	}

	tz := loc.String()
	args := append(w.args, tz)
	bucket := fmt.Sprintf("date_trunc('%s', %s AT TIME ZONE $%d)", unit, column, len(args))
	sqlText := fmt.Sprintf("SELECT %s AS bucket, COUNT(*) FROM %s%s GROUP BY bucket ORDER BY bucket", bucket, from, w.String())

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, dbError(op, err)
	}
	defer rows.Close()

	var out []dashboard.BucketCount
	for rows.Next() {
		var local time.Time
		var n int64
		if err := rows.Scan(&local, &n); err != nil {
			return nil, dbError(op, err)
		}
		// AT TIME ZONE yields a zone-less wall time; pin it back to the window's zone
		start := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, loc)
		out = append(out, dashboard.BucketCount{Start: start, Count: n})
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(op, err)
	}
	return out, nil
}
