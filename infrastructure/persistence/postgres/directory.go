package postgres

import (
	"context"
	"database/sql"

	"lms-dashboard/domain/core/entities"

	"github.com/lib/pq"
)

// UserScope implements ports.Directory
func (s *Store) UserScope(ctx context.Context, userID int64) (entities.UserScope, error) {
	var branch, business sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT u.branch_id, b.business_id FROM users u
		LEFT JOIN branches b ON b.id = u.branch_id
		WHERE u.id = $1`, userID).Scan(&branch, &business)
	if err != nil {
		return entities.UserScope{}, notFoundOr("user", "user_scope", err)
	}
	return entities.UserScope{BranchID: int64Ptr(branch), BusinessID: int64Ptr(business)}, nil
}

// UserBranches implements ports.Directory
func (s *Store) UserBranches(ctx context.Context, userIDs []int64) (map[int64]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, branch_id FROM users WHERE id = ANY($1) AND branch_id IS NOT NULL", pq.Array(userIDs))
	if err != nil {
		return nil, dbError("user_branches", err)
	}
	defer rows.Close()

	out := make(map[int64]int64, len(userIDs))
	for rows.Next() {
		var id, branch int64
		if err := rows.Scan(&id, &branch); err != nil {
			return nil, dbError("user_branches", err)
		}
		out[id] = branch
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("user_branches", err)
	}
	return out, nil
}

// BusinessBranchIDs implements ports.Directory
func (s *Store) BusinessBranchIDs(ctx context.Context, businessIDs []int64) ([]int64, error) {
	return s.idQuery(ctx, "business_branch_ids",
		"SELECT id FROM branches WHERE business_id = ANY($1) ORDER BY id", pq.Array(businessIDs))
}
