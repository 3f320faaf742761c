package postgres

import (
	"context"

	"go.uber.org/zap"
)

// Enrollments with topics are completed exactly when every topic is done.
// Rows already consistent are not touched, so repeated runs change nothing.
const resyncSQL = `UPDATE enrollments e SET
	completed = (e.topics_completed >= e.total_topics),
	completion_date = CASE
		WHEN e.topics_completed >= e.total_topics THEN COALESCE(e.completion_date, NOW())
		ELSE NULL
	END
WHERE e.total_topics > 0
	AND e.completed IS DISTINCT FROM (e.topics_completed >= e.total_topics)`

// ResyncBranch implements ports.CompletionSyncer
func (s *Store) ResyncBranch(ctx context.Context, branchID int64) (int64, error) {
	return s.resync(ctx, "resync_branch",
		resyncSQL+" AND e.user_id IN (SELECT id FROM users WHERE branch_id = $1)", branchID)
}

// ResyncUser implements ports.CompletionSyncer
func (s *Store) ResyncUser(ctx context.Context, userID int64) (int64, error) {
	return s.resync(ctx, "resync_user", resyncSQL+" AND e.user_id = $1", userID)
}

func (s *Store) resync(ctx context.Context, op, query string, id int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, dbError(op, err)
	}
	changed, err := res.RowsAffected()
	if err != nil {
		return 0, dbError(op, err)
	}
	if changed > 0 {
		s.logger.Debug("Resynced enrollment completion",
			zap.String("operation", op),
			zap.Int64("id", id),
			zap.Int64("changed", changed),
		)
	}
	return changed, nil
}
