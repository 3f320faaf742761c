package postgres

import (
	"context"
	"database/sql"

	"lms-dashboard/domain/core/entities"
)

// RecentEntries implements ports.AuditLog. Entries recorded without a
// username take the acting user's current one.
func (s *Store) RecentEntries(ctx context.Context, limit int) ([]entities.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.user_id, COALESCE(a.username, u.username, ''), a.action, COALESCE(a.description, ''), a.timestamp
		FROM audit_log a
		LEFT JOIN users u ON u.id = a.user_id
		ORDER BY a.timestamp DESC, a.id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, dbError("recent_audit_entries", err)
	}
	defer rows.Close()

	var entries []entities.AuditEntry
	for rows.Next() {
		var e entities.AuditEntry
		var userID sql.NullInt64
		if err := rows.Scan(&e.ID, &userID, &e.Username, &e.Action, &e.Description, &e.Timestamp); err != nil {
			return nil, dbError("recent_audit_entries", err)
		}
		if userID.Valid {
			uid := userID.Int64
			e.UserID = &uid
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("recent_audit_entries", err)
	}
	return entries, nil
}

// Record implements ports.AuditLog
func (s *Store) Record(ctx context.Context, entry entities.AuditEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (user_id, username, action, description, timestamp)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5)`,
		nullInt64(entry.UserID), entry.Username, entry.Action, entry.Description, entry.Timestamp)
	if err != nil {
		return dbError("record_audit_entry", err)
	}
	return nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
