package postgres

import (
	"context"
	"database/sql"
	"time"

	"lms-dashboard/application/ports"
	"lms-dashboard/domain/core/entities"
	"lms-dashboard/domain/core/valueobjects"

	"go.uber.org/zap"
)

// UserRepository persists the activity-relevant columns of users
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

const userColumns = "id, username, role, is_active, branch_id, last_login, created_at"

func scanUser(row rowScanner) (*entities.User, error) {
	var u entities.User
	var role string
	var branch sql.NullInt64
	var lastLogin sql.NullTime
	if err := row.Scan(&u.ID, &u.Username, &role, &u.IsActive, &branch, &lastLogin, &u.CreatedAt); err != nil {
		return nil, err
	}
	r, err := valueobjects.ParseRole(role)
	if err != nil {
		return nil, err
	}
	u.Role = r
	u.BranchID = int64Ptr(branch)
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return &u, nil
}

// GetByID implements ports.UserRepository
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		return nil, notFoundOr("user", "get_user", err)
	}
	return u, nil
}

// Create implements ports.UserRepository
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (username, role, is_active, branch_id, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		user.Username, user.Role.String(), user.IsActive, nullInt64(user.BranchID), user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		return dbError("create_user", err)
	}
	return nil
}

// RecordLogin implements ports.UserRepository
func (r *UserRepository) RecordLogin(ctx context.Context, userID int64, at time.Time) (*entities.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"UPDATE users SET last_login = $2 WHERE id = $1 RETURNING "+userColumns, userID, at))
	if err != nil {
		return nil, notFoundOr("user", "record_login", err)
	}
	return u, nil
}

// SetActive implements ports.UserRepository
func (r *UserRepository) SetActive(ctx context.Context, userID int64, active bool) (*entities.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"UPDATE users SET is_active = $2 WHERE id = $1 RETURNING "+userColumns, userID, active))
	if err != nil {
		return nil, notFoundOr("user", "set_user_active", err)
	}
	return u, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

var _ ports.UserRepository = (*UserRepository)(nil)
