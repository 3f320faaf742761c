package postgres

import (
	"context"
	"database/sql"

	"lms-dashboard/application/ports"
	"lms-dashboard/domain/core/entities"

	"go.uber.org/zap"
)

// EnrollmentRepository persists enrollments
type EnrollmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEnrollmentRepository creates a new enrollment repository
func NewEnrollmentRepository(db *sql.DB, logger *zap.Logger) *EnrollmentRepository {
	return &EnrollmentRepository{db: db, logger: logger}
}

const enrollmentColumns = "id, user_id, course_id, completed, completion_date, topics_completed, total_topics, enrolled_at"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEnrollment(row rowScanner) (*entities.Enrollment, error) {
	var e entities.Enrollment
	var completedAt sql.NullTime
	if err := row.Scan(&e.ID, &e.UserID, &e.CourseID, &e.Completed, &completedAt,
		&e.TopicsCompleted, &e.TotalTopics, &e.EnrolledAt); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		e.CompletionDate = &t
	}
	return &e, nil
}

// Create implements ports.EnrollmentRepository
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *entities.Enrollment) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO enrollments (user_id, course_id, completed, completion_date, topics_completed, total_topics, enrolled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		enrollment.UserID, enrollment.CourseID, enrollment.Completed, nullTime(enrollment.CompletionDate),
		enrollment.TopicsCompleted, enrollment.TotalTopics, enrollment.EnrolledAt,
	).Scan(&enrollment.ID)
	if err != nil {
		return dbError("create_enrollment", err)
	}
	return nil
}

// GetByID implements ports.EnrollmentRepository
func (r *EnrollmentRepository) GetByID(ctx context.Context, id int64) (*entities.Enrollment, error) {
	e, err := scanEnrollment(r.db.QueryRowContext(ctx,
		"SELECT "+enrollmentColumns+" FROM enrollments WHERE id = $1", id))
	if err != nil {
		return nil, notFoundOr("enrollment", "get_enrollment", err)
	}
	return e, nil
}

// Update implements ports.EnrollmentRepository
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *entities.Enrollment) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE enrollments SET completed = $2, completion_date = $3, topics_completed = $4, total_topics = $5
		WHERE id = $1`,
		enrollment.ID, enrollment.Completed, nullTime(enrollment.CompletionDate),
		enrollment.TopicsCompleted, enrollment.TotalTopics)
	if err != nil {
		return dbError("update_enrollment", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFoundOr("enrollment", "update_enrollment", sql.ErrNoRows)
	}
	return nil
}

// Delete implements ports.EnrollmentRepository
func (r *EnrollmentRepository) Delete(ctx context.Context, id int64) (*entities.Enrollment, error) {
	e, err := scanEnrollment(r.db.QueryRowContext(ctx,
		"DELETE FROM enrollments WHERE id = $1 RETURNING "+enrollmentColumns, id))
	if err != nil {
		return nil, notFoundOr("enrollment", "delete_enrollment", err)
	}
	return e, nil
}

var _ ports.EnrollmentRepository = (*EnrollmentRepository)(nil)
