package postgres

import (
	"context"
	"database/sql"

	"lms-dashboard/infrastructure/persistence/schema"

	"go.uber.org/zap"
)

// Migrations creates the subset of LMS tables the dashboards read. Against a
// live LMS database these already exist and every statement is a no-op.
var Migrations = []schema.Migration{
	{
		Version:     1,
		Description: "dashboard source tables",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS businesses (
				id   BIGSERIAL PRIMARY KEY,
				name TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS branches (
				id          BIGSERIAL PRIMARY KEY,
				name        TEXT NOT NULL,
				business_id BIGINT REFERENCES businesses(id)
			)`,
			`CREATE TABLE IF NOT EXISTS users (
				id         BIGSERIAL PRIMARY KEY,
				username   TEXT NOT NULL UNIQUE,
				role       TEXT NOT NULL,
				is_active  BOOLEAN NOT NULL DEFAULT TRUE,
				branch_id  BIGINT REFERENCES branches(id),
				last_login TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE IF NOT EXISTS courses (
				id            BIGSERIAL PRIMARY KEY,
				title         TEXT NOT NULL,
				branch_id     BIGINT REFERENCES branches(id),
				instructor_id BIGINT REFERENCES users(id)
			)`,
			`CREATE TABLE IF NOT EXISTS groups (
				id        BIGSERIAL PRIMARY KEY,
				name      TEXT NOT NULL,
				branch_id BIGINT REFERENCES branches(id)
			)`,
			`CREATE TABLE IF NOT EXISTS group_members (
				group_id  BIGINT NOT NULL REFERENCES groups(id),
				user_id   BIGINT NOT NULL REFERENCES users(id),
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				PRIMARY KEY (group_id, user_id)
			)`,
			`CREATE TABLE IF NOT EXISTS course_group_access (
				course_id    BIGINT NOT NULL REFERENCES courses(id),
				group_id     BIGINT NOT NULL REFERENCES groups(id),
				access_label TEXT NOT NULL DEFAULT 'learner',
				is_active    BOOLEAN NOT NULL DEFAULT TRUE,
				PRIMARY KEY (course_id, group_id)
			)`,
			`CREATE TABLE IF NOT EXISTS enrollments (
				id               BIGSERIAL PRIMARY KEY,
				user_id          BIGINT NOT NULL REFERENCES users(id),
				course_id        BIGINT NOT NULL REFERENCES courses(id),
				completed        BOOLEAN NOT NULL DEFAULT FALSE,
				completion_date  TIMESTAMPTZ,
				topics_completed INTEGER NOT NULL DEFAULT 0,
				total_topics     INTEGER NOT NULL DEFAULT 0,
				enrolled_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE IF NOT EXISTS audit_log (
				id          BIGSERIAL PRIMARY KEY,
				user_id     BIGINT REFERENCES users(id),
				username    TEXT,
				action      TEXT NOT NULL,
				description TEXT,
				timestamp   TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
		},
	},
	{
		Version:     2,
		Description: "dashboard aggregate indexes",
		Statements: []string{
			`CREATE INDEX IF NOT EXISTS users_branch_idx ON users (branch_id)`,
			`CREATE INDEX IF NOT EXISTS users_last_login_idx ON users (last_login)`,
			`CREATE INDEX IF NOT EXISTS enrollments_user_idx ON enrollments (user_id)`,
			`CREATE INDEX IF NOT EXISTS enrollments_course_idx ON enrollments (course_id)`,
			`CREATE INDEX IF NOT EXISTS enrollments_completion_idx ON enrollments (completion_date) WHERE completed`,
			`CREATE INDEX IF NOT EXISTS audit_log_timestamp_idx ON audit_log (timestamp DESC)`,
		},
	},
}

// Migrate brings the dashboard source tables up to date
func Migrate(ctx context.Context, db *sql.DB, logger *zap.Logger) (int, error) {
	evolution := schema.NewSchemaEvolution(db, logger)
	for _, m := range Migrations {
		if err := evolution.RegisterMigration(m); err != nil {
			return 0, err
		}
	}
	return evolution.Migrate(ctx)
}
