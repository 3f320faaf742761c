package schema

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	first  = Migration{Version: 1, Description: "tables", Statements: []string{"CREATE TABLE a (id INT)"}}
	second = Migration{Version: 2, Description: "indexes", Statements: []string{"CREATE INDEX a_id ON a (id)"}}
)

func TestSchemaEvolution_RegisterMigration(t *testing.T) {
	s := NewSchemaEvolution(nil, zap.NewNop())

	require.NoError(t, s.RegisterMigration(second))
	require.NoError(t, s.RegisterMigration(first))
	assert.Error(t, s.RegisterMigration(first))
	assert.Error(t, s.RegisterMigration(Migration{Version: 3}))

	assert.Equal(t, 1, s.migrations[0].Version)
}

func TestSchemaEvolution_MigrateAppliesPending(t *testing.T) {
	// Arrange
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewSchemaEvolution(db, zap.NewNop())
	require.NoError(t, s.RegisterMigration(first))
	require.NoError(t, s.RegisterMigration(second))

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_versions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version, description, checksum, applied_at FROM schema_versions").
		WillReturnRows(sqlmock.NewRows([]string{"version", "description", "checksum", "applied_at"}).
			AddRow(1, "tables", first.Checksum(), time.Now()))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX a_id ON a (id)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_versions").
		WithArgs(2, "indexes", second.Checksum()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// Act
	version, err := s.Migrate(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaEvolution_MigrateDetectsModifiedMigration(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewSchemaEvolution(db, zap.NewNop())
	require.NoError(t, s.RegisterMigration(first))

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_versions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version").
		WillReturnRows(sqlmock.NewRows([]string{"version", "description", "checksum", "applied_at"}).
			AddRow(1, "tables", "stale", time.Now()))

	_, err = s.Migrate(context.Background())

	assert.ErrorContains(t, err, "modified")
}
