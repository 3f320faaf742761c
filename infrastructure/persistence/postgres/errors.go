package postgres

import (
	"database/sql"
	"errors"

	pkgerrors "lms-dashboard/pkg/errors"

	"github.com/lib/pq"
)

// dbError wraps a driver error, keeping the Postgres error code when present
func dbError(op string, err error) error {
	appErr := pkgerrors.NewDatabaseError(op, err)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		appErr = appErr.WithCode(string(pqErr.Code)).WithDetails(map[string]interface{}{
			"pg_code":  string(pqErr.Code),
			"pg_class": pqErr.Code.Class().Name(),
		})
	}
	return appErr
}

// notFoundOr maps sql.ErrNoRows to a not-found error
func notFoundOr(resource, op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return pkgerrors.NewNotFoundError(resource)
	}
	return dbError(op, err)
}
