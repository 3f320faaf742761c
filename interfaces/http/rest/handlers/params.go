package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"lms-dashboard/domain/core/entities"
	"lms-dashboard/pkg/auth"
	pkgerrors "lms-dashboard/pkg/errors"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 16

// pathID parses a positive integer URL parameter
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, pkgerrors.NewValidationError(fmt.Sprintf("%s must be a positive integer", name))
	}
	return id, nil
}

// queryID parses an optional positive integer query parameter
func queryID(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("%s must be a positive integer", name))
	}
	return &id, nil
}

// queryBool parses an optional boolean query parameter
func queryBool(r *http.Request, name string, def bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, pkgerrors.NewValidationError(fmt.Sprintf("%s must be a boolean", name))
	}
	return v, nil
}

// viewer returns the authenticated viewer; the auth middleware guarantees one
func viewer(r *http.Request) (*entities.Viewer, error) {
	v, ok := auth.ViewerFromContext(r.Context())
	if !ok {
		return nil, pkgerrors.NewUnauthorizedError("")
	}
	return v, nil
}
