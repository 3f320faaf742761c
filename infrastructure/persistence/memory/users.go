package memory

import (
	"context"
	"time"

	"lms-dashboard/application/ports"
	"lms-dashboard/domain/core/entities"
	pkgerrors "lms-dashboard/pkg/errors"
)

// UserStore is the user-table view of a Store. It is split out because the
// enrollment repository methods share the same names.
type UserStore struct {
	s *Store
}

// Users returns the user repository backed by s
func (s *Store) Users() *UserStore {
	return &UserStore{s: s}
}

// GetByID implements ports.UserRepository
func (r *UserStore) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("user")
	}
	return &u, nil
}

// Create implements ports.UserRepository
func (r *UserStore) Create(ctx context.Context, user *entities.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextUserID++
	user.ID = r.s.nextUserID
	r.s.users[user.ID] = *user
	return nil
}

// RecordLogin implements ports.UserRepository
func (r *UserStore) RecordLogin(ctx context.Context, userID int64, at time.Time) (*entities.User, error) {
	return r.update(userID, func(u *entities.User) {
		t := at
		u.LastLogin = &t
	})
}

// SetActive implements ports.UserRepository
func (r *UserStore) SetActive(ctx context.Context, userID int64, active bool) (*entities.User, error) {
	return r.update(userID, func(u *entities.User) {
		u.IsActive = active
	})
}

func (r *UserStore) update(userID int64, apply func(*entities.User)) (*entities.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("user")
	}
	apply(&u)
	r.s.users[userID] = u
	return &u, nil
}

var _ ports.UserRepository = (*UserStore)(nil)
