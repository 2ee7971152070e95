package memory

import (
	"context"
	"strings"
	"time"

	"mamacare.app/internal/auth"
	"mamacare.app/internal/store"
)

func (s *Store) CreateAdmin(_ context.Context, a *auth.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.admins {
		if strings.EqualFold(existing.Email, a.Email) {
			return store.Conflict(store.ConstraintAdminEmail)
		}
		if strings.EqualFold(existing.Username, a.Username) {
			return store.Conflict(store.ConstraintAdminUsername)
		}
	}
	s.admins[a.ID] = cloneAdmin(*a)
	return nil
}

func (s *Store) AdminByID(_ context.Context, id string) (auth.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.admins[id]
	if !ok {
		return auth.Admin{}, store.ErrNotFound
	}
	return cloneAdmin(a), nil
}

func (s *Store) AdminByEmail(_ context.Context, email string) (auth.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.admins {
		if strings.EqualFold(a.Email, email) {
			return cloneAdmin(a), nil
		}
	}
	return auth.Admin{}, store.ErrNotFound
}

func (s *Store) UpdateAdminPassword(_ context.Context, id, hash string, at time.Time) error {
	return s.mutateAdmin(id, func(a *auth.Admin) {
		a.PasswordHash = hash
		a.UpdatedAt = at
	})
}

func (s *Store) RecordAdminLogin(_ context.Context, id string, at time.Time) error {
	return s.mutateAdmin(id, func(a *auth.Admin) {
		a.LastLogin = &at
	})
}

func (s *Store) mutateAdmin(id string, fn func(*auth.Admin)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[id]
	if !ok {
		return store.ErrNotFound
	}
	fn(&a)
	s.admins[id] = a
	return nil
}

func cloneAdmin(a auth.Admin) auth.Admin {
	a.Permissions = append([]string(nil), a.Permissions...)
	a.LastLogin = cloneTime(a.LastLogin)
	return a
}
