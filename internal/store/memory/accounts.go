package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"mamacare.app/internal/auth"
	"mamacare.app/internal/store"
)

func (s *Store) CreateAccount(_ context.Context, a *auth.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(a.Email)
	if _, ok := s.accountEmails[email]; ok {
		return store.Conflict(store.ConstraintAccountEmail)
	}
	if _, ok := s.accounts[a.ID]; ok {
		return store.Conflict("accounts_pkey")
	}
	s.accounts[a.ID] = cloneAccount(*a)
	s.accountEmails[email] = a.ID
	return nil
}

func (s *Store) AccountByID(_ context.Context, id string) (auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return auth.Account{}, store.ErrNotFound
	}
	return cloneAccount(a), nil
}

func (s *Store) AccountByEmail(_ context.Context, email string) (auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.accountEmails[strings.ToLower(email)]
	if !ok {
		return auth.Account{}, store.ErrNotFound
	}
	return cloneAccount(s.accounts[id]), nil
}

func (s *Store) ListAccounts(_ context.Context, f auth.AccountFilter) ([]auth.Account, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	search := strings.ToLower(strings.TrimSpace(f.Search))
	var matched []auth.Account
	for _, a := range s.accounts {
		if f.Role != "" && a.Role != f.Role {
			continue
		}
		if f.Active != nil && a.Active != *f.Active {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(a.FirstName+" "+a.LastName+" "+a.Email), search) {
			continue
		}
		matched = append(matched, cloneAccount(a))
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return paginate(matched, f.Offset, f.Limit), len(matched), nil
}

func (s *Store) RecordLoginFailure(_ context.Context, id string, attempts int, lockUntil *time.Time) error {
	return s.mutateAccount(id, func(a *auth.Account) {
		a.LoginAttempts = attempts
		a.LockUntil = cloneTime(lockUntil)
	})
}

func (s *Store) RecordLoginSuccess(_ context.Context, id string, at time.Time) error {
	return s.mutateAccount(id, func(a *auth.Account) {
		a.LoginAttempts = 0
		a.LockUntil = nil
		a.LastLogin = &at
	})
}

func (s *Store) UpdatePassword(_ context.Context, id, hash string, at time.Time) error {
	return s.mutateAccount(id, func(a *auth.Account) {
		a.PasswordHash = hash
		a.PasswordChangedAt = &at
		a.UpdatedAt = at
	})
}

func (s *Store) UpdateProfile(_ context.Context, in auth.Account) error {
	return s.mutateAccount(in.ID, func(a *auth.Account) {
		a.FirstName = in.FirstName
		a.LastName = in.LastName
		a.Phone = in.Phone
		a.Avatar = in.Avatar
		if in.Address != nil {
			addr := *in.Address
			a.Address = &addr
		}
		a.UpdatedAt = in.UpdatedAt
	})
}

func (s *Store) SetApproved(_ context.Context, id string, approved bool, at time.Time) error {
	return s.mutateAccount(id, func(a *auth.Account) {
		a.Approved = approved
		a.UpdatedAt = at
	})
}

func (s *Store) SetActive(_ context.Context, id string, active bool, at time.Time) error {
	return s.mutateAccount(id, func(a *auth.Account) {
		a.Active = active
		a.UpdatedAt = at
	})
}

func (s *Store) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.accounts, id)
	delete(s.accountEmails, strings.ToLower(a.Email))
	return nil
}

func (s *Store) mutateAccount(id string, fn func(*auth.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	fn(&a)
	s.accounts[id] = a
	return nil
}

func cloneAccount(a auth.Account) auth.Account {
	a.DateOfBirth = cloneTime(a.DateOfBirth)
	a.LockUntil = cloneTime(a.LockUntil)
	a.LastLogin = cloneTime(a.LastLogin)
	a.PasswordChangedAt = cloneTime(a.PasswordChangedAt)
	if a.Address != nil {
		addr := *a.Address
		a.Address = &addr
	}
	return a
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func paginate[T any](list []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(list) {
		return []T{}
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}
