package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"mamacare.app/internal/auth"
	"mamacare.app/internal/permission"
	"mamacare.app/internal/store"
)

func (s *Store) CreateRequest(_ context.Context, r *permission.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Status.InFlight() && s.inFlightExcept(r.UserID, r.UserRole, r.ID) {
		return store.Conflict(store.ConstraintInFlightRequest)
	}
	if _, ok := s.requests[r.ID]; ok {
		return store.Conflict("permission_requests_pkey")
	}
	s.requests[r.ID] = r.Clone()
	return nil
}

func (s *Store) Request(_ context.Context, id string) (permission.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return permission.Request{}, store.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *Store) InFlightRequest(_ context.Context, userID string, role auth.Role) (permission.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.requests {
		if r.UserID == userID && r.UserRole == role && r.Status.InFlight() {
			return r.Clone(), nil
		}
	}
	return permission.Request{}, store.ErrNotFound
}

func (s *Store) RequestsByUser(_ context.Context, userID string, role auth.Role) ([]permission.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []permission.Request{}
	for _, r := range s.requests {
		if r.UserID == userID && r.UserRole == role {
			out = append(out, r.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *Store) ListRequests(_ context.Context, f permission.Filter, offset, limit int) ([]permission.Request, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	search := strings.ToLower(strings.TrimSpace(f.Search))
	var matched []permission.Request
	for _, r := range s.requests {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Role != "" && r.UserRole != f.Role {
			continue
		}
		if f.Priority != "" && r.Priority != f.Priority {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(r.UserEmail), search) {
			continue
		}
		matched = append(matched, r.Clone())
	}
	sortNewestFirst(matched)
	return paginate(matched, offset, limit), len(matched), nil
}

func (s *Store) ReplaceRequest(_ context.Context, in permission.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[in.ID]
	if !ok {
		return store.ErrNotFound
	}
	in = in.Clone()
	r.Details = in.Details
	r.Documents = in.Documents
	r.Priority = in.Priority
	r.IsUrgent = in.IsUrgent
	r.UpdatedAt = in.UpdatedAt
	s.requests[in.ID] = r
	return nil
}

func (s *Store) DeleteRequest(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.requests, id)
	return nil
}

func (s *Store) SetRequestStatus(_ context.Context, id string, change permission.StatusChange) (permission.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return permission.Request{}, store.ErrNotFound
	}
	if change.Status.InFlight() && s.inFlightExcept(r.UserID, r.UserRole, r.ID) {
		return permission.Request{}, store.Conflict(store.ConstraintInFlightRequest)
	}
	applyStatus(&r, change)
	s.requests[id] = r
	return r.Clone(), nil
}

func (s *Store) BulkSetRequestStatus(_ context.Context, ids []string, change permission.StatusChange) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if change.Status.InFlight() {
		seen := make(map[string]string)
		for _, id := range ids {
			r, ok := s.requests[id]
			if !ok {
				continue
			}
			key := r.UserID + "/" + string(r.UserRole)
			if other, dup := seen[key]; dup && other != id {
				return 0, store.Conflict(store.ConstraintInFlightRequest)
			}
			seen[key] = id
			if s.inFlightExceptAny(r.UserID, r.UserRole, ids) {
				return 0, store.Conflict(store.ConstraintInFlightRequest)
			}
		}
	}
	modified := 0
	done := make(map[string]bool, len(ids))
	for _, id := range ids {
		r, ok := s.requests[id]
		if !ok || done[id] {
			continue
		}
		applyStatus(&r, change)
		s.requests[id] = r
		done[id] = true
		modified++
	}
	return modified, nil
}

func (s *Store) AppendRequestNote(_ context.Context, id string, note permission.Note, at time.Time) (permission.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return permission.Request{}, store.ErrNotFound
	}
	r.AdminNotes = append(append([]permission.Note(nil), r.AdminNotes...), note)
	r.UpdatedAt = at
	s.requests[id] = r
	return r.Clone(), nil
}

func (s *Store) RequestStats(_ context.Context, recentSince time.Time) (permission.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := permission.Stats{
		ByStatus:   map[permission.Status]int{},
		ByRole:     map[auth.Role]int{},
		ByPriority: map[permission.Priority]int{},
	}
	for _, r := range s.requests {
		stats.Total++
		stats.ByStatus[r.Status]++
		stats.ByRole[r.UserRole]++
		stats.ByPriority[r.Priority]++
		if r.IsUrgent {
			stats.Urgent++
		}
		if !r.CreatedAt.Before(recentSince) {
			stats.Recent++
		}
	}
	return stats, nil
}

func applyStatus(r *permission.Request, change permission.StatusChange) {
	at := change.ReviewedBy.ReviewedAt
	r.Status = change.Status
	reviewed := change.ReviewedBy
	r.ReviewedBy = &reviewed
	if change.Status != permission.StatusPending {
		r.ReviewDate = &at
	}
	if change.RejectionReason != nil {
		r.RejectionReason = *change.RejectionReason
	}
	if change.Note != nil {
		r.AdminNotes = append(append([]permission.Note(nil), r.AdminNotes...), *change.Note)
	}
	r.UpdatedAt = at
}

// inFlightExcept reports whether (userID, role) has an in-flight request other than id.
func (s *Store) inFlightExcept(userID string, role auth.Role, id string) bool {
	for _, r := range s.requests {
		if r.ID != id && r.UserID == userID && r.UserRole == role && r.Status.InFlight() {
			return true
		}
	}
	return false
}

// inFlightExceptAny is inFlightExcept for a set of ids being rewritten together.
func (s *Store) inFlightExceptAny(userID string, role auth.Role, ids []string) bool {
	skip := make(map[string]bool, len(ids))
	for _, id := range ids {
		skip[id] = true
	}
	for _, r := range s.requests {
		if !skip[r.ID] && r.UserID == userID && r.UserRole == role && r.Status.InFlight() {
			return true
		}
	}
	return false
}

func sortNewestFirst(list []permission.Request) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
}
