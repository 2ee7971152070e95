package memory

import (
	"context"
	"sort"
	"time"

	"mamacare.app/internal/care"
	"mamacare.app/internal/store"
)

func (s *Store) CreateAppointment(_ context.Context, a *care.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appointments[a.ID]; ok {
		return store.Conflict("appointments_pkey")
	}
	s.appointments[a.ID] = *a
	return nil
}

func (s *Store) Appointment(_ context.Context, id string) (care.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appointments[id]
	if !ok {
		return care.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func (s *Store) AppointmentsFor(_ context.Context, accountID string) ([]care.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []care.Appointment{}
	for _, a := range s.appointments {
		if a.HasParticipant(accountID) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ReplaceAppointment(_ context.Context, a care.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appointments[a.ID]; !ok {
		return store.ErrNotFound
	}
	s.appointments[a.ID] = a
	return nil
}

func (s *Store) DeleteAppointment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appointments[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.appointments, id)
	return nil
}

func (s *Store) CreateMessage(_ context.Context, m *care.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[m.ID]; ok {
		return store.Conflict("messages_pkey")
	}
	s.messages[m.ID] = *m
	return nil
}

func (s *Store) Conversation(_ context.Context, a, b string) ([]care.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []care.Message{}
	for _, m := range s.messages {
		if (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a) {
			m.ReadAt = cloneTime(m.ReadAt)
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) MarkRead(_ context.Context, recipientID, senderID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, m := range s.messages {
		if m.RecipientID == recipientID && m.SenderID == senderID && !m.Read {
			m.Read = true
			m.ReadAt = &at
			s.messages[id] = m
			n++
		}
	}
	return n, nil
}
