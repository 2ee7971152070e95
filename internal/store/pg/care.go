package pg

import (
	"context"
	"database/sql"
	"time"

	"mamacare.app/internal/care"
)

const appointmentColumns = `id, user_id, doctor_id, service_provider_id, start_time, end_time, status,
	reason, notes, location, created_at, updated_at`

func scanAppointment(row rowScanner) (care.Appointment, error) {
	var (
		a      care.Appointment
		status string
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.DoctorID, &a.ServiceProviderID, &a.StartTime, &a.EndTime, &status,
		&a.Reason, &a.Notes, &a.Location, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return care.Appointment{}, classify(err)
	}
	a.Status = care.AppointmentStatus(status)
	return a, nil
}

func (s *Store) CreateAppointment(ctx context.Context, a *care.Appointment) error {
	_, err := s.db.ExecContext(ctx, `
		insert into appointments (`+appointmentColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, a.ID, a.UserID, a.DoctorID, a.ServiceProviderID, a.StartTime, a.EndTime, string(a.Status),
		a.Reason, a.Notes, a.Location, a.CreatedAt, a.UpdatedAt)
	return classify(err)
}

func (s *Store) Appointment(ctx context.Context, id string) (care.Appointment, error) {
	return scanAppointment(s.db.QueryRowContext(ctx, `select `+appointmentColumns+` from appointments where id = $1`, id))
}

func (s *Store) AppointmentsFor(ctx context.Context, accountID string) ([]care.Appointment, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+appointmentColumns+` from appointments
		where user_id = $1 or doctor_id = $1 or service_provider_id = $1
		order by start_time, id
	`, accountID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := []care.Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (s *Store) ReplaceAppointment(ctx context.Context, a care.Appointment) error {
	return expectOne(s.db.ExecContext(ctx, `
		update appointments
		set start_time = $2, end_time = $3, status = $4, reason = $5, notes = $6, location = $7, updated_at = $8
		where id = $1
	`, a.ID, a.StartTime, a.EndTime, string(a.Status), a.Reason, a.Notes, a.Location, a.UpdatedAt))
}

func (s *Store) DeleteAppointment(ctx context.Context, id string) error {
	return expectOne(s.db.ExecContext(ctx, `delete from appointments where id = $1`, id))
}

const messageColumns = `id, sender_id, recipient_id, content, message_type, is_read, read_at, created_at`

func (s *Store) CreateMessage(ctx context.Context, m *care.Message) error {
	_, err := s.db.ExecContext(ctx, `
		insert into messages (`+messageColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, m.ID, m.SenderID, m.RecipientID, m.Content, string(m.Type), m.Read, nullTime(m.ReadAt), m.CreatedAt)
	return classify(err)
}

func (s *Store) Conversation(ctx context.Context, a, b string) ([]care.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+messageColumns+` from messages
		where (sender_id = $1 and recipient_id = $2) or (sender_id = $2 and recipient_id = $1)
		order by created_at, id
	`, a, b)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := []care.Message{}
	for rows.Next() {
		var (
			m      care.Message
			typ    string
			readAt sql.NullTime
		)
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Content, &typ, &m.Read, &readAt, &m.CreatedAt); err != nil {
			return nil, classify(err)
		}
		m.Type = care.MessageType(typ)
		m.ReadAt = timePtr(readAt)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (s *Store) MarkRead(ctx context.Context, recipientID, senderID string, at time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		update messages set is_read = true, read_at = $3
		where recipient_id = $1 and sender_id = $2 and not is_read
	`, recipientID, senderID, at)
	if err != nil {
		return 0, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
