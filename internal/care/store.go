package care

import (
	"context"
	"time"
)

// AppointmentStore persists appointments.
type AppointmentStore interface {
	CreateAppointment(ctx context.Context, a *Appointment) error
	Appointment(ctx context.Context, id string) (Appointment, error)
	// AppointmentsFor lists appointments where accountID is any participant, by start time.
	AppointmentsFor(ctx context.Context, accountID string) ([]Appointment, error)
	ReplaceAppointment(ctx context.Context, a Appointment) error
	DeleteAppointment(ctx context.Context, id string) error
}

// MessageStore persists direct messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, m *Message) error
	// Conversation lists messages between a and b in either direction, oldest first.
	Conversation(ctx context.Context, a, b string) ([]Message, error)
	// MarkRead marks unread messages from sender to recipient and returns how many changed.
	MarkRead(ctx context.Context, recipientID, senderID string, at time.Time) (int, error)
}
