package care

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mamacare.app/internal/ids"
	"mamacare.app/internal/relay"
	"mamacare.app/internal/store"
	"mamacare.app/internal/validation"
)

const (
	EventAppointmentUpdated = "appointment_updated"
	EventNewMessage         = "new_message"
)

// Service runs appointment scheduling and direct messaging.
type Service struct {
	appointments AppointmentStore
	messages     MessageStore
	relay        relay.Publisher
	logger       *zap.Logger
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRelay sets where appointment and message events are published.
func WithRelay(p relay.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.relay = p
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService wires the care service to its stores.
func NewService(appointments AppointmentStore, messages MessageStore, opts ...Option) *Service {
	s := &Service{
		appointments: appointments,
		messages:     messages,
		relay:        relay.Nop{},
		logger:       zap.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type appointmentEvent struct {
	Type        string      `json:"type"`
	Appointment Appointment `json:"appointment"`
}

// Appointments lists the caller's appointments by start time.
func (s *Service) Appointments(ctx context.Context, callerID string) ([]Appointment, error) {
	list, err := s.appointments.AppointmentsFor(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []Appointment{}
	}
	return list, nil
}

// CreateAppointment books an appointment the caller takes part in.
func (s *Service) CreateAppointment(ctx context.Context, callerID string, in AppointmentInput) (Appointment, error) {
	now := s.now().UTC()
	appt := Appointment{
		ID:                ids.New(),
		UserID:            strings.TrimSpace(in.UserID),
		DoctorID:          strings.TrimSpace(in.DoctorID),
		ServiceProviderID: strings.TrimSpace(in.ServiceProviderID),
		StartTime:         in.StartTime.UTC(),
		EndTime:           in.EndTime.UTC(),
		Status:            AppointmentScheduled,
		Reason:            strings.TrimSpace(in.Reason),
		Notes:             strings.TrimSpace(in.Notes),
		Location:          strings.TrimSpace(in.Location),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if appt.UserID == "" {
		appt.UserID = callerID
	}
	if appt.Location == "" {
		appt.Location = defaultLocation
	}
	if err := validateAppointment(appt); err != nil {
		return Appointment{}, err
	}
	if !appt.HasParticipant(callerID) {
		return Appointment{}, ErrForbidden
	}
	if err := s.appointments.CreateAppointment(ctx, &appt); err != nil {
		return Appointment{}, fmt.Errorf("create appointment: %w", err)
	}
	s.notifyAppointment(ctx, "created", appt)
	return appt, nil
}

// UpdateAppointment applies a sparse edit. Only participants may edit.
func (s *Service) UpdateAppointment(ctx context.Context, callerID, id string, patch AppointmentPatch) (Appointment, error) {
	appt, err := s.participantAppointment(ctx, callerID, id)
	if err != nil {
		return Appointment{}, err
	}
	var errs validation.Errors
	if patch.StartTime != nil {
		appt.StartTime = patch.StartTime.UTC()
	}
	if patch.EndTime != nil {
		appt.EndTime = patch.EndTime.UTC()
	}
	if patch.Status != nil {
		st, ok := ParseAppointmentStatus(*patch.Status)
		if !ok {
			errs.Add("status", "status must be one of scheduled, completed, cancelled")
		}
		appt.Status = st
	}
	if patch.Reason != nil {
		appt.Reason = strings.TrimSpace(*patch.Reason)
	}
	if patch.Notes != nil {
		appt.Notes = strings.TrimSpace(*patch.Notes)
	}
	if patch.Location != nil {
		appt.Location = strings.TrimSpace(*patch.Location)
		if appt.Location == "" {
			appt.Location = defaultLocation
		}
	}
	if err := errs.Err(); err != nil {
		return Appointment{}, err
	}
	if err := validateAppointment(appt); err != nil {
		return Appointment{}, err
	}
	appt.UpdatedAt = s.now().UTC()
	if err := s.appointments.ReplaceAppointment(ctx, appt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, fmt.Errorf("update appointment: %w", err)
	}
	s.notifyAppointment(ctx, "updated", appt)
	return appt, nil
}

// DeleteAppointment removes an appointment. Only participants may delete.
func (s *Service) DeleteAppointment(ctx context.Context, callerID, id string) error {
	appt, err := s.participantAppointment(ctx, callerID, id)
	if err != nil {
		return err
	}
	if err := s.appointments.DeleteAppointment(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete appointment: %w", err)
	}
	s.notifyAppointment(ctx, "deleted", appt)
	return nil
}

func (s *Service) participantAppointment(ctx context.Context, callerID, id string) (Appointment, error) {
	appt, err := s.appointments.Appointment(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, err
	}
	if !appt.HasParticipant(callerID) {
		return Appointment{}, ErrForbidden
	}
	return appt, nil
}

func (s *Service) notifyAppointment(ctx context.Context, kind string, appt Appointment) {
	evt := appointmentEvent{Type: kind, Appointment: appt}
	for _, id := range appt.Participants() {
		s.relay.Publish(ctx, relay.UserRoom(id), EventAppointmentUpdated, evt)
	}
}

func validateAppointment(a Appointment) error {
	var errs validation.Errors
	if a.StartTime.IsZero() {
		errs.Add("startTime", "startTime is required")
	}
	if a.EndTime.IsZero() {
		errs.Add("endTime", "endTime is required")
	}
	if !a.StartTime.IsZero() && !a.EndTime.IsZero() && !a.EndTime.After(a.StartTime) {
		errs.Add("endTime", "endTime must be after startTime")
	}
	return errs.Err()
}

// Conversation returns the messages exchanged between the caller and other.
func (s *Service) Conversation(ctx context.Context, callerID, otherID string) ([]Message, error) {
	list, err := s.messages.Conversation(ctx, callerID, otherID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []Message{}
	}
	return list, nil
}

// SendMessage stores a message and notifies the recipient.
func (s *Service) SendMessage(ctx context.Context, senderID, recipientID, content, messageType string) (Message, error) {
	var errs validation.Errors
	recipientID = strings.TrimSpace(recipientID)
	content = strings.TrimSpace(content)
	errs.Required("recipientId", recipientID)
	if errs.Required("content", content) {
		errs.MaxLen("content", content, maxMessageLength)
	}
	typ, ok := ParseMessageType(messageType)
	if !ok {
		errs.Add("messageType", "unknown message type")
	}
	if recipientID != "" && recipientID == senderID {
		errs.Add("recipientId", "cannot send a message to yourself")
	}
	if err := errs.Err(); err != nil {
		return Message{}, err
	}

	msg := Message{
		ID:          ids.New(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		Type:        typ,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.messages.CreateMessage(ctx, &msg); err != nil {
		return Message{}, fmt.Errorf("create message: %w", err)
	}
	s.relay.Publish(ctx, relay.UserRoom(recipientID), EventNewMessage, msg)
	return msg, nil
}

// MarkRead marks every unread message from sender to the caller as read.
func (s *Service) MarkRead(ctx context.Context, callerID, senderID string) (int, error) {
	if strings.TrimSpace(senderID) == "" {
		return 0, validation.Errors{{Field: "senderId", Message: "senderId is required"}}
	}
	return s.messages.MarkRead(ctx, callerID, senderID, s.now().UTC())
}
