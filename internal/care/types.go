package care

import (
	"strings"
	"time"
)

// AppointmentStatus tracks an appointment's lifecycle.
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// ParseAppointmentStatus validates a status string.
func ParseAppointmentStatus(s string) (AppointmentStatus, bool) {
	switch st := AppointmentStatus(strings.TrimSpace(s)); st {
	case AppointmentScheduled, AppointmentCompleted, AppointmentCancelled:
		return st, true
	}
	return "", false
}

const defaultLocation = "online"

// Appointment links a mother with a doctor and/or a service provider.
type Appointment struct {
	ID                string            `json:"id"`
	UserID            string            `json:"userId"`
	DoctorID          string            `json:"doctorId,omitempty"`
	ServiceProviderID string            `json:"serviceProviderId,omitempty"`
	StartTime         time.Time         `json:"startTime"`
	EndTime           time.Time         `json:"endTime"`
	Status            AppointmentStatus `json:"status"`
	Reason            string            `json:"reason,omitempty"`
	Notes             string            `json:"notes,omitempty"`
	Location          string            `json:"location"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// Participants returns every non-empty participant id.
func (a Appointment) Participants() []string {
	var out []string
	for _, id := range []string{a.UserID, a.DoctorID, a.ServiceProviderID} {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

// HasParticipant reports whether accountID takes part in the appointment.
func (a Appointment) HasParticipant(accountID string) bool {
	if accountID == "" {
		return false
	}
	for _, id := range a.Participants() {
		if id == accountID {
			return true
		}
	}
	return false
}

// AppointmentInput creates an appointment. Empty UserID means the caller.
type AppointmentInput struct {
	UserID            string    `json:"userId"`
	DoctorID          string    `json:"doctorId"`
	ServiceProviderID string    `json:"serviceProviderId"`
	StartTime         time.Time `json:"startTime"`
	EndTime           time.Time `json:"endTime"`
	Reason            string    `json:"reason"`
	Notes             string    `json:"notes"`
	Location          string    `json:"location"`
}

// AppointmentPatch is a sparse appointment edit.
type AppointmentPatch struct {
	StartTime *time.Time `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
	Status    *string    `json:"status"`
	Reason    *string    `json:"reason"`
	Notes     *string    `json:"notes"`
	Location  *string    `json:"location"`
}

// MessageType classifies message content.
type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageFile     MessageType = "file"
	MessageAudio    MessageType = "audio"
	MessageVideo    MessageType = "video"
	MessageLocation MessageType = "location"
)

// ParseMessageType validates a message type; empty selects text.
func ParseMessageType(s string) (MessageType, bool) {
	switch t := MessageType(strings.TrimSpace(s)); t {
	case "":
		return MessageText, true
	case MessageText, MessageImage, MessageFile, MessageAudio, MessageVideo, MessageLocation:
		return t, true
	}
	return "", false
}

const maxMessageLength = 1000

// Message is a direct message between two accounts.
type Message struct {
	ID          string      `json:"id"`
	SenderID    string      `json:"senderId"`
	RecipientID string      `json:"recipientId"`
	Content     string      `json:"content"`
	Type        MessageType `json:"messageType"`
	Read        bool        `json:"read"`
	ReadAt      *time.Time  `json:"readAt,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}
