// Package relay pushes workflow events to connected clients, keyed by room.
package relay

import (
	"context"
	"encoding/json"
	"time"
)

// AdminRoom receives events every administrator should see.
const AdminRoom = "admins"

// UserRoom names the room of a single account.
func UserRoom(accountID string) string {
	return "user_" + accountID
}

// Event is one notification delivered to a room.
type Event struct {
	Type    string          `json:"type"`
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
	At      time.Time       `json:"at"`
}

// NewEvent encodes payload into an Event.
func NewEvent(room, eventType string, payload any, at time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Room: room, Payload: raw, At: at.UTC()}, nil
}

// Publisher emits events fire-and-forget. Delivery failures are logged and
// counted by the implementation and never reach the caller.
type Publisher interface {
	Publish(ctx context.Context, room, eventType string, payload any)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, string, any) {}
