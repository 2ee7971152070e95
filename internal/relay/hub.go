package relay

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"mamacare.app/internal/obs"
)

const subscriberBuffer = 16

// Hub fans events out to in-process subscribers by room.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[int]chan Event
	next   int
	logger *zap.Logger
	now    func() time.Time
}

// NewHub returns an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:  make(map[string]map[int]chan Event),
		logger: logger,
		now:    time.Now,
	}
}

// Subscribe joins the given rooms and returns a channel receiving their events.
// The channel is closed when ctx ends.
func (h *Hub) Subscribe(ctx context.Context, rooms ...string) <-chan Event {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	id := h.next
	h.next++
	for _, room := range rooms {
		subs, ok := h.rooms[room]
		if !ok {
			subs = make(map[int]chan Event)
			h.rooms[room] = subs
		}
		subs[id] = ch
	}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		for _, room := range rooms {
			delete(h.rooms[room], id)
			if len(h.rooms[room]) == 0 {
				delete(h.rooms, room)
			}
		}
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

// Deliver hands evt to every subscriber of its room and returns how many
// received it. Slow subscribers miss the event instead of blocking.
func (h *Hub) Deliver(evt Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, ch := range h.rooms[evt.Room] {
		select {
		case ch <- evt:
			delivered++
		default:
			h.logger.Debug("relay subscriber too slow, event dropped",
				zap.String("room", evt.Room), zap.String("type", evt.Type))
		}
	}
	return delivered
}

// Publish delivers locally. It makes Hub a Publisher for single-instance deployments.
func (h *Hub) Publish(_ context.Context, room, eventType string, payload any) {
	evt, err := NewEvent(room, eventType, payload, h.now())
	if err != nil {
		obs.RelayPublished("error")
		h.logger.Warn("relay encode failed", zap.String("room", room), zap.String("type", eventType), zap.Error(err))
		return
	}
	h.Deliver(evt)
	obs.RelayPublished("ok")
}

// Subscribers returns the number of subscribers in room.
func (h *Hub) Subscribers(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
