package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"mamacare.app/internal/auth"
	"mamacare.app/internal/relay"
)

const streamHeartbeat = 25 * time.Second

// Stream serves relay events over Server-Sent Events. Accounts receive their
// own room; administrators also receive the admins room. Browsers cannot set
// headers on EventSource, so the token may also come from ?token=.
func (a *API) Stream(w http.ResponseWriter, r *http.Request) {
	if a.hub == nil {
		writeError(w, r, http.StatusServiceUnavailable, "streaming disabled")
		return
	}

	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		unauthorized(w, r, "Not authorized, no token")
		return
	}
	rooms, err := a.streamRooms(r.Context(), token)
	if err != nil {
		unauthorized(w, r, "Not authorized, token failed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := a.hub.Subscribe(ctx, rooms...)
	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	// Send an initial comment to establish the stream
	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case evt, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				a.logger.Warn("stream encode failed", zap.String("type", evt.Type), zap.Error(err))
				continue
			}
			_, _ = w.Write([]byte("event: " + evt.Type + "\n"))
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

func (a *API) streamRooms(ctx context.Context, token string) ([]string, error) {
	acc, err := a.auth.Authenticate(ctx, token)
	if err == nil {
		return []string{relay.UserRoom(acc.ID)}, nil
	}
	if !errors.Is(err, auth.ErrInvalidToken) {
		return nil, err
	}
	admin, err := a.auth.AuthenticateAdmin(ctx, token)
	if err != nil {
		return nil, err
	}
	return []string{relay.UserRoom(admin.ID), relay.AdminRoom}, nil
}
