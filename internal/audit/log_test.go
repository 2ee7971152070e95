package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"mamacare.app/internal/auth"
)

func TestRecord(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := New(zap.New(core))

	ctx := WithRequestID(context.Background(), "req-123")
	ctx = auth.ContextWithAdmin(ctx, auth.Admin{ID: "adm-1", Username: "root"})

	require.NoError(t, l.Record(ctx, "permission.status", map[string]any{"request_id": "r1", "status": "approved"}))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "audit", fields["type"])
	require.Equal(t, "permission.status", fields["event"])
	require.Equal(t, "req-123", fields["request_id"])
	require.Equal(t, "adm-1", fields["actor_id"])
	require.Equal(t, "admin", fields["actor_kind"])
	require.Equal(t, map[string]any{"request_id": "r1", "status": "approved"}, fields["fields"])
	require.Equal(t, "audit", entries[0].LoggerName)
}

func TestRecordAccountActorAndValidation(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := New(zap.New(core))

	ctx := auth.ContextWithAccount(context.Background(), auth.Account{ID: "acc-7"})
	require.NoError(t, l.Record(ctx, "auth.password_changed", nil))
	require.Equal(t, "account", logs.All()[0].ContextMap()["actor_kind"])

	require.Error(t, l.Record(ctx, "  ", nil))
	require.Equal(t, 1, logs.Len())

	require.NoError(t, New(nil).Record(ctx, "noop", nil))
	require.Empty(t, RequestIDFromContext(context.Background()))
}
