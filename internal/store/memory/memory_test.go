package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mamacare.app/internal/auth"
	"mamacare.app/internal/permission"
	"mamacare.app/internal/store"
)

func TestAccountEmailIsCaseInsensitiveUnique(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.CreateAccount(ctx, &auth.Account{ID: "a1", Email: "Jane@Example.com"}))
	err := s.CreateAccount(ctx, &auth.Account{ID: "a2", Email: "jane@example.com"})
	require.ErrorIs(t, err, store.ErrConflict)
	require.True(t, store.IsConflictOn(err, store.ConstraintAccountEmail))

	got, err := s.AccountByEmail(ctx, "JANE@example.COM")
	require.NoError(t, err)
	require.Equal(t, "a1", got.ID)

	_, err = s.AccountByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRequestsAreIsolatedCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	req := &permission.Request{
		ID: "r1", UserID: "u1", UserRole: auth.RoleDoctor, Status: permission.StatusPending,
		Details:    &permission.DoctorDetails{Specialization: "OB"},
		AdminNotes: []permission.Note{},
	}
	require.NoError(t, s.CreateRequest(ctx, req))
	req.Details.(*permission.DoctorDetails).Specialization = "changed"

	got, err := s.Request(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, "OB", got.Details.(*permission.DoctorDetails).Specialization)

	got.AdminNotes = append(got.AdminNotes, permission.Note{Note: "local"})
	again, err := s.Request(ctx, "r1")
	require.NoError(t, err)
	require.Empty(t, again.AdminNotes)
}

func TestInFlightConstraint(t *testing.T) {
	s := New()
	ctx := context.Background()
	mk := func(id string, st permission.Status) *permission.Request {
		return &permission.Request{ID: id, UserID: "u1", UserRole: auth.RoleMidwife, Status: st}
	}
	require.NoError(t, s.CreateRequest(ctx, mk("r1", permission.StatusRejected)))
	require.NoError(t, s.CreateRequest(ctx, mk("r2", permission.StatusPending)))
	err := s.CreateRequest(ctx, mk("r3", permission.StatusUnderReview))
	require.True(t, store.IsConflictOn(err, store.ConstraintInFlightRequest))

	_, err = s.SetRequestStatus(ctx, "r1", permission.StatusChange{Status: permission.StatusPending})
	require.True(t, store.IsConflictOn(err, store.ConstraintInFlightRequest))

	_, err = s.BulkSetRequestStatus(ctx, []string{"r1", "r2"}, permission.StatusChange{Status: permission.StatusUnderReview})
	require.True(t, store.IsConflictOn(err, store.ConstraintInFlightRequest))

	n, err := s.BulkSetRequestStatus(ctx, []string{"r1", "r2", "r2", "nope"}, permission.StatusChange{Status: permission.StatusApproved})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	inflight, err := s.InFlightRequest(ctx, "u1", auth.RoleMidwife)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Empty(t, inflight.ID)
}

func TestApplyStatusKeepsReasonWhenUnset(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	reason := "incomplete"
	r := permission.Request{Status: permission.StatusPending}
	applyStatus(&r, permission.StatusChange{
		Status:          permission.StatusRejected,
		ReviewedBy:      permission.Review{AdminID: "adm", ReviewedAt: at},
		RejectionReason: &reason,
	})
	require.Equal(t, "incomplete", r.RejectionReason)
	require.Equal(t, at, *r.ReviewDate)

	applyStatus(&r, permission.StatusChange{Status: permission.StatusRejected, ReviewedBy: permission.Review{ReviewedAt: at}})
	require.Equal(t, "incomplete", r.RejectionReason)

	applyStatus(&r, permission.StatusChange{
		Status:          permission.StatusPending,
		ReviewedBy:      permission.Review{ReviewedAt: at.Add(time.Hour)},
		RejectionReason: new(string),
	})
	require.Empty(t, r.RejectionReason)
	require.Equal(t, at, *r.ReviewDate)
}
