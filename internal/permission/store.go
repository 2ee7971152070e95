package permission

import (
	"context"
	"time"

	"mamacare.app/internal/auth"
)

// Store persists permission requests. Implementations return store.ErrNotFound
// for missing ids and a store.ConflictError on the
// permission_requests_in_flight_idx constraint when a second in-flight request
// for the same (user, role) is written.
type Store interface {
	CreateRequest(ctx context.Context, r *Request) error
	Request(ctx context.Context, id string) (Request, error)
	// InFlightRequest returns the pending or under-review request for (userID, role).
	InFlightRequest(ctx context.Context, userID string, role auth.Role) (Request, error)
	// RequestsByUser lists one requester's requests in a role, newest first.
	RequestsByUser(ctx context.Context, userID string, role auth.Role) ([]Request, error)
	// ListRequests pages admin listings ordered by createdAt desc, id desc.
	ListRequests(ctx context.Context, filter Filter, offset, limit int) ([]Request, int, error)
	// ReplaceRequest overwrites the requester-editable fields of r.
	ReplaceRequest(ctx context.Context, r Request) error
	DeleteRequest(ctx context.Context, id string) error
	SetRequestStatus(ctx context.Context, id string, change StatusChange) (Request, error)
	// BulkSetRequestStatus applies change to every existing id and returns how many rows changed.
	BulkSetRequestStatus(ctx context.Context, ids []string, change StatusChange) (int, error)
	AppendRequestNote(ctx context.Context, id string, note Note, at time.Time) (Request, error)
	RequestStats(ctx context.Context, recentSince time.Time) (Stats, error)
}

// AccountApprover flips the approval flag on the requester's account.
type AccountApprover interface {
	SetApproved(ctx context.Context, id string, approved bool, at time.Time) error
}
