package auth

import (
	"context"
	"time"
)

// AccountStore persists end-user accounts. Implementations return
// store.ErrNotFound for missing records and a store.ConflictError on the
// accounts_email_key constraint.
type AccountStore interface {
	CreateAccount(ctx context.Context, a *Account) error
	AccountByID(ctx context.Context, id string) (Account, error)
	AccountByEmail(ctx context.Context, email string) (Account, error)
	ListAccounts(ctx context.Context, filter AccountFilter) ([]Account, int, error)
	// RecordLoginFailure stores the new attempt count and lock window.
	RecordLoginFailure(ctx context.Context, id string, attempts int, lockUntil *time.Time) error
	// RecordLoginSuccess clears the attempt count and lock and stamps last login.
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, hash string, at time.Time) error
	UpdateProfile(ctx context.Context, a Account) error
	SetApproved(ctx context.Context, id string, approved bool, at time.Time) error
	SetActive(ctx context.Context, id string, active bool, at time.Time) error
	DeleteAccount(ctx context.Context, id string) error
}

// AdminStore persists administrators.
type AdminStore interface {
	CreateAdmin(ctx context.Context, a *Admin) error
	AdminByID(ctx context.Context, id string) (Admin, error)
	AdminByEmail(ctx context.Context, email string) (Admin, error)
	UpdateAdminPassword(ctx context.Context, id, hash string, at time.Time) error
	RecordAdminLogin(ctx context.Context, id string, at time.Time) error
}
