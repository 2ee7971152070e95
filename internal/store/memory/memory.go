// Package memory is an in-process implementation of every store interface,
// used when no database is configured and by tests.
package memory

import (
	"sync"

	"mamacare.app/internal/auth"
	"mamacare.app/internal/care"
	"mamacare.app/internal/permission"
)

// Store keeps all aggregates in maps guarded by one RWMutex.
type Store struct {
	mu sync.RWMutex

	accounts      map[string]auth.Account
	accountEmails map[string]string
	admins        map[string]auth.Admin
	requests      map[string]permission.Request
	appointments  map[string]care.Appointment
	messages      map[string]care.Message
}

var (
	_ auth.AccountStore     = (*Store)(nil)
	_ auth.AdminStore       = (*Store)(nil)
	_ permission.Store      = (*Store)(nil)
	_ care.AppointmentStore = (*Store)(nil)
	_ care.MessageStore     = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		accounts:      make(map[string]auth.Account),
		accountEmails: make(map[string]string),
		admins:        make(map[string]auth.Admin),
		requests:      make(map[string]permission.Request),
		appointments:  make(map[string]care.Appointment),
		messages:      make(map[string]care.Message),
	}
}
