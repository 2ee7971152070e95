package permission

import "errors"

var (
	ErrNotFound          = errors.New("permission: request not found")
	ErrDuplicateInFlight = errors.New("permission: a pending request for this role already exists")
	ErrInvalidRole       = errors.New("permission: role must be doctor, midwife or service_provider")
	ErrInvalidStatus     = errors.New("permission: unknown status")
	ErrInvalidState      = errors.New("permission: request can no longer be changed")
	ErrNoIDs             = errors.New("permission: request ids are required")
)
