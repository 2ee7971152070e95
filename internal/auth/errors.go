package auth

import "errors"

var (
	ErrNotFound           = errors.New("auth: not found")
	ErrDuplicateEmail     = errors.New("auth: email already registered")
	ErrDuplicateAdmin     = errors.New("auth: admin username or email already registered")
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
	ErrAccountLocked      = errors.New("auth: account temporarily locked")
	ErrAccountInactive    = errors.New("auth: account is deactivated")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrForbidden          = errors.New("auth: forbidden")
)
