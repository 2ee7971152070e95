package care

import "errors"

var (
	ErrNotFound  = errors.New("care: not found")
	ErrForbidden = errors.New("care: caller is not a participant")
)
