// Package validation collects per-field input failures.
package validation

import (
	"net/mail"
	"regexp"
	"strings"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is a list of field failures. A nil or empty list means valid input.
type Errors []FieldError

func (e Errors) Error() string {
	if len(e) == 0 {
		return "validation: ok"
	}
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a failure for field.
func (e *Errors) Add(field, message string) {
	*e = append(*e, FieldError{Field: field, Message: message})
}

// Err returns nil when no failures were recorded.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Required records a failure when value is blank.
func (e *Errors) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		e.Add(field, field+" is required")
		return false
	}
	return true
}

// MaxLen records a failure when value exceeds n runes.
func (e *Errors) MaxLen(field, value string, n int) {
	if len([]rune(value)) > n {
		e.Add(field, field+" is too long")
	}
}

var phonePattern = regexp.MustCompile(`^\+?[\d\s\-()]+$`)

// IsEmail reports whether s is a bare address such as "a@b.example".
func IsEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Address == s && strings.Contains(s[strings.LastIndexByte(s, '@'):], ".")
}

// IsPhone reports whether s looks like a phone number.
func IsPhone(s string) bool {
	return phonePattern.MatchString(s)
}
