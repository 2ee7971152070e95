package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"mamacare.app/internal/auth"
	"mamacare.app/internal/care"
	"mamacare.app/internal/permission"
	"mamacare.app/internal/store"
	"mamacare.app/internal/validation"
)

const maxBodyBytes = 1 << 20

// envelope is the body of every JSON response.
type envelope struct {
	Status    string                  `json:"status"`
	Message   string                  `json:"message,omitempty"`
	Data      any                     `json:"data,omitempty"`
	Errors    []validation.FieldError `json:"errors,omitempty"`
	RequestID string                  `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, code int, message string, data any) {
	writeJSON(w, code, envelope{Status: "success", Message: message, Data: data})
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, envelope{
		Status:    "error",
		Message:   msg,
		RequestID: RequestIDFromContext(r.Context()),
	})
}

func writeValidation(w http.ResponseWriter, r *http.Request, errs validation.Errors) {
	writeJSON(w, http.StatusBadRequest, envelope{
		Status:    "error",
		Message:   "Validation failed",
		Errors:    errs,
		RequestID: RequestIDFromContext(r.Context()),
	})
}

// writeServiceError maps domain and storage errors onto the HTTP taxonomy.
// Unknown errors are logged and answered with a generic 500 so driver
// messages never reach the client.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		writeValidation(w, r, verrs)
	case errors.Is(err, auth.ErrDuplicateEmail):
		writeError(w, r, http.StatusBadRequest, "User with this email already exists")
	case errors.Is(err, auth.ErrDuplicateAdmin):
		writeError(w, r, http.StatusBadRequest, "Admin with this username or email already exists")
	case errors.Is(err, permission.ErrDuplicateInFlight):
		writeError(w, r, http.StatusBadRequest, "You already have a pending permission request for this role")
	case errors.Is(err, permission.ErrInvalidRole):
		writeError(w, r, http.StatusBadRequest, "Invalid role. Must be doctor, midwife, or service_provider")
	case errors.Is(err, permission.ErrInvalidStatus):
		writeError(w, r, http.StatusBadRequest, "Invalid status. Must be pending, approved, rejected, or under_review")
	case errors.Is(err, permission.ErrInvalidState):
		writeError(w, r, http.StatusBadRequest, "Permission request can no longer be changed")
	case errors.Is(err, permission.ErrNoIDs):
		writeError(w, r, http.StatusBadRequest, "Request IDs array is required")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, auth.ErrAccountInactive):
		writeError(w, r, http.StatusUnauthorized, "Account is deactivated")
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, "Not authorized, token failed")
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, care.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "Not authorized to access this resource")
	case errors.Is(err, auth.ErrAccountLocked):
		writeError(w, r, http.StatusLocked, "Account is temporarily locked due to too many failed login attempts")
	case errors.Is(err, permission.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "Permission request not found")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "User not found")
	case errors.Is(err, care.ErrNotFound), errors.Is(err, store.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "Resource not found")
	case errors.Is(err, store.ErrUnavailable):
		a.logger.Warn("storage unavailable", zap.String("request_id", RequestIDFromContext(r.Context())), zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, "Service temporarily unavailable, please try again")
	default:
		a.logger.Error("request failed", zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// readJSONObject reads a body that is decoded more than once, so unknown
// fields are allowed.
func readJSONObject(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := decodeJSON(w, r, &raw); err != nil {
		return nil, err
	}
	if trimmed := strings.TrimSpace(string(raw)); !strings.HasPrefix(trimmed, "{") {
		return nil, errors.New("request body must be a JSON object")
	}
	return raw, nil
}

func parsePositiveInt(raw string, def, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 1 {
		return 0, errors.New("must be a positive integer")
	}
	if max > 0 && val > max {
		val = max
	}
	return val, nil
}
