package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"mamacare.app/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer"
)

var (
	errMissingToken = errors.New("missing bearer token")
	errAuthScheme   = errors.New("invalid authorization scheme")
)

// requireAccount admits end-user tokens only. Admin tokens, unknown accounts
// and deactivated accounts are rejected with 401.
func (a *API) requireAccount(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			unauthorized(w, r, "Not authorized, no token")
			return
		}
		acc, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidToken):
				unauthorized(w, r, "Not authorized, token failed")
			case errors.Is(err, auth.ErrAccountInactive):
				unauthorized(w, r, "Account is deactivated")
			default:
				a.writeServiceError(w, r, err)
			}
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithAccount(r.Context(), acc)))
	})
}

// requireAdmin admits administrator tokens only. A valid end-user token is
// answered with 403.
func (a *API) requireAdmin(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			unauthorized(w, r, "Not authorized, no token")
			return
		}
		admin, err := a.auth.AuthenticateAdmin(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrForbidden):
				writeError(w, r, http.StatusForbidden, "Admin access required")
			case errors.Is(err, auth.ErrInvalidToken):
				unauthorized(w, r, "Not authorized, token failed")
			case errors.Is(err, auth.ErrAccountInactive):
				unauthorized(w, r, "Admin account is deactivated")
			default:
				a.writeServiceError(w, r, err)
			}
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithAdmin(r.Context(), admin)))
	})
}

// requireSuperAdmin must run inside requireAdmin.
func (a *API) requireSuperAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, ok := auth.AdminFromContext(r.Context())
		if !ok || admin.Role != auth.AdminRoleSuper {
			writeError(w, r, http.StatusForbidden, "Super admin access required")
			return
		}
		next(w, r)
	}
}

// requireAdminPermission must run inside requireAdmin.
func (a *API) requireAdminPermission(perm string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, ok := auth.AdminFromContext(r.Context())
		if !ok || !admin.HasPermission(perm) {
			writeError(w, r, http.StatusForbidden, "Missing permission "+perm)
			return
		}
		next(w, r)
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="mamacare"`)
	writeError(w, r, http.StatusUnauthorized, msg)
}

func extractBearerToken(header string) (string, error) {
	fields := strings.Fields(header)
	if len(fields) == 0 {
		return "", errMissingToken
	}
	switch {
	case !strings.EqualFold(fields[0], bearer) || len(fields) > 2:
		return "", errAuthScheme
	case len(fields) == 1:
		return "", errMissingToken
	}
	return fields[1], nil
}
