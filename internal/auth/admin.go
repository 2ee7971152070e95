package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mamacare.app/internal/ids"
	"mamacare.app/internal/obs"
	"mamacare.app/internal/store"
	"mamacare.app/internal/validation"
)

// AdminSession is the result of a successful admin login.
type AdminSession struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Admin     AdminView `json:"admin"`
}

// NewAdmin is the payload for creating an administrator.
type NewAdmin struct {
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

func (n NewAdmin) validate() (AdminRole, error) {
	var errs validation.Errors
	if errs.Required("username", n.Username) {
		u := strings.TrimSpace(n.Username)
		if len(u) < 3 {
			errs.Add("username", "username must be at least 3 characters")
		}
		errs.MaxLen("username", u, 30)
	}
	if errs.Required("email", n.Email) && !validation.IsEmail(normalizeEmail(n.Email)) {
		errs.Add("email", "email is not a valid address")
	}
	if len(n.Password) < minPasswordLength {
		errs.Add("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	role := AdminRoleAdmin
	if strings.TrimSpace(n.Role) != "" {
		parsed, ok := ParseAdminRole(n.Role)
		if !ok {
			errs.Add("role", "role must be one of super_admin, admin, moderator")
		}
		role = parsed
	}
	for _, p := range n.Permissions {
		if !knownPermission(p) {
			errs.Add("permissions", "unknown permission "+p)
		}
	}
	return role, errs.Err()
}

// CreateAdmin stores a new administrator.
func (s *Service) CreateAdmin(ctx context.Context, in NewAdmin) (AdminView, error) {
	role, err := in.validate()
	if err != nil {
		return AdminView{}, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return AdminView{}, fmt.Errorf("hash password: %w", err)
	}
	perms := append([]string(nil), in.Permissions...)
	if role == AdminRoleSuper && len(perms) == 0 {
		perms = append(perms, BuiltinPermissions...)
	}
	now := s.now().UTC()
	admin := &Admin{
		ID:           ids.New(),
		Username:     strings.TrimSpace(in.Username),
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
		Role:         role,
		Permissions:  perms,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.admins.CreateAdmin(ctx, admin); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return AdminView{}, ErrDuplicateAdmin
		}
		return AdminView{}, fmt.Errorf("create admin: %w", err)
	}
	s.logger.Info("admin created", zap.String("admin_id", admin.ID), zap.String("role", string(role)))
	return admin.View(), nil
}

// AdminLogin verifies administrator credentials.
func (s *Service) AdminLogin(ctx context.Context, email, password string) (AdminSession, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return AdminSession{}, ErrInvalidCredentials
	}
	admin, err := s.admins.AdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			obs.LoginFailure("admin_unknown_email")
			return AdminSession{}, ErrInvalidCredentials
		}
		return AdminSession{}, fmt.Errorf("lookup admin: %w", err)
	}
	if err := s.hasher.Verify(admin.PasswordHash, password); err != nil {
		obs.LoginFailure("admin_bad_password")
		return AdminSession{}, ErrInvalidCredentials
	}
	if !admin.Active {
		obs.LoginFailure("admin_inactive")
		return AdminSession{}, ErrAccountInactive
	}
	now := s.now().UTC()
	if err := s.admins.RecordAdminLogin(ctx, admin.ID, now); err != nil {
		return AdminSession{}, fmt.Errorf("record admin login: %w", err)
	}
	admin.LastLogin = &now
	token, exp, err := s.tokens.IssueAdmin(admin)
	if err != nil {
		return AdminSession{}, err
	}
	return AdminSession{Token: token, ExpiresAt: exp, Admin: admin.View()}, nil
}

// AuthenticateAdmin resolves an admin bearer token. A valid account token
// yields ErrForbidden so callers can tell "not an admin" from "not signed in".
func (s *Service) AuthenticateAdmin(ctx context.Context, token string) (Admin, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return Admin{}, ErrInvalidToken
	}
	if !claims.IsAdmin {
		return Admin{}, ErrForbidden
	}
	admin, err := s.admins.AdminByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Admin{}, ErrInvalidToken
		}
		return Admin{}, fmt.Errorf("load admin: %w", err)
	}
	if !admin.Active {
		return Admin{}, ErrAccountInactive
	}
	return admin, nil
}

// ChangeAdminPassword verifies the current password and stores a new hash.
func (s *Service) ChangeAdminPassword(ctx context.Context, adminID, current, next string) error {
	if len(next) < minPasswordLength {
		return validation.Errors{{Field: "newPassword", Message: fmt.Sprintf("newPassword must be at least %d characters", minPasswordLength)}}
	}
	admin, err := s.admins.AdminByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := s.hasher.Verify(admin.PasswordHash, current); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.admins.UpdateAdminPassword(ctx, admin.ID, hash, s.now().UTC())
}
