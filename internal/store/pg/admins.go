package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mamacare.app/internal/auth"
)

const adminColumns = `id, username, email, password_hash, role, permissions, is_active, last_login, created_at, updated_at`

func scanAdmin(row rowScanner) (auth.Admin, error) {
	var (
		a     auth.Admin
		role  string
		perms []byte
		last  sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &role, &perms, &a.Active, &last,
		&a.CreatedAt, &a.UpdatedAt); err != nil {
		return auth.Admin{}, classify(err)
	}
	a.Role = auth.AdminRole(role)
	a.LastLogin = timePtr(last)
	if err := decodeJSON(perms, &a.Permissions); err != nil {
		return auth.Admin{}, fmt.Errorf("decode permissions: %w", err)
	}
	return a, nil
}

func (s *Store) CreateAdmin(ctx context.Context, a *auth.Admin) error {
	perms := a.Permissions
	if perms == nil {
		perms = []string{}
	}
	permsJSON, err := jsonArg(perms)
	if err != nil {
		return fmt.Errorf("marshal permissions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		insert into admins (`+adminColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, a.ID, a.Username, a.Email, a.PasswordHash, string(a.Role), permsJSON, a.Active, nullTime(a.LastLogin),
		a.CreatedAt, a.UpdatedAt)
	return classify(err)
}

func (s *Store) AdminByID(ctx context.Context, id string) (auth.Admin, error) {
	return scanAdmin(s.db.QueryRowContext(ctx, `select `+adminColumns+` from admins where id = $1`, id))
}

func (s *Store) AdminByEmail(ctx context.Context, email string) (auth.Admin, error) {
	return scanAdmin(s.db.QueryRowContext(ctx, `select `+adminColumns+` from admins where lower(email) = lower($1)`, email))
}

func (s *Store) UpdateAdminPassword(ctx context.Context, id, hash string, at time.Time) error {
	return expectOne(s.db.ExecContext(ctx, `
		update admins set password_hash = $2, updated_at = $3 where id = $1
	`, id, hash, at))
}

func (s *Store) RecordAdminLogin(ctx context.Context, id string, at time.Time) error {
	return expectOne(s.db.ExecContext(ctx, `update admins set last_login = $2 where id = $1`, id, at))
}
