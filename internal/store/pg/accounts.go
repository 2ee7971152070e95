package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mamacare.app/internal/auth"
)

const accountColumns = `id, first_name, last_name, email, phone, gender, date_of_birth, address, avatar,
	role, password_hash, is_active, is_approved, email_verified, phone_verified,
	login_attempts, lock_until, last_login, password_changed_at, created_at, updated_at`

func scanAccount(row rowScanner) (auth.Account, error) {
	var (
		a                             auth.Account
		role                          string
		address                       []byte
		dob, lock, last, pwdChangedAt sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.Phone, &a.Gender, &dob, &address, &a.Avatar,
		&role, &a.PasswordHash, &a.Active, &a.Approved, &a.EmailVerified, &a.PhoneVerified,
		&a.LoginAttempts, &lock, &last, &pwdChangedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return auth.Account{}, classify(err)
	}
	a.Role = auth.Role(role)
	a.DateOfBirth = timePtr(dob)
	a.LockUntil = timePtr(lock)
	a.LastLogin = timePtr(last)
	a.PasswordChangedAt = timePtr(pwdChangedAt)
	if len(address) > 0 && string(address) != "null" {
		a.Address = &auth.Address{}
		if err := decodeJSON(address, a.Address); err != nil {
			return auth.Account{}, fmt.Errorf("decode address: %w", err)
		}
	}
	return a, nil
}

func (s *Store) CreateAccount(ctx context.Context, a *auth.Account) error {
	var addr any
	if a.Address != nil {
		var err error
		if addr, err = jsonArg(a.Address); err != nil {
			return fmt.Errorf("marshal address: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx, `
		insert into accounts (`+accountColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`, a.ID, a.FirstName, a.LastName, a.Email, a.Phone, a.Gender, nullTime(a.DateOfBirth), addr, a.Avatar,
		string(a.Role), a.PasswordHash, a.Active, a.Approved, a.EmailVerified, a.PhoneVerified,
		a.LoginAttempts, nullTime(a.LockUntil), nullTime(a.LastLogin), nullTime(a.PasswordChangedAt), a.CreatedAt, a.UpdatedAt)
	return classify(err)
}

func (s *Store) AccountByID(ctx context.Context, id string) (auth.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, `select `+accountColumns+` from accounts where id = $1`, id))
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (auth.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, `select `+accountColumns+` from accounts where lower(email) = lower($1)`, email))
}

func (s *Store) ListAccounts(ctx context.Context, f auth.AccountFilter) ([]auth.Account, int, error) {
	var w whereBuilder
	if f.Role != "" {
		w.add("role = $%d", string(f.Role))
	}
	if f.Active != nil {
		w.add("is_active = $%d", *f.Active)
	}
	if f.Search != "" {
		w.add(`(first_name || ' ' || last_name || ' ' || email) ilike $%d`, likePattern(f.Search))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from accounts`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, classify(err)
	}

	query := `select ` + accountColumns + ` from accounts` + w.String() + ` order by created_at desc, id desc`
	args := w.args
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" limit $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" offset $%d", len(args))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, classify(err)
	}
	defer rows.Close()

	out := []auth.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify(err)
	}
	return out, total, nil
}

func (s *Store) RecordLoginFailure(ctx context.Context, id string, attempts int, lockUntil *time.Time) error {
	return expectOne(s.db.ExecContext(ctx, `
		update accounts set login_attempts = $2, lock_until = $3 where id = $1
	`, id, attempts, nullTime(lockUntil)))
}

func (s *Store) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	return expectOne(s.db.ExecContext(ctx, `
		update accounts set login_attempts = 0, lock_until = null, last_login = $2 where id = $1
	`, id, at))
}

func (s *Store) UpdatePassword(ctx context.Context, id, hash string, at time.Time) error {
	return expectOne(s.db.ExecContext(ctx, `
		update accounts set password_hash = $2, password_changed_at = $3, updated_at = $3 where id = $1
	`, id, hash, at))
}

func (s *Store) UpdateProfile(ctx context.Context, a auth.Account) error {
	var addr any
	if a.Address != nil {
		var err error
		if addr, err = jsonArg(a.Address); err != nil {
			return fmt.Errorf("marshal address: %w", err)
		}
	}
	return expectOne(s.db.ExecContext(ctx, `
		update accounts
		set first_name = $2, last_name = $3, phone = $4, avatar = $5,
			address = coalesce($6::jsonb, address), updated_at = $7
		where id = $1
	`, a.ID, a.FirstName, a.LastName, a.Phone, a.Avatar, addr, a.UpdatedAt))
}

func (s *Store) SetApproved(ctx context.Context, id string, approved bool, at time.Time) error {
	return expectOne(s.db.ExecContext(ctx, `
		update accounts set is_approved = $2, updated_at = $3 where id = $1
	`, id, approved, at))
}

func (s *Store) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	return expectOne(s.db.ExecContext(ctx, `
		update accounts set is_active = $2, updated_at = $3 where id = $1
	`, id, active, at))
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	return expectOne(s.db.ExecContext(ctx, `delete from accounts where id = $1`, id))
}
