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

const (
	defaultLockThreshold = 5
	defaultLockDuration  = 2 * time.Hour
	minPasswordLength    = 6
	maxNameLength        = 50
)

// Service is the credential verifier: registration, login with lockout,
// token authentication and account administration.
type Service struct {
	accounts AccountStore
	admins   AdminStore
	tokens   *TokenIssuer
	hasher   Hasher
	now      func() time.Time
	logger   *zap.Logger

	lockThreshold int
	lockDuration  time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithHasher overrides the password hasher.
func WithHasher(h Hasher) ServiceOption {
	return func(s *Service) error {
		s.hasher = h
		return nil
	}
}

// WithLockPolicy sets how many consecutive failures lock an account and for how long.
func WithLockPolicy(threshold int, duration time.Duration) ServiceOption {
	return func(s *Service) error {
		if threshold <= 0 || duration <= 0 {
			return errors.New("auth: lock threshold and duration must be positive")
		}
		s.lockThreshold = threshold
		s.lockDuration = duration
		return nil
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) error {
		if l != nil {
			s.logger = l
		}
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(accounts AccountStore, admins AdminStore, tokens *TokenIssuer, opts ...ServiceOption) (*Service, error) {
	if accounts == nil || admins == nil || tokens == nil {
		return nil, errors.New("auth: account store, admin store and token issuer are required")
	}
	svc := &Service{
		accounts:      accounts,
		admins:        admins,
		tokens:        tokens,
		hasher:        NewHasher(DefaultHashCost),
		now:           time.Now,
		logger:        zap.NewNop(),
		lockThreshold: defaultLockThreshold,
		lockDuration:  defaultLockDuration,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Session is the result of a successful registration or login.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	Account   AccountView `json:"user"`
}

// Registration is the self-service sign-up payload.
type Registration struct {
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	Role        string   `json:"role"`
	Phone       string   `json:"phone"`
	Gender      string   `json:"gender"`
	DateOfBirth string   `json:"dateOfBirth"`
	Address     *Address `json:"address"`
}

func (r Registration) validate() (Role, *time.Time, error) {
	var errs validation.Errors
	if errs.Required("firstName", r.FirstName) {
		errs.MaxLen("firstName", strings.TrimSpace(r.FirstName), maxNameLength)
	}
	if errs.Required("lastName", r.LastName) {
		errs.MaxLen("lastName", strings.TrimSpace(r.LastName), maxNameLength)
	}
	if errs.Required("email", r.Email) && !validation.IsEmail(normalizeEmail(r.Email)) {
		errs.Add("email", "email is not a valid address")
	}
	if len(r.Password) < minPasswordLength {
		errs.Add("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	role := RoleMom
	if strings.TrimSpace(r.Role) != "" {
		parsed, ok := ParseRole(r.Role)
		switch {
		case !ok:
			errs.Add("role", "role must be one of mom, doctor, midwife, service_provider")
		case parsed == RoleAdmin:
			errs.Add("role", "admin accounts cannot be self-registered")
		default:
			role = parsed
		}
	}
	if p := strings.TrimSpace(r.Phone); p != "" && !validation.IsPhone(p) {
		errs.Add("phone", "phone is not a valid number")
	}
	switch strings.TrimSpace(r.Gender) {
	case "", "male", "female", "other":
	default:
		errs.Add("gender", "gender must be one of male, female, other")
	}

	var dob *time.Time
	if raw := strings.TrimSpace(r.DateOfBirth); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			errs.Add("dateOfBirth", "dateOfBirth must be YYYY-MM-DD")
		} else {
			dob = &t
		}
	}
	return role, dob, errs.Err()
}

// Register creates an account and signs its first token.
func (s *Service) Register(ctx context.Context, in Registration) (Session, error) {
	role, dob, err := in.validate()
	if err != nil {
		return Session{}, err
	}
	email := normalizeEmail(in.Email)

	if _, err := s.accounts.AccountByEmail(ctx, email); err == nil {
		return Session{}, ErrDuplicateEmail
	} else if !errors.Is(err, store.ErrNotFound) {
		return Session{}, fmt.Errorf("lookup account: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	acc := &Account{
		ID:           ids.New(),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		Phone:        strings.TrimSpace(in.Phone),
		Gender:       strings.TrimSpace(in.Gender),
		DateOfBirth:  dob,
		Role:         role,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Address != nil {
		ProfilePatch{Address: in.Address}.Apply(acc)
	}
	if err := s.accounts.CreateAccount(ctx, acc); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return Session{}, ErrDuplicateEmail
		}
		return Session{}, fmt.Errorf("create account: %w", err)
	}
	s.logger.Info("account registered", zap.String("account_id", acc.ID), zap.String("role", string(acc.Role)))
	return s.session(*acc)
}

// Login verifies credentials. Unknown email and wrong password yield the same
// ErrInvalidCredentials; a lock window rejects even the correct password.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	acc, err := s.accounts.AccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			obs.LoginFailure("unknown_email")
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("lookup account: %w", err)
	}

	now := s.now().UTC()
	if acc.Locked(now) {
		obs.LoginFailure("locked")
		return Session{}, ErrAccountLocked
	}

	if err := s.hasher.Verify(acc.PasswordHash, password); err != nil {
		if err := s.recordFailure(ctx, acc, now); err != nil {
			return Session{}, err
		}
		obs.LoginFailure("bad_password")
		return Session{}, ErrInvalidCredentials
	}
	if !acc.Active {
		obs.LoginFailure("inactive")
		return Session{}, ErrAccountInactive
	}

	if err := s.accounts.RecordLoginSuccess(ctx, acc.ID, now); err != nil {
		return Session{}, fmt.Errorf("record login: %w", err)
	}
	acc.LoginAttempts = 0
	acc.LockUntil = nil
	acc.LastLogin = &now
	return s.session(acc)
}

func (s *Service) recordFailure(ctx context.Context, acc Account, now time.Time) error {
	attempts := acc.LoginAttempts + 1
	if acc.LockUntil != nil && !acc.LockUntil.After(now) {
		// The previous lock has lapsed: start a fresh window.
		attempts = 1
	}
	var lockUntil *time.Time
	if attempts >= s.lockThreshold {
		until := now.Add(s.lockDuration)
		lockUntil = &until
		s.logger.Warn("account locked after repeated login failures",
			zap.String("account_id", acc.ID), zap.Int("attempts", attempts), zap.Time("lock_until", until))
	}
	if err := s.accounts.RecordLoginFailure(ctx, acc.ID, attempts, lockUntil); err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}
	return nil
}

// Authenticate resolves an account bearer token. Admin tokens are rejected.
func (s *Service) Authenticate(ctx context.Context, token string) (Account, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return Account{}, ErrInvalidToken
	}
	if claims.IsAdmin {
		return Account{}, ErrInvalidToken
	}
	acc, err := s.accounts.AccountByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Account{}, ErrInvalidToken
		}
		return Account{}, fmt.Errorf("load account: %w", err)
	}
	if !acc.Active {
		return Account{}, ErrAccountInactive
	}
	if passwordStamp(acc) != claims.PasswordAt {
		return Account{}, ErrInvalidToken
	}
	return acc, nil
}

// Account returns the safe view of an account.
func (s *Service) Account(ctx context.Context, id string) (AccountView, error) {
	acc, err := s.accounts.AccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AccountView{}, ErrNotFound
		}
		return AccountView{}, err
	}
	return acc.View(), nil
}

// ChangePassword verifies the current password, stores the new hash and
// returns a fresh session.
func (s *Service) ChangePassword(ctx context.Context, accountID, current, next string) (Session, error) {
	if len(next) < minPasswordLength {
		return Session{}, validation.Errors{{Field: "newPassword", Message: fmt.Sprintf("newPassword must be at least %d characters", minPasswordLength)}}
	}
	acc, err := s.accounts.AccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	if err := s.hasher.Verify(acc.PasswordHash, current); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	// Microseconds survive a round trip through timestamptz unchanged.
	now := s.now().UTC().Truncate(time.Microsecond)
	if err := s.accounts.UpdatePassword(ctx, acc.ID, hash, now); err != nil {
		return Session{}, fmt.Errorf("update password: %w", err)
	}
	acc.PasswordHash = hash
	acc.PasswordChangedAt = &now
	acc.UpdatedAt = now
	return s.session(acc)
}

// UpdateProfile applies a sparse profile patch.
func (s *Service) UpdateProfile(ctx context.Context, accountID string, patch ProfilePatch) (AccountView, error) {
	var errs validation.Errors
	if patch.FirstName != nil && errs.Required("firstName", *patch.FirstName) {
		errs.MaxLen("firstName", strings.TrimSpace(*patch.FirstName), maxNameLength)
	}
	if patch.LastName != nil && errs.Required("lastName", *patch.LastName) {
		errs.MaxLen("lastName", strings.TrimSpace(*patch.LastName), maxNameLength)
	}
	if patch.Phone != nil {
		if p := strings.TrimSpace(*patch.Phone); p != "" && !validation.IsPhone(p) {
			errs.Add("phone", "phone is not a valid number")
		}
	}
	if err := errs.Err(); err != nil {
		return AccountView{}, err
	}

	acc, err := s.accounts.AccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AccountView{}, ErrNotFound
		}
		return AccountView{}, err
	}
	patch.Apply(&acc)
	acc.UpdatedAt = s.now().UTC()
	if err := s.accounts.UpdateProfile(ctx, acc); err != nil {
		return AccountView{}, fmt.Errorf("update profile: %w", err)
	}
	return acc.View(), nil
}

// ListAccounts pages through accounts for administrators.
func (s *Service) ListAccounts(ctx context.Context, filter AccountFilter) ([]AccountView, int, error) {
	list, total, err := s.accounts.ListAccounts(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	out := make([]AccountView, 0, len(list))
	for _, a := range list {
		out = append(out, a.View())
	}
	return out, total, nil
}

// SetAccountActive activates or deactivates an account.
func (s *Service) SetAccountActive(ctx context.Context, id string, active bool) (AccountView, error) {
	if err := s.accounts.SetActive(ctx, id, active, s.now().UTC()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AccountView{}, ErrNotFound
		}
		return AccountView{}, err
	}
	return s.Account(ctx, id)
}

// DeleteAccount hard-deletes an account. Its permission requests are left in place.
func (s *Service) DeleteAccount(ctx context.Context, id string) error {
	if err := s.accounts.DeleteAccount(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Service) session(acc Account) (Session, error) {
	token, exp, err := s.tokens.IssueAccount(acc)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp, Account: acc.View()}, nil
}

// passwordStamp must match the PasswordAt claim of every live token.
func passwordStamp(acc Account) int64 {
	if acc.PasswordChangedAt == nil {
		return 0
	}
	return acc.PasswordChangedAt.UnixMicro()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
