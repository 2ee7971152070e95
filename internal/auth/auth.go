package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer   = "mamacare"
	defaultTokenTTL = 30 * 24 * time.Hour
)

var errMissingSecret = errors.New("auth: token secret is not configured")

// Claims is the signed claim set carried by bearer tokens. Account tokens carry
// the account role; admin tokens carry the admin role and IsAdmin.
type Claims struct {
	Role     string `json:"role"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	IsAdmin  bool   `json:"isAdmin,omitempty"`
	// PasswordAt is the account's password change time in Unix microseconds
	// when the token was issued; zero if the password was never changed.
	PasswordAt int64 `json:"pwdAt,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 bearer tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption configures a TokenIssuer.
type TokenOption func(*TokenIssuer)

// WithTokenIssuerName overrides the iss claim.
func WithTokenIssuerName(iss string) TokenOption {
	return func(t *TokenIssuer) {
		if iss = strings.TrimSpace(iss); iss != "" {
			t.issuer = iss
		}
	}
}

// WithTokenClock overrides the issuer time source.
func WithTokenClock(fn func() time.Time) TokenOption {
	return func(t *TokenIssuer) {
		if fn != nil {
			t.now = fn
		}
	}
}

// NewTokenIssuer builds an issuer from an explicit secret; there is no
// process-global key. A non-positive ttl selects 30 days.
func NewTokenIssuer(secret string, ttl time.Duration, opts ...TokenOption) (*TokenIssuer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errMissingSecret
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	t := &TokenIssuer{
		secret: []byte(secret),
		issuer: defaultIssuer,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// IssueAccount signs a token for an end-user account.
func (t *TokenIssuer) IssueAccount(a Account) (string, time.Time, error) {
	return t.sign(Claims{Role: string(a.Role), Email: a.Email, PasswordAt: passwordStamp(a)}, a.ID)
}

// IssueAdmin signs a token for an administrator.
func (t *TokenIssuer) IssueAdmin(a Admin) (string, time.Time, error) {
	return t.sign(Claims{
		Role:     string(a.Role),
		Email:    a.Email,
		Username: a.Username,
		IsAdmin:  true,
	}, a.ID)
}

func (t *TokenIssuer) sign(claims Claims, subject string) (string, time.Time, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, errors.New("auth: token subject is required")
	}
	now := t.now().UTC()
	exp := now.Add(t.ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    t.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies the signature and required claims.
func (t *TokenIssuer) Parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := t.validateClaims(claims); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (t *TokenIssuer) validateClaims(claims *Claims) error {
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.IssuedAt == nil {
		return errors.New("issued-at missing")
	}
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(t.now().Add(5 * time.Second)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}
