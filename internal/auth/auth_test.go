package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	tokens, err := NewTokenIssuer("secret", time.Hour)
	require.NoError(t, err)

	token, exp, err := tokens.IssueAccount(Account{ID: "acc-1", Email: "a@example.com", Role: RoleDoctor})
	require.NoError(t, err)
	require.True(t, exp.After(time.Now()))

	claims, err := tokens.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "acc-1", claims.Subject)
	require.Equal(t, "doctor", claims.Role)
	require.Equal(t, "a@example.com", claims.Email)
	require.False(t, claims.IsAdmin)
	require.NotEmpty(t, claims.ID)
}

func TestTokenIssuerAdminClaims(t *testing.T) {
	tokens, err := NewTokenIssuer("secret", time.Hour)
	require.NoError(t, err)

	token, _, err := tokens.IssueAdmin(Admin{ID: "adm-1", Username: "root", Email: "r@example.com", Role: AdminRoleSuper})
	require.NoError(t, err)
	claims, err := tokens.Parse(token)
	require.NoError(t, err)
	require.True(t, claims.IsAdmin)
	require.Equal(t, "root", claims.Username)
	require.Equal(t, "super_admin", claims.Role)
}

func TestTokenIssuerRejects(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tokens, err := NewTokenIssuer("secret", time.Hour, WithTokenClock(func() time.Time { return now }))
	require.NoError(t, err)
	token, _, err := tokens.IssueAccount(Account{ID: "acc-1", Role: RoleMom})
	require.NoError(t, err)

	other, err := NewTokenIssuer("other-secret", time.Hour, WithTokenClock(func() time.Time { return now }))
	require.NoError(t, err)
	_, err = other.Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	foreign, err := NewTokenIssuer("secret", time.Hour, WithTokenIssuerName("elsewhere"), WithTokenClock(func() time.Time { return now }))
	require.NoError(t, err)
	_, err = foreign.Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	parts := strings.Split(token, ".")
	_, err = tokens.Parse(parts[0] + "." + parts[1] + ".AAAA")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = tokens.Parse("")
	require.ErrorIs(t, err, ErrInvalidToken)

	now = now.Add(2 * time.Hour)
	_, err = tokens.Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	_, err := NewTokenIssuer("  ", time.Hour)
	require.Error(t, err)
}

func TestHasherClampsCost(t *testing.T) {
	require.Equal(t, DefaultHashCost, NewHasher(0).cost)
	require.Equal(t, 4, NewHasher(1).cost)

	h := NewHasher(4)
	hash, err := h.Hash("secret123")
	require.NoError(t, err)
	require.NotEqual(t, "secret123", hash)
	require.NoError(t, h.Verify(hash, "secret123"))
	require.Error(t, h.Verify(hash, "secret124"))
	_, err = h.Hash("")
	require.Error(t, err)
}

func TestAccountLocked(t *testing.T) {
	now := time.Now()
	until := now.Add(time.Minute)
	require.True(t, Account{LockUntil: &until}.Locked(now))
	require.False(t, Account{LockUntil: &until}.Locked(until))
	require.False(t, Account{}.Locked(now))
}
