package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"mamacare.app/internal/auth"
	"mamacare.app/internal/store/memory"
	"mamacare.app/internal/validation"
)

type fixture struct {
	svc   *auth.Service
	store *memory.Store
	now   time.Time
}

func (f *fixture) clock() time.Time { return f.now }

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memory.New(), now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	tokens, err := auth.NewTokenIssuer("test-secret", time.Hour, auth.WithTokenClock(f.clock))
	require.NoError(t, err)
	f.svc, err = auth.NewService(f.store, f.store, tokens,
		auth.WithHasher(auth.NewHasher(bcrypt.MinCost)),
		auth.WithClock(f.clock),
	)
	require.NoError(t, err)
	return f
}

func register(t *testing.T, f *fixture, email, password string) auth.Session {
	t.Helper()
	sess, err := f.svc.Register(context.Background(), auth.Registration{
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     email,
		Password:  password,
	})
	require.NoError(t, err)
	return sess
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess := register(t, f, "Jane@Example.com", "secret123")
	require.NotEmpty(t, sess.Token)
	require.Equal(t, "jane@example.com", sess.Account.Email)
	require.Equal(t, auth.RoleMom, sess.Account.Role)
	require.True(t, sess.Account.IsActive)
	require.False(t, sess.Account.IsApproved)

	raw, err := json.Marshal(sess)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "secret123")
	require.NotContains(t, string(raw), "$2a$")

	stored, err := f.store.AccountByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	require.NotEqual(t, "secret123", stored.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret123")))

	login, err := f.svc.Login(ctx, "jane@example.com", "secret123")
	require.NoError(t, err)
	require.Equal(t, sess.Account.ID, login.Account.ID)
	require.NotNil(t, login.Account.LastLogin)

	acc, err := f.svc.Authenticate(ctx, login.Token)
	require.NoError(t, err)
	require.Equal(t, sess.Account.ID, acc.ID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	register(t, f, "dup@example.com", "secret123")

	_, err := f.svc.Register(context.Background(), auth.Registration{
		FirstName: "Other", LastName: "Person", Email: " DUP@example.com ", Password: "secret456",
	})
	require.ErrorIs(t, err, auth.ErrDuplicateEmail)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Register(context.Background(), auth.Registration{
		Email:    "not-an-email",
		Password: "123",
		Role:     "admin",
		Phone:    "call me",
	})
	var verr validation.Errors
	require.True(t, errors.As(err, &verr))

	fields := map[string]bool{}
	for _, fe := range verr {
		fields[fe.Field] = true
	}
	for _, name := range []string{"firstName", "lastName", "email", "password", "role", "phone"} {
		require.True(t, fields[name], "missing failure for %s", name)
	}
}

func TestRegisterElevatedRole(t *testing.T) {
	f := newFixture(t)
	sess, err := f.svc.Register(context.Background(), auth.Registration{
		FirstName: "Dr", LastName: "Who", Email: "doc@example.com", Password: "secret123",
		Role: "doctor", Address: &auth.Address{City: "Austin"},
	})
	require.NoError(t, err)
	require.Equal(t, auth.RoleDoctor, sess.Account.Role)
	require.Equal(t, "USA", sess.Account.Address.Country)
}

func TestLoginUnknownEmailLooksLikeWrongPassword(t *testing.T) {
	f := newFixture(t)
	register(t, f, "jane@example.com", "secret123")

	_, errUnknown := f.svc.Login(context.Background(), "nobody@example.com", "secret123")
	_, errWrong := f.svc.Login(context.Background(), "jane@example.com", "wrong-password")
	require.ErrorIs(t, errUnknown, auth.ErrInvalidCredentials)
	require.ErrorIs(t, errWrong, auth.ErrInvalidCredentials)
	require.Equal(t, errUnknown.Error(), errWrong.Error())
}

func TestLoginLockout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, "jane@example.com", "secret123")

	for i := 0; i < 5; i++ {
		_, err := f.svc.Login(ctx, "jane@example.com", "wrong-password")
		require.ErrorIs(t, err, auth.ErrInvalidCredentials, "attempt %d", i+1)
	}

	_, err := f.svc.Login(ctx, "jane@example.com", "secret123")
	require.ErrorIs(t, err, auth.ErrAccountLocked)

	f.advance(2*time.Hour - time.Minute)
	_, err = f.svc.Login(ctx, "jane@example.com", "secret123")
	require.ErrorIs(t, err, auth.ErrAccountLocked)

	f.advance(2 * time.Minute)
	_, err = f.svc.Login(ctx, "jane@example.com", "secret123")
	require.NoError(t, err)

	acc, err := f.store.AccountByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	require.Zero(t, acc.LoginAttempts)
	require.Nil(t, acc.LockUntil)
}

func TestLoginFailureAfterExpiredLockRestartsCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, "jane@example.com", "secret123")

	for i := 0; i < 5; i++ {
		_, _ = f.svc.Login(ctx, "jane@example.com", "wrong-password")
	}
	f.advance(3 * time.Hour)

	_, err := f.svc.Login(ctx, "jane@example.com", "wrong-password")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	acc, err := f.store.AccountByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	require.Equal(t, 1, acc.LoginAttempts)
	require.Nil(t, acc.LockUntil)
}

func TestInactiveAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := register(t, f, "jane@example.com", "secret123")

	view, err := f.svc.SetAccountActive(ctx, sess.Account.ID, false)
	require.NoError(t, err)
	require.False(t, view.IsActive)

	_, err = f.svc.Login(ctx, "jane@example.com", "secret123")
	require.ErrorIs(t, err, auth.ErrAccountInactive)
	_, err = f.svc.Authenticate(ctx, sess.Token)
	require.ErrorIs(t, err, auth.ErrAccountInactive)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := register(t, f, "jane@example.com", "secret123")

	_, err := f.svc.ChangePassword(ctx, sess.Account.ID, "wrong", "newsecret")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = f.svc.ChangePassword(ctx, sess.Account.ID, "secret123", "123")
	var verr validation.Errors
	require.True(t, errors.As(err, &verr))

	f.advance(time.Second)
	fresh, err := f.svc.ChangePassword(ctx, sess.Account.ID, "secret123", "newsecret")
	require.NoError(t, err)
	require.NotEqual(t, sess.Token, fresh.Token)

	_, err = f.svc.Authenticate(ctx, sess.Token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
	_, err = f.svc.Authenticate(ctx, fresh.Token)
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "jane@example.com", "secret123")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "jane@example.com", "newsecret")
	require.NoError(t, err)
}

func TestChangePasswordRevokesTokensFromTheSameSecond(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := register(t, f, "jane@example.com", "secret123")

	f.advance(300 * time.Millisecond)
	login, err := f.svc.Login(ctx, "jane@example.com", "secret123")
	require.NoError(t, err)

	f.advance(200 * time.Millisecond)
	fresh, err := f.svc.ChangePassword(ctx, sess.Account.ID, "secret123", "newsecret")
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, sess.Token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
	_, err = f.svc.Authenticate(ctx, login.Token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
	_, err = f.svc.Authenticate(ctx, fresh.Token)
	require.NoError(t, err)

	again, err := f.svc.Login(ctx, "jane@example.com", "newsecret")
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, again.Token)
	require.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := register(t, f, "jane@example.com", "secret123")

	first := "Janet"
	phone := "+1 555 0100"
	view, err := f.svc.UpdateProfile(ctx, sess.Account.ID, auth.ProfilePatch{FirstName: &first, Phone: &phone})
	require.NoError(t, err)
	require.Equal(t, "Janet", view.FirstName)
	require.Equal(t, "Doe", view.LastName)
	require.Equal(t, phone, view.Phone)

	bad := "??"
	_, err = f.svc.UpdateProfile(ctx, sess.Account.ID, auth.ProfilePatch{Phone: &bad})
	var verr validation.Errors
	require.True(t, errors.As(err, &verr))
}

func TestListAndDeleteAccounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := register(t, f, "a@example.com", "secret123")
	f.advance(time.Second)
	register(t, f, "b@example.com", "secret123")

	list, total, err := f.svc.ListAccounts(ctx, auth.AccountFilter{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, "b@example.com", list[0].Email)

	list, total, err = f.svc.ListAccounts(ctx, auth.AccountFilter{Search: "a@ex"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, a.Account.ID, list[0].ID)

	require.NoError(t, f.svc.DeleteAccount(ctx, a.Account.ID))
	require.ErrorIs(t, f.svc.DeleteAccount(ctx, a.Account.ID), auth.ErrNotFound)
	_, err = f.svc.Authenticate(ctx, a.Token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestAdminFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateAdmin(ctx, auth.NewAdmin{
		Username: "root", Email: "root@example.com", Password: "rootpass", Role: "super_admin",
	})
	require.NoError(t, err)
	require.Equal(t, auth.AdminRoleSuper, created.Role)
	require.ElementsMatch(t, auth.BuiltinPermissions, created.Permissions)

	_, err = f.svc.CreateAdmin(ctx, auth.NewAdmin{
		Username: "root", Email: "other@example.com", Password: "rootpass",
	})
	require.ErrorIs(t, err, auth.ErrDuplicateAdmin)

	_, err = f.svc.AdminLogin(ctx, "root@example.com", "nope")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	adminSess, err := f.svc.AdminLogin(ctx, "root@example.com", "rootpass")
	require.NoError(t, err)

	admin, err := f.svc.AuthenticateAdmin(ctx, adminSess.Token)
	require.NoError(t, err)
	require.Equal(t, created.ID, admin.ID)
	require.True(t, admin.HasPermission(auth.PermUserManagement))

	_, err = f.svc.Authenticate(ctx, adminSess.Token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	user := register(t, f, "jane@example.com", "secret123")
	_, err = f.svc.AuthenticateAdmin(ctx, user.Token)
	require.ErrorIs(t, err, auth.ErrForbidden)

	require.NoError(t, f.svc.ChangeAdminPassword(ctx, admin.ID, "rootpass", "newrootpass"))
	_, err = f.svc.AdminLogin(ctx, "root@example.com", "newrootpass")
	require.NoError(t, err)
}
