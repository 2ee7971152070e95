package auth

import "context"

type accountContextKey struct{}
type adminContextKey struct{}

// ContextWithAccount attaches the authenticated account to the context.
func ContextWithAccount(ctx context.Context, a Account) context.Context {
	return context.WithValue(ctx, accountContextKey{}, &a)
}

// AccountFromContext extracts the authenticated account from the context.
func AccountFromContext(ctx context.Context) (Account, bool) {
	if ctx == nil {
		return Account{}, false
	}
	v, ok := ctx.Value(accountContextKey{}).(*Account)
	if !ok || v == nil {
		return Account{}, false
	}
	return *v, true
}

// ContextWithAdmin attaches the authenticated administrator to the context.
func ContextWithAdmin(ctx context.Context, a Admin) context.Context {
	return context.WithValue(ctx, adminContextKey{}, &a)
}

// AdminFromContext extracts the authenticated administrator from the context.
func AdminFromContext(ctx context.Context) (Admin, bool) {
	if ctx == nil {
		return Admin{}, false
	}
	v, ok := ctx.Value(adminContextKey{}).(*Admin)
	if !ok || v == nil {
		return Admin{}, false
	}
	return *v, true
}

// ActorID returns the id of whoever is authenticated on ctx, admin first.
func ActorID(ctx context.Context) (string, bool) {
	if a, ok := AdminFromContext(ctx); ok {
		return a.ID, true
	}
	if a, ok := AccountFromContext(ctx); ok {
		return a.ID, true
	}
	return "", false
}
