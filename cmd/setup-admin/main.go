package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"mamacare.app/internal/auth"
	"mamacare.app/internal/obs"
	"mamacare.app/internal/store/pg"
)

func main() {
	var (
		dsn      = flag.String("dsn", os.Getenv("MAMACARE_PG_DSN"), "PostgreSQL DSN")
		email    = flag.String("email", "", "Admin email")
		username = flag.String("username", "", "Admin username")
		password = flag.String("password", os.Getenv("MAMACARE_ADMIN_PASSWORD"), "Admin password (or MAMACARE_ADMIN_PASSWORD)")
		role     = flag.String("role", string(auth.AdminRoleSuper), "super_admin, admin or moderator")
		perms    = flag.String("permissions", "", "Comma-separated permissions (default: all for super_admin)")
		timeout  = flag.Duration("timeout", 30*time.Second, "Overall timeout")
	)
	flag.Parse()

	logger, err := obs.NewLogger(os.Getenv("MAMACARE_LOG_LEVEL"), "console", "mamacare-setup-admin")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if *dsn == "" {
		logger.Fatal("missing DSN: provide via -dsn or MAMACARE_PG_DSN")
	}
	secret := os.Getenv("MAMACARE_AUTH_SECRET")
	if strings.TrimSpace(secret) == "" {
		logger.Fatal("MAMACARE_AUTH_SECRET is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, err := pg.Open(*dsn, pg.PoolConfig{MaxOpenConns: 2, MaxIdleConns: 1})
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	defer store.Close()
	if err := store.Ping(ctx); err != nil {
		logger.Fatal("ping db", zap.Error(err))
	}

	tokens, err := auth.NewTokenIssuer(secret, 0)
	if err != nil {
		logger.Fatal("token issuer", zap.Error(err))
	}
	svc, err := auth.NewService(store, store, tokens, auth.WithLogger(logger))
	if err != nil {
		logger.Fatal("auth service", zap.Error(err))
	}

	var permissions []string
	for _, p := range strings.Split(*perms, ",") {
		if p = strings.TrimSpace(p); p != "" {
			permissions = append(permissions, p)
		}
	}

	admin, err := svc.CreateAdmin(ctx, auth.NewAdmin{
		Username:    *username,
		Email:       *email,
		Password:    *password,
		Role:        *role,
		Permissions: permissions,
	})
	if err != nil {
		if errors.Is(err, auth.ErrDuplicateAdmin) {
			logger.Fatal("an admin with this username or email already exists")
		}
		logger.Fatal("create admin", zap.Error(err))
	}
	logger.Info("admin created",
		zap.String("id", admin.ID),
		zap.String("username", admin.Username),
		zap.String("role", string(admin.Role)),
		zap.Strings("permissions", admin.Permissions))
}
