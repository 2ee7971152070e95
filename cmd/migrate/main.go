package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"mamacare.app/internal/migrate"
	"mamacare.app/internal/obs"
)

func main() {
	var (
		dsn       = flag.String("dsn", os.Getenv("MAMACARE_PG_DSN"), "PostgreSQL DSN")
		seedsPath = flag.String("seeds", "", "Directory of SQL seed files (optional)")
		timeout   = flag.Duration("timeout", 30*time.Second, "Overall timeout")
	)
	flag.Parse()

	logger, err := obs.NewLogger(os.Getenv("MAMACARE_LOG_LEVEL"), "console", "mamacare-migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if *dsn == "" {
		logger.Fatal("missing DSN: provide via -dsn or MAMACARE_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		logger.Fatal("usage: migrate [up|down|seed|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	var seeds fs.FS
	if *seedsPath != "" {
		seeds = os.DirFS(*seedsPath)
	}
	mgr := migrate.NewManager(db, migrate.Migrations(), seeds)

	cmd := flag.Arg(0)
	switch cmd {
	case "up":
		var applied []string
		applied, err = mgr.Up(ctx)
		for _, name := range applied {
			logger.Info("migration applied", zap.String("name", name))
		}
	case "down":
		err = mgr.Down(ctx)
		if errors.Is(err, migrate.ErrNothingApplied) {
			logger.Info("nothing to roll back")
			err = nil
		}
	case "seed":
		err = mgr.Seed(ctx)
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	default:
		logger.Fatal("unknown command", zap.String("command", cmd))
	}
	if err != nil {
		logger.Fatal("migrate failed", zap.String("command", cmd), zap.Error(err))
	}
}
