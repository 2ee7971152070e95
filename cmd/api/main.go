package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"mamacare.app/internal/audit"
	"mamacare.app/internal/auth"
	"mamacare.app/internal/care"
	"mamacare.app/internal/config"
	"mamacare.app/internal/httpapi"
	"mamacare.app/internal/migrate"
	"mamacare.app/internal/obs"
	"mamacare.app/internal/permission"
	"mamacare.app/internal/relay"
	"mamacare.app/internal/store/memory"
	"mamacare.app/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

const readinessInterval = 10 * time.Second

// backend is everything the services persist to.
type backend interface {
	auth.AccountStore
	auth.AdminStore
	permission.Store
	care.AppointmentStore
	care.MessageStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := obs.NewLogger(cfg.Log.Level, cfg.Log.Format, "mamacare-api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api stopped with error", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		data  backend
		ready httpapi.ReadyChecker = httpapi.ReadyFunc(nil)
	)
	if cfg.UsesPostgres() {
		pgStore, err := pg.Open(cfg.Database.DSN, pg.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer pgStore.Close()

		if cfg.Database.AutoMigrate {
			migrateCtx, cancel := context.WithTimeout(ctx, time.Minute)
			applied, err := migrate.NewManager(pgStore.DB(), migrate.Migrations(), nil).Up(migrateCtx)
			cancel()
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info("migrations applied", zap.Strings("names", applied))
		}
		data = pgStore
		ready = httpapi.ReadyFunc(pgStore.Ping)
		logger.Info("using postgres store")
	} else {
		data = memory.New()
		logger.Warn("MAMACARE_PG_DSN not set, using in-memory store; data is lost on restart")
	}

	hub := relay.NewHub(logger.Named("relay"))
	var (
		publisher relay.Publisher = hub
		workers   sync.WaitGroup
	)
	if cfg.UsesRedis() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		publisher = relay.NewRedisPublisher(client, logger.Named("relay"))
		bridge := relay.NewBridge(client, hub, logger.Named("relay"))
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := bridge.Run(ctx); err != nil {
				logger.Error("relay bridge stopped", zap.Error(err))
			}
		}()
		logger.Info("relay fan-out through redis", zap.String("addr", cfg.Redis.Addr))
	}

	tokens, err := auth.NewTokenIssuer(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("token issuer: %w", err)
	}
	authSvc, err := auth.NewService(data, data, tokens,
		auth.WithHasher(auth.NewHasher(cfg.Auth.BcryptCost)),
		auth.WithLockPolicy(cfg.Auth.LockThreshold, cfg.Auth.LockDuration),
		auth.WithLogger(logger.Named("auth")),
	)
	if err != nil {
		return fmt.Errorf("auth service: %w", err)
	}
	engine := permission.NewEngine(data, data,
		permission.WithRelay(publisher),
		permission.WithLogger(logger.Named("permission")),
	)
	careSvc := care.NewService(data, data,
		care.WithRelay(publisher),
		care.WithLogger(logger.Named("care")),
	)

	api := httpapi.New(httpapi.Deps{
		Auth:           authSvc,
		Engine:         engine,
		Care:           careSvc,
		Hub:            hub,
		Audit:          audit.New(logger),
		Logger:         logger,
		Ready:          ready,
		Version:        version,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		LoginRate:      cfg.HTTP.LoginRate,
		LoginBurst:     cfg.HTTP.LoginBurst,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// No WriteTimeout: the notification stream is long-lived.
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	var grpcSrv *grpc.Server
	if addr := cfg.HTTP.GRPCAddr; addr != "" && addr != "off" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		grpcSrv = grpc.NewServer()
		health := httpapi.NewHealthServer(ready, logger.Named("health"))
		health.Register(grpcSrv)
		workers.Add(1)
		go func() {
			defer workers.Done()
			health.Run(ctx, readinessInterval)
		}()
		go func() {
			logger.Info("grpc listening", zap.String("addr", addr))
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("grpc: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		stop()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	engine.Wait()
	workers.Wait()
	logger.Info("stopped")
	return nil
}
