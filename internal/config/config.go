package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime settings for the API and the companion CLIs.
type Config struct {
	HTTP struct {
		Addr            string
		GRPCAddr        string
		AllowedOrigins  []string
		ShutdownTimeout time.Duration
		LoginRate       float64
		LoginBurst      int
	}
	Database struct {
		DSN             string
		MaxOpenConns    int
		MaxIdleConns    int
		ConnMaxLifetime time.Duration
		AutoMigrate     bool
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Auth struct {
		Secret        string
		TokenTTL      time.Duration
		BcryptCost    int
		LockThreshold int
		LockDuration  time.Duration
	}
	Log struct {
		Level  string
		Format string
	}
}

// ErrMissingSecret is returned when MAMACARE_AUTH_SECRET is unset.
var ErrMissingSecret = errors.New("config: MAMACARE_AUTH_SECRET is required")

// Load reads the environment. Unparseable values are reported rather than
// silently replaced by defaults.
func Load() (Config, error) {
	var (
		cfg  Config
		errs []error
	)

	cfg.HTTP.Addr = getEnv("MAMACARE_HTTP_ADDR", ":8080")
	cfg.HTTP.GRPCAddr = getEnv("MAMACARE_GRPC_ADDR", ":9090")
	cfg.HTTP.AllowedOrigins = splitCSV(getEnv("MAMACARE_ALLOWED_ORIGINS", "http://localhost:3000"))
	cfg.HTTP.ShutdownTimeout = parseDuration("MAMACARE_SHUTDOWN_TIMEOUT", "10s", &errs)
	cfg.HTTP.LoginRate = parseFloat("MAMACARE_LOGIN_RATE", "5", &errs)
	cfg.HTTP.LoginBurst = parseInt("MAMACARE_LOGIN_BURST", "10", &errs)

	cfg.Database.DSN = strings.TrimSpace(os.Getenv("MAMACARE_PG_DSN"))
	cfg.Database.MaxOpenConns = parseInt("MAMACARE_PG_MAX_OPEN_CONNS", "20", &errs)
	cfg.Database.MaxIdleConns = parseInt("MAMACARE_PG_MAX_IDLE_CONNS", "10", &errs)
	cfg.Database.ConnMaxLifetime = parseDuration("MAMACARE_PG_CONN_MAX_LIFETIME", "1h", &errs)
	cfg.Database.AutoMigrate = parseBool("MAMACARE_PG_AUTO_MIGRATE", "false", &errs)

	cfg.Redis.Addr = strings.TrimSpace(os.Getenv("MAMACARE_REDIS_ADDR"))
	cfg.Redis.Password = os.Getenv("MAMACARE_REDIS_PASSWORD")
	cfg.Redis.DB = parseInt("MAMACARE_REDIS_DB", "0", &errs)

	cfg.Auth.Secret = strings.TrimSpace(os.Getenv("MAMACARE_AUTH_SECRET"))
	if cfg.Auth.Secret == "" {
		errs = append(errs, ErrMissingSecret)
	}
	cfg.Auth.TokenTTL = parseDuration("MAMACARE_TOKEN_TTL", "720h", &errs)
	cfg.Auth.BcryptCost = parseInt("MAMACARE_BCRYPT_COST", "12", &errs)
	cfg.Auth.LockThreshold = parseInt("MAMACARE_LOCK_THRESHOLD", "5", &errs)
	cfg.Auth.LockDuration = parseDuration("MAMACARE_LOCK_DURATION", "2h", &errs)

	cfg.Log.Level = getEnv("MAMACARE_LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("MAMACARE_LOG_FORMAT", "json")

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

// UsesPostgres reports whether a database DSN was configured.
func (c Config) UsesPostgres() bool {
	return c.Database.DSN != ""
}

// UsesRedis reports whether cross-instance notification fan-out is enabled.
func (c Config) UsesRedis() bool {
	return c.Redis.Addr != ""
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseInt(key, def string, errs *[]error) int {
	raw := getEnv(key, def)
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s: invalid integer %q", key, raw))
		return 0
	}
	return v
}

func parseFloat(key, def string, errs *[]error) float64 {
	raw := getEnv(key, def)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s: invalid number %q", key, raw))
		return 0
	}
	return v
}

func parseBool(key, def string, errs *[]error) bool {
	raw := getEnv(key, def)
	v, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s: invalid boolean %q", key, raw))
		return false
	}
	return v
}

func parseDuration(key, def string, errs *[]error) time.Duration {
	raw := getEnv(key, def)
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s: invalid duration %q", key, raw))
		return 0
	}
	return v
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
