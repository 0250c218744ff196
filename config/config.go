/*
Package config loads runtime configuration from the environment.

PURPOSE:
  One Config value built at startup. A .env file in the working
  directory is loaded first when present; real environment variables
  always win over it. Flags in cmd/server override the result.

VARIABLES:
  PORT                   HTTP port (default 8080)
  DB_DRIVER              sqlite | postgres | memory (default sqlite)
  DB_PATH                SQLite file (default ./studio.db)
  DATABASE_URL           PostgreSQL DSN (DB_DRIVER=postgres)
  JWT_SECRET             HMAC secret for bearer tokens
  CANCEL_DEADLINE        member cancellation cutoff (default 2h)
  BILLING_PERIOD         anniversary | calendar_month (default anniversary)
  PLAN_GRANT_ON_ASSIGN   grant a month of tickets when assigning a plan
  RABBITMQ_URL           calendar sync broker; empty logs changes instead
  CALENDAR_RESYNC        interval of the calendar resync job (default 15m, 0 disables)
  CORS_ORIGINS           comma-separated allowed origins
  ENABLE_SCENARIOS       expose the admin-only demo scenario endpoints (default off,
                         refused with DB_DRIVER=postgres)
  REDIS_*, RATE_LIMIT_*  see redis.go
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/warp/studio-engine/studio"
)

type Config struct {
	Port string

	DBDriver    string
	DBPath      string
	DatabaseURL string

	JWTSecret string

	CancelDeadline    time.Duration
	BillingPeriod     studio.PeriodType
	PlanGrantOnAssign bool

	RabbitMQURL    string
	CalendarResync time.Duration
	CORSOrigins    []string

	EnableScenarios bool

	Redis     RedisConfig
	RateLimit RateLimitConfig
}

const defaultCORSOrigins = "http://localhost:5173,http://localhost:8080"

// Load reads .env (if any) and the environment.
func Load() (Config, error) {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	period, err := studio.ParsePeriodType(envStr("BILLING_PERIOD", ""))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:              envStr("PORT", "8080"),
		DBDriver:          strings.ToLower(envStr("DB_DRIVER", "sqlite")),
		DBPath:            envStr("DB_PATH", "./studio.db"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		CancelDeadline:    envDur("CANCEL_DEADLINE", studio.DefaultCancelDeadline),
		BillingPeriod:     period,
		PlanGrantOnAssign: envBool("PLAN_GRANT_ON_ASSIGN", true),
		RabbitMQURL:       os.Getenv("RABBITMQ_URL"),
		CalendarResync:    envDur("CALENDAR_RESYNC", 15*time.Minute),
		CORSOrigins:       splitList(envStr("CORS_ORIGINS", defaultCORSOrigins)),
		EnableScenarios:   envBool("ENABLE_SCENARIOS", false),
		Redis:             LoadRedisConfig(),
		RateLimit:         LoadRateLimitConfig(),
	}
	return cfg, cfg.Validate()
}

// Validate checks combinations the server cannot start with.
func (c Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.CancelDeadline < 0 {
		return fmt.Errorf("CANCEL_DEADLINE must not be negative")
	}
	if c.CalendarResync < 0 {
		return fmt.Errorf("CALENDAR_RESYNC must not be negative")
	}
	// Scenario reset truncates every table.
	if c.EnableScenarios && c.DBDriver == "postgres" {
		return fmt.Errorf("ENABLE_SCENARIOS is not allowed with DB_DRIVER=postgres")
	}
	return nil
}

// =============================================================================
// ENV HELPERS
// =============================================================================

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
