/*
Package config loads process configuration and builds the shared logger.

PURPOSE:
  Every tunable of the server comes from the environment. A .env file in
  the working directory is loaded first when present; variables already
  set in the environment win over it. Command-line flags in cmd/server
  override both.

VARIABLES:
  PORT                    HTTP port                          (8080)
  DB_PATH                 SQLite path, ":memory:" allowed     (ledger.db)
  LOG_LEVEL               logrus level                       (info)
  REDIS_ADDRESS           host:port; empty = in-process locks ("")
  LOCK_TTL_SECONDS        Redis lock TTL                     (30)
  VAT_RATE                VAT applied to taxable lines       (0.1)
  ORDER_CUTOFF_HOUR       next-day order cut-off, 0 = none   (0)
  ALLOW_WEEKEND_DELIVERY  accept Saturday/Sunday dates       (false)
  CORS_ALLOWED_ORIGINS    comma separated                    (*)

SEE ALSO:
  - logger.go: NewLogger, LogError
  - cmd/server/main.go: flag overrides
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port                 int
	DBPath               string
	LogLevel             string
	RedisAddress         string
	LockTTL              time.Duration
	VATRate              decimal.Decimal
	OrderCutoffHour      int
	AllowWeekendDelivery bool
	CORSAllowedOrigins   []string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:               8080,
		DBPath:             "ledger.db",
		LogLevel:           "info",
		LockTTL:            30 * time.Second,
		VATRate:            decimal.RequireFromString("0.1"),
		CORSAllowedOrigins: []string{"*"},
	}
}

// Load reads .env (if any) and the environment on top of Default.
func Load() (Config, error) {
	// If .env is missing, ignore error (env vars can be set by other means)
	_ = godotenv.Load()
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a lookup function, so tests can supply a map.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	var err error

	if v, ok := lookup("PORT"); ok && v != "" {
		if cfg.Port, err = strconv.Atoi(v); err != nil {
			return cfg, fmt.Errorf("PORT: %w", err)
		}
	}
	if v, ok := lookup("DB_PATH"); ok && v != "" {
		cfg.DBPath = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := lookup("REDIS_ADDRESS"); ok {
		cfg.RedisAddress = v
	}
	if v, ok := lookup("LOCK_TTL_SECONDS"); ok && v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return cfg, fmt.Errorf("LOCK_TTL_SECONDS: invalid value %q", v)
		}
		cfg.LockTTL = time.Duration(secs) * time.Second
	}
	if v, ok := lookup("VAT_RATE"); ok && v != "" {
		rate, err := decimal.NewFromString(v)
		if err != nil || rate.IsNegative() {
			return cfg, fmt.Errorf("VAT_RATE: invalid value %q", v)
		}
		cfg.VATRate = rate
	}
	if v, ok := lookup("ORDER_CUTOFF_HOUR"); ok && v != "" {
		h, err := strconv.Atoi(v)
		if err != nil || h < 0 || h > 23 {
			return cfg, fmt.Errorf("ORDER_CUTOFF_HOUR: invalid value %q", v)
		}
		cfg.OrderCutoffHour = h
	}
	if v, ok := lookup("ALLOW_WEEKEND_DELIVERY"); ok && v != "" {
		if cfg.AllowWeekendDelivery, err = strconv.ParseBool(v); err != nil {
			return cfg, fmt.Errorf("ALLOW_WEEKEND_DELIVERY: %w", err)
		}
	}
	if v, ok := lookup("CORS_ALLOWED_ORIGINS"); ok && v != "" {
		cfg.CORSAllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}
	return cfg, nil
}
