package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application level configuration loaded from environment and flags.
type Config struct {
	RunAddress  string
	DatabaseURI string

	CashfreeBaseURL      string
	CashfreeClientID     string
	CashfreeClientSecret string
	CashfreeAPIVersion   string
	GatewayRateLimit     float64

	OperatorKeyHash string

	ConfirmationTimeout time.Duration
	VerifyRetryDelay    time.Duration

	SweepInterval   time.Duration
	StaleAfter      time.Duration
	WorkerPoolSize  int
	SweepBatchSize  int
	ShutdownTimeout time.Duration
}

const (
	defaultRunAddress          = ":8080"
	defaultCashfreeBaseURL     = "https://api.cashfree.com"
	defaultCashfreeAPIVersion  = "2023-08-01"
	defaultGatewayRateLimit    = 10.0
	defaultConfirmationTimeout = 15 * time.Second
	defaultVerifyRetryDelay    = 3 * time.Second
	defaultSweepInterval       = 30 * time.Second
	defaultStaleAfter          = 2 * time.Minute
	defaultWorkerPoolSize      = 4
	defaultSweepBatchSize      = 32
	defaultShutdownTimeout     = 10 * time.Second
)

// GatewayConfigured reports whether Cashfree credentials are present.
func (c *Config) GatewayConfigured() bool {
	return c.CashfreeClientID != "" && c.CashfreeClientSecret != ""
}

// Load parses configuration from flags and environment variables.
func Load() (*Config, error) {
	return load(os.Args[1:], os.LookupEnv)
}

type envLookup func(string) (string, bool)

func load(args []string, lookup envLookup) (*Config, error) {
	cfg := &Config{
		RunAddress:           getString(lookup, "RUN_ADDRESS", defaultRunAddress),
		DatabaseURI:          getString(lookup, "DATABASE_URI", ""),
		CashfreeBaseURL:      getString(lookup, "CASHFREE_BASE_URL", defaultCashfreeBaseURL),
		CashfreeClientID:     getString(lookup, "CASHFREE_CLIENT_ID", ""),
		CashfreeClientSecret: getString(lookup, "CASHFREE_CLIENT_SECRET", ""),
		CashfreeAPIVersion:   getString(lookup, "CASHFREE_API_VERSION", defaultCashfreeAPIVersion),
		GatewayRateLimit:     getFloat(lookup, "GATEWAY_RATE_LIMIT", defaultGatewayRateLimit),
		OperatorKeyHash:      getString(lookup, "OPERATOR_KEY_HASH", ""),
		ConfirmationTimeout:  getDuration(lookup, "CONFIRMATION_TIMEOUT", defaultConfirmationTimeout),
		VerifyRetryDelay:     getDuration(lookup, "VERIFY_RETRY_DELAY", defaultVerifyRetryDelay),
		SweepInterval:        getDuration(lookup, "SWEEP_INTERVAL", defaultSweepInterval),
		StaleAfter:           getDuration(lookup, "STALE_AFTER", defaultStaleAfter),
		WorkerPoolSize:       getInt(lookup, "WORKER_POOL_SIZE", defaultWorkerPoolSize),
		SweepBatchSize:       getInt(lookup, "SWEEP_BATCH_SIZE", defaultSweepBatchSize),
		ShutdownTimeout:      getDuration(lookup, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
	}

	fs := flag.NewFlagSet("servenow", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	durations := []struct {
		name   string
		usage  string
		target *time.Duration
		raw    string
	}{
		{"confirmation-timeout", "Countdown before the fallback screen", &cfg.ConfirmationTimeout, ""},
		{"verify-retry-delay", "Delay before the single verification retry", &cfg.VerifyRetryDelay, ""},
		{"sweep-interval", "Interval between reconciliation sweeps", &cfg.SweepInterval, ""},
		{"stale-after", "Age after which a non-terminal order is swept", &cfg.StaleAfter, ""},
		{"shutdown-timeout", "Graceful shutdown timeout", &cfg.ShutdownTimeout, ""},
	}
	for i := range durations {
		d := &durations[i]
		d.raw = d.target.String()
		fs.StringVar(&d.raw, d.name, d.raw, d.usage)
	}

	fs.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "HTTP server listen address")
	fs.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "PostgreSQL DSN")
	fs.StringVar(&cfg.CashfreeBaseURL, "cashfree-url", cfg.CashfreeBaseURL, "Cashfree PG base URL")
	fs.StringVar(&cfg.CashfreeClientID, "cashfree-client-id", cfg.CashfreeClientID, "Cashfree client id")
	fs.StringVar(&cfg.CashfreeClientSecret, "cashfree-client-secret", cfg.CashfreeClientSecret, "Cashfree client secret")
	fs.StringVar(&cfg.CashfreeAPIVersion, "cashfree-api-version", cfg.CashfreeAPIVersion, "Cashfree API version header")
	fs.Float64Var(&cfg.GatewayRateLimit, "gateway-rps", cfg.GatewayRateLimit, "Maximum gateway requests per second")
	fs.StringVar(&cfg.OperatorKeyHash, "operator-key-hash", cfg.OperatorKeyHash, "bcrypt hash of the operator key")
	fs.IntVar(&cfg.WorkerPoolSize, "worker-pool", cfg.WorkerPoolSize, "Number of concurrent sweeper workers")
	fs.IntVar(&cfg.SweepBatchSize, "sweep-batch", cfg.SweepBatchSize, "Maximum orders per sweep")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	for _, d := range durations {
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", strings.ReplaceAll(d.name, "-", " "), err)
		}
		*d.target = parsed
	}

	if secretFile, ok := lookup("CASHFREE_CLIENT_SECRET_FILE"); ok && secretFile != "" {
		content, err := os.ReadFile(secretFile)
		if err != nil {
			return nil, fmt.Errorf("read cashfree secret file: %w", err)
		}
		cfg.CashfreeClientSecret = strings.TrimSpace(string(content))
	}

	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = defaultWorkerPoolSize
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = defaultSweepBatchSize
	}
	if cfg.GatewayRateLimit <= 0 {
		cfg.GatewayRateLimit = defaultGatewayRateLimit
	}
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = defaultConfirmationTimeout
	}
	if cfg.VerifyRetryDelay <= 0 {
		cfg.VerifyRetryDelay = defaultVerifyRetryDelay
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("database URI must be provided")
	}

	return cfg, nil
}

func getString(lookup envLookup, key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(lookup envLookup, key string, def int) int {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(lookup envLookup, key string, def float64) float64 {
	if v, ok := lookup(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getDuration(lookup envLookup, key string, def time.Duration) time.Duration {
	if v, ok := lookup(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
