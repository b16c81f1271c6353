package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	PostgresAddress  string
	PostgresPort     string
	PostgresDB       string
	PostgresUsername string
	PostgresPassword string
	PostgresMaxConns int

	HTTPPort  string
	JWTSecret string
	LogLevel  string

	PlaidClientID          string
	PlaidSecret            string
	PlaidBaseURL           string
	PlaidWebhookSecret     string
	PlaidCallTimeout       time.Duration
	PlaidRequestsPerSecond float64

	ImportRateLimit  int64
	ImportRateWindow time.Duration
	APIRateLimit     int64
	APIRateWindow    time.Duration
	RateLimitStore   string

	WorkerCount        int
	OperatorCount      int
	WorkerPollInterval time.Duration
	JobLease           time.Duration
	JobMaxAttempts     int
	SyncMaxAttempts    int
	SyncBaseDelay      time.Duration
	SyncInterval       time.Duration

	StorageDriver string
	// InlinePayloadLimit is the largest CSV body kept on the job record;
	// bigger uploads are staged separately.
	InlinePayloadLimit int
}

func ProcessEnvironmentVariables() (*Config, error) {
	// A missing .env is the normal case outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	// In all cases the default behavior should be for the docker compose setup
	env := Config{
		PostgresAddress:  "localhost",
		PostgresPort:     "5433",
		PostgresDB:       "postgres",
		PostgresUsername: "postgres",
		PostgresPassword: "testpassword",
		PostgresMaxConns: 10,

		HTTPPort: "9446",
		LogLevel: "info",

		PlaidBaseURL:           "https://sandbox.plaid.com",
		PlaidCallTimeout:       30 * time.Second,
		PlaidRequestsPerSecond: 5,

		ImportRateLimit:  5,
		ImportRateWindow: time.Hour,
		APIRateLimit:     100,
		APIRateWindow:    time.Minute,
		RateLimitStore:   StorageDriverPostgres,

		WorkerCount:        4,
		OperatorCount:      4,
		WorkerPollInterval: time.Second,
		JobLease:           2 * time.Minute,
		JobMaxAttempts:     3,
		SyncMaxAttempts:    5,
		SyncBaseDelay:      time.Second,
		SyncInterval:       6 * time.Hour,

		StorageDriver:      StorageDriverPostgres,
		InlinePayloadLimit: 1 << 20,
	}

	setString(&env.PostgresAddress, "POSTGRES_ADDRESS")
	setString(&env.PostgresPort, "POSTGRES_PORT")
	setString(&env.PostgresDB, "POSTGRES_DB")
	setString(&env.PostgresUsername, "POSTGRES_USERNAME")
	setString(&env.PostgresPassword, "POSTGRES_PASSWORD")
	setString(&env.HTTPPort, "HTTP_PORT")
	setString(&env.JWTSecret, "JWT_SECRET")
	setString(&env.LogLevel, "LOG_LEVEL")
	setString(&env.PlaidClientID, "PLAID_CLIENT_ID")
	setString(&env.PlaidSecret, "PLAID_SECRET")
	setString(&env.PlaidBaseURL, "PLAID_BASE_URL")
	setString(&env.PlaidWebhookSecret, "PLAID_WEBHOOK_SECRET")
	setString(&env.RateLimitStore, "RATE_LIMIT_STORE")
	setString(&env.StorageDriver, "STORAGE_DRIVER")

	var errs []error
	errs = append(errs,
		setInt(&env.PostgresMaxConns, "POSTGRES_MAX_CONNS"),
		setInt(&env.WorkerCount, "WORKER_COUNT"),
		setInt(&env.OperatorCount, "OPERATOR_COUNT"),
		setInt(&env.JobMaxAttempts, "JOB_MAX_ATTEMPTS"),
		setInt(&env.SyncMaxAttempts, "SYNC_MAX_ATTEMPTS"),
		setInt(&env.InlinePayloadLimit, "INLINE_PAYLOAD_LIMIT"),
		setInt64(&env.ImportRateLimit, "IMPORT_RATE_LIMIT"),
		setInt64(&env.APIRateLimit, "API_RATE_LIMIT"),
		setFloat(&env.PlaidRequestsPerSecond, "PLAID_REQUESTS_PER_SECOND"),
		setDuration(&env.PlaidCallTimeout, "PLAID_CALL_TIMEOUT"),
		setDuration(&env.ImportRateWindow, "IMPORT_RATE_WINDOW"),
		setDuration(&env.APIRateWindow, "API_RATE_WINDOW"),
		setDuration(&env.WorkerPollInterval, "WORKER_POLL_INTERVAL"),
		setDuration(&env.JobLease, "JOB_LEASE"),
		setDuration(&env.SyncBaseDelay, "SYNC_BASE_DELAY"),
		setDuration(&env.SyncInterval, "SYNC_INTERVAL"),
	)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if env.StorageDriver != StorageDriverPostgres && env.StorageDriver != StorageDriverMemory {
		return nil, fmt.Errorf("STORAGE_DRIVER must be %q or %q", StorageDriverPostgres, StorageDriverMemory)
	}
	if env.RateLimitStore != StorageDriverPostgres && env.RateLimitStore != StorageDriverMemory {
		return nil, fmt.Errorf("RATE_LIMIT_STORE must be %q or %q", StorageDriverPostgres, StorageDriverMemory)
	}
	return &env, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); len(v) != 0 {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if len(v) == 0 {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func setInt64(dst *int64, key string) error {
	v := os.Getenv(key)
	if len(v) == 0 {
		return nil
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if len(v) == 0 {
		return nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if len(v) == 0 {
		return nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = parsed
	return nil
}
