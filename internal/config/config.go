package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName              = "PayWallet"
	defaultAppEnv               = "development"
	defaultPort                 = "8080"
	defaultLogLevel             = "info"
	defaultShutdownDelay        = 10 * time.Second
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultLockTimeout          = 5 * time.Second
	defaultTxTimeout            = 15 * time.Second
	defaultWalletNumberAttempts = 10
	defaultMaxActiveAPIKeys     = 5
	idemTTLSecondsEnvVar        = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar            = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar       = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar      = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	JWTSecret       string
	PaystackSecret  string
	PaystackBaseURL string

	LockTimeout          time.Duration
	TxTimeout            time.Duration
	WalletNumberAttempts int
	DepositAmountCheck   bool
	MaxActiveAPIKeys     int
}

// Load reads configuration values from an optional .env file and the
// environment. Real environment variables win over .env entries.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		AppName:         getEnv("APP_NAME", defaultAppName),
		AppEnv:          getEnv("APP_ENV", defaultAppEnv),
		Port:            getEnv("PORT", defaultPort),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		ShutdownPeriod:  defaultShutdownDelay,
		IdempotencyTTL:  defaultIdempotencyTTL,
		JWTSecret:       os.Getenv("JWT_SECRET"),
		PaystackSecret:  os.Getenv("PAYSTACK_SECRET"),
		PaystackBaseURL: os.Getenv("PAYSTACK_BASE_URL"),
	}

	var err error
	if cfg.ShutdownPeriod, err = secondsOrDuration(shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = secondsOrDuration(idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.LockTimeout, err = getDuration("DB_LOCK_TIMEOUT", defaultLockTimeout); err != nil {
		return Config{}, err
	}
	if cfg.TxTimeout, err = getDuration("DB_TX_TIMEOUT", defaultTxTimeout); err != nil {
		return Config{}, err
	}
	if cfg.WalletNumberAttempts, err = getInt("WALLET_NUMBER_ATTEMPTS", defaultWalletNumberAttempts); err != nil {
		return Config{}, err
	}
	if cfg.MaxActiveAPIKeys, err = getInt("MAX_ACTIVE_API_KEYS", defaultMaxActiveAPIKeys); err != nil {
		return Config{}, err
	}
	if cfg.DepositAmountCheck, err = getBool("DEPOSIT_AMOUNT_CHECK", true); err != nil {
		return Config{}, err
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.RedisURL == "" && !cfg.IsDevelopment() {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
	}
	if cfg.PaystackSecret == "" && !cfg.IsDevelopment() {
		return Config{}, fmt.Errorf("PAYSTACK_SECRET must be set")
	}
	if cfg.WalletNumberAttempts < 1 {
		return Config{}, fmt.Errorf("WALLET_NUMBER_ATTEMPTS must be positive")
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs in a local environment.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "dev" || c.AppEnv == "local"
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func secondsOrDuration(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	return getDuration(durationKey, fallback)
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
