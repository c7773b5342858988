package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	Env        string
	Port       string
	JWTSecret  string
	TokenTTL   time.Duration
	Store      string
	PolicyFile string
	Database   DatabaseConfig
	Governance GovernanceConfig
	Metrics    MetricsConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Quiet    bool
}

// GovernanceConfig holds settings of the assignment engine that are fixed at startup
type GovernanceConfig struct {
	QuotaTimeZone string
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Namespace string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	store := strings.ToLower(getEnv("STORE", StorePostgres))
	if store != StorePostgres && store != StoreMemory {
		return nil, fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, store)
	}

	ttl, err := time.ParseDuration(getEnv("TOKEN_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
	}

	tz := getEnv("QUOTA_TIMEZONE", "UTC")
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid QUOTA_TIMEZONE %q: %w", tz, err)
	}

	return &Config{
		Env:        getEnv("APP_ENV", "development"),
		Port:       getEnv("PORT", "3210"),
		JWTSecret:  jwtSecret,
		TokenTTL:   ttl,
		Store:      store,
		PolicyFile: getEnv("POLICY_FILE", "./governance.yml"),
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "eckvideo"),
			Quiet:    getEnv("DB_QUIET", "false") == "true",
		},
		Governance: GovernanceConfig{
			QuotaTimeZone: tz,
		},
		Metrics: MetricsConfig{
			Namespace: getEnv("METRICS_NAMESPACE", "eckvideo"),
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
