// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	AWS         AWSConfig
	Cleanup     CleanupConfig
	I18n        I18nConfig
}

type ServerConfig struct {
	Port           string
	Host           string
	ReadTimeout    int
	WriteTimeout   int
	IdleTimeout    int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey       string
	AccessTokenTTL  int // in hours
	RefreshTokenTTL int // in hours
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	CloudFrontURL   string
}

// CleanupConfig controls the retention job that purges files of rejected
// applications once the grace period has elapsed.
type CleanupConfig struct {
	Enabled bool
	// GraceDays is how long after a session ends the files of its closed
	// applications are retained.
	GraceDays int
	// BatchSize bounds how many applications one run reconciles.
	BatchSize int
	// RunAt is the local wall-clock time ("HH:MM") of the daily run.
	RunAt string
	// MaintenanceToken guards the manual-trigger endpoints. Empty disables
	// them.
	MaintenanceToken string
}

type I18nConfig struct {
	DefaultLocale string
	LocalesPath   string
}

const (
	DefaultGraceDays = 90
	DefaultBatchSize = 100
	DefaultRunAt     = "03:30"
)

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Host:           getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:    getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout:   getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:    getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "thesisflow"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
		},
		JWT: JWTConfig{
			SecretKey:       getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenTTL:  getEnvAsInt("JWT_ACCESS_TTL", 24),   // 24 hours
			RefreshTokenTTL: getEnvAsInt("JWT_REFRESH_TTL", 168), // 7 days
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "eu-central-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", "thesisflow-files"),
			CloudFrontURL:   getEnv("AWS_CLOUDFRONT_URL", ""),
		},
		Cleanup: CleanupConfig{
			Enabled:          getEnvAsBool("CLEANUP_ENABLED", true),
			GraceDays:        getEnvAsInt("CLEANUP_GRACE_DAYS", DefaultGraceDays),
			BatchSize:        getEnvAsInt("CLEANUP_BATCH_SIZE", DefaultBatchSize),
			RunAt:            getEnv("CLEANUP_RUN_AT", DefaultRunAt),
			MaintenanceToken: getEnv("MAINTENANCE_TOKEN", ""),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
			LocalesPath:   getEnv("LOCALES_PATH", "./internal/i18n/locales"),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "your-secret-key-change-in-production" && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	return nil
}

// Normalize replaces unusable cleanup settings with their defaults and flags
// legal but suspicious ones, returning a warning per finding. A misconfigured
// retention job must not keep the server from starting.
func (c *CleanupConfig) Normalize() []string {
	var warnings []string

	if c.GraceDays < 1 {
		warnings = append(warnings, fmt.Sprintf(
			"cleanup grace period %d is unusable, using %d days", c.GraceDays, DefaultGraceDays))
		c.GraceDays = DefaultGraceDays
	} else if c.GraceDays < 30 || c.GraceDays > 365 {
		warnings = append(warnings, fmt.Sprintf(
			"cleanup grace period of %d days is outside the expected 30..365 day range", c.GraceDays))
	}

	if c.BatchSize < 1 {
		warnings = append(warnings, fmt.Sprintf(
			"cleanup batch size %d is unusable, using %d", c.BatchSize, DefaultBatchSize))
		c.BatchSize = DefaultBatchSize
	} else if c.BatchSize < 10 || c.BatchSize > 1000 {
		warnings = append(warnings, fmt.Sprintf(
			"cleanup batch size %d is outside the expected 10..1000 range", c.BatchSize))
	}

	if _, err := time.Parse("15:04", c.RunAt); err != nil {
		warnings = append(warnings, fmt.Sprintf(
			"cleanup run time %q is not HH:MM, using %s", c.RunAt, DefaultRunAt))
		c.RunAt = DefaultRunAt
	}

	return warnings
}

// GracePeriod returns the retention window as a duration.
func (c *CleanupConfig) GracePeriod() time.Duration {
	return time.Duration(c.GraceDays) * 24 * time.Hour
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var parts []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return defaultValue
	}
	return parts
}
