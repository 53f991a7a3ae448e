// File: /config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

type Config struct {
	Port    string `yaml:"port"`
	GinMode string `yaml:"gin_mode"`
	AppURL  string `yaml:"app_url"`

	DBDriver    string `yaml:"db_driver"`
	DatabaseURL string `yaml:"database_url"`
	DBLogLevel  string `yaml:"db_log_level"`

	JWTSecret   string `yaml:"jwt_secret"`
	JWTTTLHours int    `yaml:"jwt_ttl_hours"`

	// Email Configuration
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUsername string `yaml:"smtp_username"`
	SMTPPassword string `yaml:"smtp_password"`
	FromEmail    string `yaml:"from_email"`
	FromName     string `yaml:"from_name"`

	// Object storage (MinIO / S3 compatible). Empty endpoint keeps objects in memory.
	StorageEndpoint  string `yaml:"storage_endpoint"`
	StorageAccessKey string `yaml:"storage_access_key"`
	StorageSecretKey string `yaml:"storage_secret_key"`
	StorageBucket    string `yaml:"storage_bucket"`
	StorageUseSSL    bool   `yaml:"storage_use_ssl"`
	StoragePublicURL string `yaml:"storage_public_url"`

	// Realtime fan-out across instances. Empty address keeps the hub process-local.
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	RateLimitPerMinute        int      `yaml:"rate_limit_per_minute"`
	RateLimitBurst            int      `yaml:"rate_limit_burst"`
	NotificationRetentionDays int      `yaml:"notification_retention_days"`
	CORSOrigins               []string `yaml:"cors_origins"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE and the environment, in increasing order of precedence. A .env
// file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Port:        "8080",
		GinMode:     "debug",
		AppURL:      "http://localhost:3000",
		DBDriver:    "mysql",
		DatabaseURL: "user:password@tcp(localhost:3306)/klik?charset=utf8mb4&parseTime=True&loc=Local",
		DBLogLevel:  "warn",
		JWTSecret:   "your-secret-key",
		JWTTTLHours: 24 * 7,

		SMTPHost:  "localhost",
		SMTPPort:  2525,
		FromEmail: "noreply@klik.app",
		FromName:  "Klik",

		StorageBucket:    "posts",
		StoragePublicURL: "http://localhost:9000",

		RateLimitPerMinute:        120,
		RateLimitBurst:            30,
		NotificationRetentionDays: 90,
		CORSOrigins:               []string{"*"},

		LogLevel:  "info",
		LogFormat: "text",
	}
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.GinMode = getEnv("GIN_MODE", c.GinMode)
	c.AppURL = getEnv("APP_URL", c.AppURL)

	c.DBDriver = getEnv("DB_DRIVER", c.DBDriver)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.DBLogLevel = getEnv("DB_LOG_LEVEL", c.DBLogLevel)

	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTTTLHours = getEnvInt("JWT_TTL_HOURS", c.JWTTTLHours)

	c.SMTPHost = getEnv("SMTP_HOST", c.SMTPHost)
	c.SMTPPort = getEnvInt("SMTP_PORT", c.SMTPPort)
	c.SMTPUsername = getEnv("SMTP_USERNAME", c.SMTPUsername)
	c.SMTPPassword = getEnv("SMTP_PASSWORD", c.SMTPPassword)
	c.FromEmail = getEnv("FROM_EMAIL", c.FromEmail)
	c.FromName = getEnv("FROM_NAME", c.FromName)

	c.StorageEndpoint = getEnv("STORAGE_ENDPOINT", c.StorageEndpoint)
	c.StorageAccessKey = getEnv("STORAGE_ACCESS_KEY", c.StorageAccessKey)
	c.StorageSecretKey = getEnv("STORAGE_SECRET_KEY", c.StorageSecretKey)
	c.StorageBucket = getEnv("STORAGE_BUCKET", c.StorageBucket)
	c.StorageUseSSL = getEnvBool("STORAGE_USE_SSL", c.StorageUseSSL)
	c.StoragePublicURL = getEnv("STORAGE_PUBLIC_URL", c.StoragePublicURL)

	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)

	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)
	c.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", c.RateLimitBurst)
	c.NotificationRetentionDays = getEnvInt("NOTIFICATION_RETENTION_DAYS", c.NotificationRetentionDays)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.CORSOrigins = splitList(origins)
	}

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// JWTTTL returns the token lifetime.
func (c *Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLHours) * time.Hour
}

// NotificationRetention returns how long read notifications are kept.
func (c *Config) NotificationRetention() time.Duration {
	return time.Duration(c.NotificationRetentionDays) * 24 * time.Hour
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
