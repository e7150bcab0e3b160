package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	minJWTSecretLen = 32
)

type Config struct {
	// Application
	Env       string
	Port      string
	LogLevel  string
	LogFormat string

	// Database
	DatabaseDriver string
	DatabaseURL    string
	SQLiteDBPath   string

	// Object storage
	StorageBackend    string
	LocalStorageDir   string
	S3Endpoint        string
	S3Region          string
	S3Bucket          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3PublicBaseURL   string
	S3UsePathStyle    bool

	// Sessions
	JWTSecret     string
	SessionTTL    time.Duration
	SecureCookies bool

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets lead export
	GoogleSpreadsheetID      string
	GoogleLeadsSheet         string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// SMTP lead notifications
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SMTPFrom      string
	LeadsNotifyTo string

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration

	// HTTP
	RateLimitPerMinute int
	StatusPollInterval time.Duration
	CatalogCacheTTL    time.Duration
}

func Load() *Config {
	env := getEnv("APP_ENV", EnvDevelopment)
	cfg := &Config{
		Env:       env,
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", defaultLogFormat(env)),

		DatabaseDriver: getEnv("DATABASE_DRIVER", "sqlite"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/contratandoplanos.db"),

		StorageBackend:    getEnv("STORAGE_BACKEND", "local"),
		LocalStorageDir:   getEnv("LOCAL_STORAGE_DIR", "./data/arquivos"),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3PublicBaseURL:   getEnv("S3_PUBLIC_BASE_URL", ""),
		S3UsePathStyle:    getEnvBool("S3_USE_PATH_STYLE", true),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		SessionTTL:    getEnvDuration("SESSION_TTL", 12*time.Hour),
		SecureCookies: getEnvBool("SECURE_COOKIES", env == EnvProduction),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "contratandoplanos"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "leads"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleLeadsSheet:         getEnv("GOOGLE_LEADS_SHEET", "Leads"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),

		SMTPHost:      getEnv("SMTP_HOST", ""),
		SMTPPort:      getEnvInt("SMTP_PORT", 587),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:      getEnv("SMTP_FROM", ""),
		LeadsNotifyTo: getEnv("LEADS_NOTIFY_TO", ""),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 20),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", time.Minute),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		StatusPollInterval: getEnvDuration("STATUS_POLL_INTERVAL", 30*time.Second),
		CatalogCacheTTL:    getEnvDuration("CATALOG_CACHE_TTL", 5*time.Minute),
	}

	return cfg
}

func defaultLogFormat(env string) string {
	if env == EnvProduction {
		return "json"
	}
	return "text"
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// EnsureJWTSecret fills an empty secret with a random one in development.
// It reports whether a secret was generated; sessions then do not survive restarts.
func (c *Config) EnsureJWTSecret() (bool, error) {
	if c.JWTSecret != "" || !c.IsDevelopment() {
		return false, nil
	}
	buf := make([]byte, minJWTSecretLen)
	if _, err := rand.Read(buf); err != nil {
		return false, fmt.Errorf("generate jwt secret: %w", err)
	}
	c.JWTSecret = hex.EncodeToString(buf)
	return true, nil
}

// SheetsEnabled reports whether leads are exported to Google Sheets.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// MailEnabled reports whether lead notification emails are sent.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.LeadsNotifyTo != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if !slices.Contains([]string{EnvDevelopment, EnvProduction}, c.Env) {
		errors = append(errors, fmt.Sprintf("invalid environment '%s': must be 'development' or 'production'", c.Env))
	}

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'json' or 'text'", c.LogFormat))
	}

	switch c.DatabaseDriver {
	case "pgx":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using the pgx driver")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "invalid DATABASE_URL: must be a postgres:// or postgresql:// URL")
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using the sqlite driver")
		} else if err := ensureDir(filepath.Dir(c.SQLiteDBPath)); err != nil {
			errors = append(errors, fmt.Sprintf("cannot create SQLite database directory: %v", err))
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid database driver '%s': must be one of [pgx sqlite]", c.DatabaseDriver))
	}

	switch c.StorageBackend {
	case "s3":
		if c.S3Bucket == "" {
			errors = append(errors, "S3_BUCKET is required when using the s3 storage backend")
		}
		if c.S3Endpoint != "" {
			if u, err := url.Parse(c.S3Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
				errors = append(errors, fmt.Sprintf("invalid S3 endpoint '%s'", c.S3Endpoint))
			}
		}
		if (c.S3AccessKeyID == "") != (c.S3SecretAccessKey == "") {
			errors = append(errors, "S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must be set together")
		}
	case "local":
		if c.LocalStorageDir == "" {
			errors = append(errors, "LOCAL_STORAGE_DIR cannot be empty when using the local storage backend")
		}
		if c.Env == EnvProduction {
			errors = append(errors, "local storage backend is not allowed in production")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid storage backend '%s': must be one of [local s3]", c.StorageBackend))
	}

	if c.JWTSecret == "" && !c.IsDevelopment() {
		errors = append(errors, "JWT_SECRET is required outside development")
	} else if c.JWTSecret != "" && len(c.JWTSecret) < minJWTSecretLen {
		errors = append(errors, fmt.Sprintf("JWT_SECRET must be at least %d characters", minJWTSecretLen))
	}
	if c.SessionTTL < time.Minute || c.SessionTTL > 7*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be between 1 minute and 7 days", c.SessionTTL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SheetsEnabled() {
		if c.GoogleLeadsSheet == "" {
			errors = append(errors, "GOOGLE_LEADS_SHEET cannot be empty when a spreadsheet is configured")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for the lead export")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.SMTPHost != "" {
		if c.SMTPPort < 1 || c.SMTPPort > 65535 {
			errors = append(errors, fmt.Sprintf("invalid SMTP port %d", c.SMTPPort))
		}
		if c.SMTPFrom == "" {
			errors = append(errors, "SMTP_FROM is required when SMTP_HOST is set")
		}
	}

	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	if c.StatusPollInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid status poll interval %v: must be at least 1 second", c.StatusPollInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func ensureDir(dir string) error {
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
