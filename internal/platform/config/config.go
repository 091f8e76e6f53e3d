// Package config loads process configuration from the environment. A .env
// file in the working directory is read first when present; real environment
// variables always win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   Server          `envPrefix:"LANDLEDGER_"`
	Postgres PostgresConfig  `envPrefix:"LANDLEDGER_POSTGRES_"`
	Redis    RedisConfig     `envPrefix:"LANDLEDGER_REDIS_"`
	Auth     AuthConfig      `envPrefix:"LANDLEDGER_AUTH_"`
	OTP      OTPConfig       `envPrefix:"LANDLEDGER_OTP_"`
	Limits   RateLimitConfig `envPrefix:"LANDLEDGER_RATELIMIT_"`
	Kafka    KafkaConfig     `envPrefix:"LANDLEDGER_KAFKA_"`
	Storage  StorageConfig   `envPrefix:"LANDLEDGER_S3_"`
	Email    EmailConfig     `envPrefix:"LANDLEDGER_EMAIL_"`
	Workflow WorkflowConfig  `envPrefix:"LANDLEDGER_"`
	Log      LogConfig       `envPrefix:"LANDLEDGER_LOG_"`
	OTel     OTelConfig      `envPrefix:"LANDLEDGER_OTEL_"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	PublicBaseURL   string        `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// PostgresConfig selects Postgres persistence. An empty URL runs every store
// in memory.
type PostgresConfig struct {
	URL string `env:"URL"`
}

// RedisConfig selects Redis for OTP codes and watchlists. An empty URL keeps
// both in memory.
type RedisConfig struct {
	URL          string        `env:"URL"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
}

type AuthConfig struct {
	JWTSigningKey string        `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	Issuer        string        `env:"ISSUER" envDefault:"landledger"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	// AdminEmails are promoted to ADMIN on startup, creating the account if needed.
	AdminEmails []string `env:"ADMIN_EMAILS" envSeparator:","`
}

type OTPConfig struct {
	TTL         time.Duration `env:"TTL" envDefault:"5m"`
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"5"`
}

// RateLimitConfig bounds OTP requests per client IP.
type RateLimitConfig struct {
	OTPRequests int           `env:"OTP_REQUESTS" envDefault:"10"`
	OTPWindow   time.Duration `env:"OTP_WINDOW" envDefault:"15m"`
}

// KafkaConfig enables the outbox relay. It only runs with Postgres configured.
type KafkaConfig struct {
	Brokers    []string `env:"BROKERS" envSeparator:","`
	AuditTopic string   `env:"AUDIT_TOPIC" envDefault:"landledger.audit"`
}

// StorageConfig selects S3 for documents and certificates. An empty bucket
// keeps documents in memory.
type StorageConfig struct {
	Bucket    string `env:"BUCKET"`
	Region    string `env:"REGION" envDefault:"ap-south-1"`
	Endpoint  string `env:"ENDPOINT"`
	PublicURL string `env:"PUBLIC_URL"`
}

// EmailConfig selects SES for outgoing mail. An empty sender logs messages
// instead of sending them.
type EmailConfig struct {
	From   string `env:"FROM"`
	Region string `env:"REGION" envDefault:"ap-south-1"`
}

type WorkflowConfig struct {
	RequireVerifiedLandForListing bool          `env:"REQUIRE_VERIFIED_LAND_FOR_LISTING" envDefault:"false"`
	TxTimeout                     time.Duration `env:"TX_TIMEOUT" envDefault:"5s"`
	StaleReviewAge                time.Duration `env:"STALE_REVIEW_AGE" envDefault:"72h"`
	StaleReviewSchedule           string        `env:"STALE_REVIEW_SCHEDULE" envDefault:"@every 1h"`
	NotificationBuffer            int           `env:"NOTIFICATION_BUFFER" envDefault:"256"`
}

type LogConfig struct {
	Level string `env:"LEVEL" envDefault:"info"`
}

// OTelConfig enables trace export. Tracing is off when Endpoint is empty.
type OTelConfig struct {
	Endpoint string `env:"ENDPOINT"`
	Enabled  bool   `env:"ENABLED" envDefault:"true"`
}

// Load reads .env if present, then parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.OTP.MaxAttempts <= 0 {
		return Config{}, fmt.Errorf("otp max attempts must be positive")
	}
	if cfg.Limits.OTPRequests <= 0 {
		return Config{}, fmt.Errorf("otp rate limit must be positive")
	}
	return cfg, nil
}
