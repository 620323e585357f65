// Package config loads reelfeed settings from the environment. A .env file in the
// working directory is read first when present; real environment variables win.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	BaseURL  string
	Database DatabaseConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Server   ServerConfig
	GeoIP    GeoIPConfig
	Webhook  WebhookConfig
	Player   PlayerConfig
}

type DatabaseConfig struct {
	URL string
}

type AuthConfig struct {
	JWTSecret      string
	AccessTokenTTL time.Duration
}

type StorageConfig struct {
	Endpoint       string
	PublicEndpoint string
	Bucket         string
	AccessKey      string
	SecretKey      string
	Region         string
	URLTTL         time.Duration
}

type ServerConfig struct {
	AllowedOrigins        []string
	AllowedFrameAncestors string
	ActionsPerSecond      float64
	ActionsBurst          int
	EnableDocs            bool
}

type GeoIPConfig struct {
	DatabasePath string
}

// WebhookConfig enables signed engagement event delivery when URL is set.
type WebhookConfig struct {
	URL    string
	Secret string
}

// PlayerConfig points the feed subcommand at a running API.
type PlayerConfig struct {
	APIURL string
	Token  string
}

var (
	ErrMissingDatabaseURL   = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret     = errors.New("JWT_SECRET is required")
	ErrMissingWebhookSecret = errors.New("WEBHOOK_SECRET is required when WEBHOOK_URL is set")
)

// Load reads .env (if any) and then the environment.
func Load() Config {
	_ = godotenv.Load(".env")
	return FromEnv()
}

func FromEnv() Config {
	baseURL := getenv("BASE_URL", "http://localhost:8080")
	return Config{
		Port:    getenv("PORT", "8080"),
		BaseURL: baseURL,
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Auth: AuthConfig{
			JWTSecret:      os.Getenv("JWT_SECRET"),
			AccessTokenTTL: getenvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		},
		Storage: StorageConfig{
			Endpoint:       getenv("S3_ENDPOINT", "http://localhost:3900"),
			PublicEndpoint: os.Getenv("S3_PUBLIC_ENDPOINT"),
			Bucket:         getenv("S3_BUCKET", "reelfeed"),
			AccessKey:      os.Getenv("S3_ACCESS_KEY"),
			SecretKey:      os.Getenv("S3_SECRET_KEY"),
			Region:         getenv("S3_REGION", "eu-central-1"),
			URLTTL:         getenvDuration("MEDIA_URL_TTL", time.Hour),
		},
		Server: ServerConfig{
			AllowedOrigins:        splitList(getenv("CORS_ALLOWED_ORIGINS", "*")),
			AllowedFrameAncestors: os.Getenv("ALLOWED_FRAME_ANCESTORS"),
			ActionsPerSecond:      getenvFloat("ACTIONS_PER_SECOND", 2),
			ActionsBurst:          int(getenvInt64("ACTIONS_BURST", 20)),
			EnableDocs:            getenv("API_DOCS_ENABLED", "false") == "true",
		},
		GeoIP: GeoIPConfig{
			DatabasePath: getenv("GEOIP_DB_PATH", "/data/GeoLite2-Country.mmdb"),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("WEBHOOK_URL"),
			Secret: os.Getenv("WEBHOOK_SECRET"),
		},
		Player: PlayerConfig{
			APIURL: getenv("REELFEED_API_URL", baseURL),
			Token:  os.Getenv("REELFEED_TOKEN"),
		},
	}
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.Webhook.URL != "" && c.Webhook.Secret == "" {
		errs = append(errs, ErrMissingWebhookSecret)
	}
	return errors.Join(errs...)
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
