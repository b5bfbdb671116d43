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
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	// Server
	ServerPort         string
	CORSAllowedOrigins []string

	// Database
	DatabaseURL string

	// Auth
	AuthSecret   string
	AuthTokenTTL time.Duration

	// Storage
	StorageBackend       string // local | s3
	StorageLocalDir      string
	StoragePublicBaseURL string
	UploadMaxBytes       int64

	// AWS
	S3Bucket   string
	S3Region   string
	S3Prefix   string
	S3Endpoint string

	// Reports
	ReportTimezone string
	Location       *time.Location

	// Logging
	LogLevel  string
	LogFormat string // json | text
}

// fileConfig mirrors the environment keys in a YAML file
type fileConfig struct {
	ServerPort           string `yaml:"server_port"`
	CORSAllowedOrigins   string `yaml:"cors_allowed_origins"`
	DatabaseURL          string `yaml:"database_url"`
	AuthSecret           string `yaml:"auth_secret"`
	AuthTokenTTL         string `yaml:"auth_token_ttl"`
	StorageBackend       string `yaml:"storage_backend"`
	StorageLocalDir      string `yaml:"storage_local_dir"`
	StoragePublicBaseURL string `yaml:"storage_public_base_url"`
	UploadMaxBytes       string `yaml:"upload_max_bytes"`
	S3Bucket             string `yaml:"s3_bucket"`
	S3Region             string `yaml:"s3_region"`
	S3Prefix             string `yaml:"s3_prefix"`
	S3Endpoint           string `yaml:"s3_endpoint"`
	ReportTimezone       string `yaml:"report_timezone"`
	LogLevel             string `yaml:"log_level"`
	LogFormat            string `yaml:"log_format"`
}

// LoadDotEnv loads a .env file from the working directory if one exists
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// Load loads configuration from an optional YAML file and environment variables.
// Environment variables take precedence over the file.
func Load(path string) (*Config, error) {
	var file fileConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg := &Config{
		ServerPort:           getEnv("SERVER_PORT", or(file.ServerPort, "8080")),
		CORSAllowedOrigins:   splitList(getEnv("CORS_ALLOWED_ORIGINS", file.CORSAllowedOrigins)),
		DatabaseURL:          getEnv("DATABASE_URL", or(file.DatabaseURL, "sqlite://dispatch.db")),
		AuthSecret:           getEnv("AUTH_SECRET", file.AuthSecret),
		StorageBackend:       strings.ToLower(getEnv("STORAGE_BACKEND", or(file.StorageBackend, "local"))),
		StorageLocalDir:      getEnv("STORAGE_LOCAL_DIR", or(file.StorageLocalDir, "./uploads")),
		StoragePublicBaseURL: getEnv("STORAGE_PUBLIC_BASE_URL", file.StoragePublicBaseURL),
		S3Bucket:             getEnv("S3_BUCKET", file.S3Bucket),
		S3Region:             getEnv("S3_REGION", file.S3Region),
		S3Prefix:             getEnv("S3_PREFIX", or(file.S3Prefix, "job-proofs")),
		S3Endpoint:           getEnv("S3_ENDPOINT", file.S3Endpoint),
		ReportTimezone:       getEnv("REPORT_TIMEZONE", or(file.ReportTimezone, "UTC")),
		LogLevel:             strings.ToLower(getEnv("LOG_LEVEL", or(file.LogLevel, "info"))),
		LogFormat:            strings.ToLower(getEnv("LOG_FORMAT", or(file.LogFormat, "json"))),
	}

	ttl, err := time.ParseDuration(getEnv("AUTH_TOKEN_TTL", or(file.AuthTokenTTL, "168h")))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_TOKEN_TTL: %w", err)
	}
	cfg.AuthTokenTTL = ttl

	maxBytes, err := strconv.ParseInt(getEnv("UPLOAD_MAX_BYTES", or(file.UploadMaxBytes, "20971520")), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOAD_MAX_BYTES: %w", err)
	}
	cfg.UploadMaxBytes = maxBytes

	cfg.Location, err = time.LoadLocation(cfg.ReportTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid REPORT_TIMEZONE: %w", err)
	}

	if cfg.StoragePublicBaseURL == "" && cfg.StorageBackend == "local" {
		cfg.StoragePublicBaseURL = "http://localhost:" + cfg.ServerPort + "/uploads"
	}

	return cfg, nil
}

// Validate checks the settings the HTTP server needs
func (c *Config) Validate() error {
	if c.AuthSecret == "" {
		return errors.New("AUTH_SECRET is required")
	}
	switch c.StorageBackend {
	case "local":
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func or(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
