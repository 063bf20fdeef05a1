package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	AWS      AWSConfig
	Upload   UploadConfig
	Sessions SessionConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the recordings bucket.
type AWSConfig struct {
	Region                string
	AccessKeyID           string
	SecretAccessKey       string
	RecordingsBucket      string
	UploadExpireMinutes   int
	DownloadExpireMinutes int
}

// UploadConfig bounds the server-proxied upload path.
type UploadConfig struct {
	MaxUploadMB int
}

// SessionConfig controls the expired-session sweep.
type SessionConfig struct {
	SweepIntervalSeconds int
}

// DSN returns the PostgreSQL connection string. If DatabaseConfig.URL is set
// (DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// UploadExpire returns the presigned upload validity window.
func (c AWSConfig) UploadExpire() time.Duration {
	return time.Duration(c.UploadExpireMinutes) * time.Minute
}

// DownloadExpire returns the presigned download validity window.
func (c AWSConfig) DownloadExpire() time.Duration {
	return time.Duration(c.DownloadExpireMinutes) * time.Minute
}

// MaxUploadBytes returns the proxied upload size cap in bytes.
func (c UploadConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

// SweepInterval returns the session sweep period.
func (c SessionConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "callcoach"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:                getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:           getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:       getEnv("AWS_SECRET_ACCESS_KEY", ""),
			RecordingsBucket:      getEnv("AWS_S3_BUCKET", "callcoach-recordings"),
			UploadExpireMinutes:   getEnvInt("AWS_UPLOAD_EXPIRE_MINUTES", 10),
			DownloadExpireMinutes: getEnvInt("AWS_DOWNLOAD_EXPIRE_MINUTES", 60),
		},
		Upload: UploadConfig{
			MaxUploadMB: getEnvInt("MAX_UPLOAD_MB", 100),
		},
		Sessions: SessionConfig{
			SweepIntervalSeconds: getEnvInt("SESSION_SWEEP_INTERVAL_SEC", 30),
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
