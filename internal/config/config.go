package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const EnvProduction = "production"

type Config struct {
	Env        string `env:"APP_ENV" envDefault:"development"`
	ServerAddr string `env:"SERVER_ADDR" envDefault:":8000"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"openblog"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"openblog_dev_password"`
	DBName     string `env:"DB_NAME" envDefault:"openblog"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	// Access and refresh tokens are signed with independent secrets.
	AccessTokenSecret  string        `env:"ACCESS_TOKEN_SECRET"`
	RefreshTokenSecret string        `env:"REFRESH_TOKEN_SECRET"`
	AccessTokenExpiry  time.Duration `env:"ACCESS_TOKEN_EXPIRY" envDefault:"24h"`
	RefreshTokenExpiry time.Duration `env:"REFRESH_TOKEN_EXPIRY" envDefault:"168h"`

	CORSOrigins []string `env:"CORS_ORIGIN" envSeparator:","`

	// Empty RedisAddr disables the blog read cache.
	RedisAddr    string        `env:"REDIS_ADDR"`
	BlogCacheTTL time.Duration `env:"BLOG_CACHE_TTL" envDefault:"5m"`

	// StorageBackend selects the image host: "minio" or "s3".
	StorageBackend   string `env:"STORAGE_BACKEND" envDefault:"minio"`
	StoragePublicURL string `env:"STORAGE_PUBLIC_URL"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT" envDefault:"localhost:9000"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY" envDefault:"minioadmin"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY" envDefault:"minioadmin"`
	MinioBucket    string `env:"MINIO_BUCKET" envDefault:"blog-images"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`

	S3Endpoint     string `env:"S3_ENDPOINT"`
	S3Region       string `env:"S3_REGION" envDefault:"us-east-1"`
	S3AccessKey    string `env:"S3_ACCESS_KEY"`
	S3SecretKey    string `env:"S3_SECRET_KEY"`
	S3Bucket       string `env:"S3_BUCKET" envDefault:"blog-images"`
	S3UsePathStyle bool   `env:"S3_USE_PATH_STYLE" envDefault:"true"`

	MaxUploadBytes       int64         `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	RequestTimeout       time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	SlowRequestThreshold time.Duration `env:"SLOW_REQUEST_THRESHOLD" envDefault:"500ms"`
}

// Load reads the configuration from the environment. Outside production,
// missing token secrets are replaced with random per-process values.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if !cfg.IsProduction() {
		if cfg.AccessTokenSecret == "" {
			cfg.AccessTokenSecret = generateDefaultSecret()
		}
		if cfg.RefreshTokenSecret == "" {
			cfg.RefreshTokenSecret = generateDefaultSecret()
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

func (c *Config) Validate() error {
	if c.AccessTokenSecret == "" || c.RefreshTokenSecret == "" {
		return errors.New("config: ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET are required")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("config: access and refresh token secrets must differ")
	}
	if c.AccessTokenExpiry <= 0 || c.RefreshTokenExpiry <= 0 {
		return errors.New("config: token expiries must be positive")
	}
	switch c.StorageBackend {
	case "minio", "s3":
	default:
		return fmt.Errorf("config: unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("config: MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

// DSN returns the lib/pq connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func generateDefaultSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "dev-secret-change-in-production-" + time.Now().Format(time.RFC3339Nano)
	}
	return hex.EncodeToString(bytes)
}
