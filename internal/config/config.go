// Package config loads process configuration from the environment, with an
// optional .env file underneath.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env      string `env:"FILEFLOW_ENV" env-default:"development" env-description:"development or production"`
	Server   Server
	Log      Log
	Database Database
	Session  Session
	Storage  Storage
	Stripe   Stripe
	Access   Access
}

type Server struct {
	Port         string        `env:"PORT" env-default:"8080"`
	BaseURL      string        `env:"FILEFLOW_BASE_URL" env-default:"http://localhost:8080"`
	ReadTimeout  time.Duration `env:"FILEFLOW_READ_TIMEOUT" env-default:"0"`
	WriteTimeout time.Duration `env:"FILEFLOW_WRITE_TIMEOUT" env-default:"10m"`
	IdleTimeout  time.Duration `env:"FILEFLOW_IDLE_TIMEOUT" env-default:"120s"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"text"`
}

type Database struct {
	Path string `env:"FILEFLOW_DB_PATH" env-default:"fileflow.db"`
}

type Session struct {
	// Secret signs the flash cookie.
	Secret string `env:"FILEFLOW_SESSION_SECRET"`
}

type Storage struct {
	Backend     string `env:"FILEFLOW_STORAGE" env-default:"local" env-description:"local or s3"`
	Dir         string `env:"FILEFLOW_MEDIA_DIR" env-default:"media"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3Bucket    string `env:"S3_BUCKET"`
	S3Region    string `env:"S3_REGION" env-default:"us-east-1"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	S3Prefix    string `env:"S3_PREFIX"`
}

type Stripe struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	Currency      string `env:"STRIPE_CURRENCY" env-default:"usd"`
}

type Access struct {
	// StaffFileAccess lets staff and superusers open any user's files.
	StaffFileAccess bool `env:"FILEFLOW_STAFF_FILE_ACCESS" env-default:"false"`
}

// Load reads envFile if it exists, then decodes the environment. Variables
// already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.S3Bucket == "" {
			return errors.New("S3_BUCKET is required when FILEFLOW_STORAGE=s3")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.IsProduction() && len(c.Session.Secret) < 32 {
		return errors.New("FILEFLOW_SESSION_SECRET must be at least 32 bytes in production")
	}
	return nil
}

// Usage describes the recognised environment variables.
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return err.Error()
	}
	return text
}
