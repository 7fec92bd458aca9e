package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Port        int      `envconfig:"PORT" default:"8080"`
		CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173,http://127.0.0.1:5173"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:"postgres"`
		Name     string `envconfig:"DB_NAME" default:"postgres"`
		SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	}

	JWT struct {
		Secret string `envconfig:"JWT_SECRET" default:"default_super_secret_key"` // Development fallback only — DO NOT use in production
	}

	Budget struct {
		BaseURL string `envconfig:"BUDGET_CHECKER_URL"`
		Timeout int    `envconfig:"BUDGET_CHECKER_TIMEOUT_SECONDS" default:"5"`
	}

	Audit struct {
		BaseURL string `envconfig:"AUDIT_ENGINE_URL"`
		Timeout int    `envconfig:"AUDIT_ENGINE_TIMEOUT_SECONDS" default:"10"`
	}

	Logger struct {
		Level  string `envconfig:"LOG_LEVEL" default:"info"`
		Format string `envconfig:"LOG_FORMAT" default:"json"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name, c.DB.SSLMode)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
