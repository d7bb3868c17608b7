package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort  string `env:"SERVER_PORT" envDefault:"8080"`
	SwaggerHost string `env:"SWAGGER_HOST"`

	DBDriver    string `env:"DB_DRIVER" envDefault:"mysql"`
	MySQLDSN    string `env:"MYSQL_DSN" envDefault:"user:password@tcp(localhost:3306)/app?charset=utf8mb4&parseTime=True&loc=Local"`
	PostgresDSN string `env:"POSTGRES_DSN" envDefault:"host=localhost user=postgres password=postgres dbname=app port=5432 sslmode=disable"`

	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`
	RedisPass string `env:"REDIS_PASSWORD"`

	JWTSecret  string        `env:"JWT_SECRET" envDefault:"change-me"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"30m"`

	// Credential lifecycle policy.
	ResetTokenTTL       time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h"`
	MinResetTokenLength int           `env:"MIN_RESET_TOKEN_LENGTH" envDefault:"32"`
	LockoutThreshold    int           `env:"LOCKOUT_THRESHOLD" envDefault:"5"`
	LockoutWindow       time.Duration `env:"LOCKOUT_WINDOW" envDefault:"15m"`
	BcryptCost          int           `env:"BCRYPT_COST" envDefault:"10"`

	// Reset notices are only published when RABBITMQ_URL is set.
	RabbitMQURL string `env:"RABBITMQ_URL"`
	ResetQueue  string `env:"RESET_QUEUE" envDefault:"password_reset_requests"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load builds Config from the environment with sensible defaults.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config from environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.LockoutThreshold < 1 {
		return fmt.Errorf("LOCKOUT_THRESHOLD must be positive, got %d", c.LockoutThreshold)
	}
	if c.SessionTTL <= 0 || c.ResetTokenTTL <= 0 || c.LockoutWindow <= 0 {
		return fmt.Errorf("SESSION_TTL, RESET_TOKEN_TTL and LOCKOUT_WINDOW must be positive")
	}
	return nil
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "postgres" {
		return c.PostgresDSN
	}
	return c.MySQLDSN
}
