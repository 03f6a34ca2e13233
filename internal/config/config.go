// Package config loads runtime settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FallbackJWTSecret signs tokens when JWT_SECRET is unset. It is refused in production.
const FallbackJWTSecret = "fallback-secret"

// Config holds every setting the server reads at startup.
type Config struct {
	Port             string
	Env              string
	DatabaseURL      string
	RedisURL         string
	JWTSecret        string
	RabbitMQURL      string
	AllowOrigins     string
	DBConnectRetries int
	DBConnectDelay   time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "4000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DATABASE_URL", "host=127.0.0.1 user=postgres password=postgres dbname=vinotheque port=5432 sslmode=disable")
	v.SetDefault("REDIS_URL", "redis://localhost:6379")
	v.SetDefault("JWT_SECRET", FallbackJWTSecret)
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("ALLOW_ORIGINS", "http://localhost:3000,http://app.localhost,http://127.0.0.1:3000")
	v.SetDefault("DB_CONNECT_RETRIES", 10)
	v.SetDefault("DB_CONNECT_DELAY", "2s")
}

// Load reads the configuration. Values from a .env file in envFiles (or
// ".env" when none are given) are loaded first and never override variables
// already present in the process environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("Ignoring unreadable env file %s: %v", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Port:             v.GetString("PORT"),
		Env:              strings.ToLower(v.GetString("APP_ENV")),
		DatabaseURL:      v.GetString("DATABASE_URL"),
		RedisURL:         v.GetString("REDIS_URL"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		RabbitMQURL:      v.GetString("RABBITMQ_URL"),
		AllowOrigins:     v.GetString("ALLOW_ORIGINS"),
		DBConnectRetries: v.GetInt("DB_CONNECT_RETRIES"),
		DBConnectDelay:   v.GetDuration("DB_CONNECT_DELAY"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether APP_ENV is "production".
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ListenAddr returns the address handed to the HTTP listener.
func (c *Config) ListenAddr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if c.IsProduction() && c.JWTSecret == FallbackJWTSecret {
		return errors.New("JWT_SECRET must be set in production")
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL must not be empty")
	}
	for _, origin := range strings.Split(c.AllowOrigins, ",") {
		if strings.TrimSpace(origin) == "*" {
			return errors.New("ALLOW_ORIGINS must list explicit origins, \"*\" cannot be combined with credentials")
		}
	}
	if c.DBConnectRetries < 1 {
		return fmt.Errorf("DB_CONNECT_RETRIES must be positive, got %d", c.DBConnectRetries)
	}
	return nil
}
