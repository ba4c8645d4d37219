// Package config loads server configuration from the environment, with a
// .env file picked up for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	AppPort     string
	DatabaseURL string // empty runs the server without persistence
	RedisURL    string // empty disables the presence tracker
	JWTSecret   string
	TokenTTL    time.Duration
	LogLevel    logrus.Level
}

// Load reads the environment. JWT_SECRET is required; everything else has
// a default or degrades a feature when unset.
func Load(log *logrus.Logger) *Config {
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	tokenTTL := 24 * time.Hour
	if v := os.Getenv("TOKEN_TTL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			tokenTTL = time.Duration(n) * time.Hour
		}
	}

	level := logrus.InfoLevel
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		parsed, err := logrus.ParseLevel(v)
		if err != nil {
			log.WithField("value", v).Warn("unknown LOG_LEVEL, using info")
		} else {
			level = parsed
		}
	}

	return &Config{
		AppPort:     port,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		JWTSecret:   jwtSecret,
		TokenTTL:    tokenTTL,
		LogLevel:    level,
	}
}
