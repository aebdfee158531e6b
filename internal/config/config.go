package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration shared by the cli and the
// devserver.
type Config struct {
	// Client side.
	BaseURL     string
	HTTPTimeout time.Duration
	Timezone    string

	// Devserver side.
	ServerPort string
	GinMode    string
	JWTSecret  string
	JWTExpiry  time.Duration
	BcryptCost int

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		BaseURL:     getEnv("STUDYWISE_BASE_URL", "http://localhost:8080/api/v1"),
		HTTPTimeout: time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 15)) * time.Second,
		Timezone:    getEnv("EXAM_TIMEZONE", ""),

		ServerPort: getEnv("SERVER_PORT", "8080"),
		GinMode:    getEnv("GIN_MODE", "debug"),
		JWTSecret:  getEnv("JWT_SECRET", "change-this-to-a-secure-random-string"),
		JWTExpiry:  time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,
		BcryptCost: getEnvInt("BCRYPT_COST", 6),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "pretty"),
	}
}

// Location resolves the configured exam timezone, falling back to the local
// zone when unset or unknown. Exam windows are wall-clock times in this zone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
