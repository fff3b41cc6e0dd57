package config

import (
	"os"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Clinic backend
	ClinicAPIBaseURL string
	ClinicAPIToken   string
	RequestTimeout   time.Duration

	// Gateway sessions
	SessionTTL time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		ClinicAPIBaseURL: getEnv("CLINIC_API_BASE_URL", "http://localhost:9000"),
		ClinicAPIToken:   getEnv("CLINIC_API_TOKEN", ""),
		RequestTimeout:   getEnvDuration("REQUEST_TIMEOUT", 15*time.Second),
		SessionTTL:       getEnvDuration("SESSION_TTL", 30*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
