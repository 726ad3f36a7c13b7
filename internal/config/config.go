package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	APIBaseURL  string        `yaml:"api_base_url"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	DatabaseType string `yaml:"db_type"` // sqlite, postgres, mysql
	DatabasePath string `yaml:"db_path"`
	DatabaseURL  string `yaml:"database_url"`

	ParentAuthGrace time.Duration `yaml:"parent_auth_grace"`

	BiometricTimeout           time.Duration `yaml:"biometric_timeout"`
	BiometricCommand           string        `yaml:"biometric_command"`
	BiometricCapabilityCommand string        `yaml:"biometric_capability_command"`

	ReauthAttempts int           `yaml:"reauth_attempts"`
	ReauthWindow   time.Duration `yaml:"reauth_window"`

	MockAPIPort string `yaml:"mock_api_port"`
	Debug       bool   `yaml:"debug"`
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		APIBaseURL:       "http://localhost:8080/api",
		HTTPTimeout:      15 * time.Second,
		DatabaseType:     "sqlite",
		DatabasePath:     "./childbehavior.db",
		ParentAuthGrace:  5 * time.Minute,
		BiometricTimeout: 60 * time.Second,
		ReauthAttempts:   5,
		ReauthWindow:     time.Minute,
		MockAPIPort:      "8080",
	}
}

// Load reads configuration from an optional .env file, an optional YAML file named by
// CONFIG_FILE, then environment variables. Environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: failed to load .env file: %v", err)
	}

	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.APIBaseURL = strings.TrimRight(getEnv("API_BASE_URL", cfg.APIBaseURL), "/")
	cfg.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", cfg.HTTPTimeout)
	cfg.DatabaseType = strings.ToLower(getEnv("DB_TYPE", cfg.DatabaseType))
	cfg.DatabasePath = getEnv("DB_PATH", cfg.DatabasePath)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.ParentAuthGrace = getEnvDuration("PARENT_AUTH_GRACE", cfg.ParentAuthGrace)
	cfg.BiometricTimeout = getEnvDuration("BIOMETRIC_TIMEOUT", cfg.BiometricTimeout)
	cfg.BiometricCommand = getEnv("BIOMETRIC_COMMAND", cfg.BiometricCommand)
	cfg.BiometricCapabilityCommand = getEnv("BIOMETRIC_CAPABILITY_COMMAND", cfg.BiometricCapabilityCommand)
	cfg.ReauthAttempts = getEnvInt("REAUTH_ATTEMPTS", cfg.ReauthAttempts)
	cfg.ReauthWindow = getEnvDuration("REAUTH_WINDOW", cfg.ReauthWindow)
	cfg.MockAPIPort = getEnv("MOCK_API_PORT", cfg.MockAPIPort)
	cfg.Debug = getEnvBool("DEBUG", cfg.Debug)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile overlays values from a YAML file
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for values the app cannot run with
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("API_BASE_URL is required")
	}
	switch c.DatabaseType {
	case "sqlite", "sqlite3", "":
	case "postgres", "postgresql", "mysql":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for db type %s", c.DatabaseType)
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("HTTP_TIMEOUT must be positive")
	}
	if c.ParentAuthGrace <= 0 {
		return errors.New("PARENT_AUTH_GRACE must be positive")
	}
	if c.BiometricTimeout <= 0 {
		return errors.New("BIOMETRIC_TIMEOUT must be positive")
	}
	if c.ReauthAttempts <= 0 || c.ReauthWindow <= 0 {
		return errors.New("REAUTH_ATTEMPTS and REAUTH_WINDOW must be positive")
	}
	return nil
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: invalid duration for %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: invalid integer for %s=%q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
