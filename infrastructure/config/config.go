package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration (devtools/inspection surface)
	ServerAddress string
	Environment   string

	// Remote gateway
	GatewayBaseURL string
	GatewayTimeout time.Duration

	// Cache
	StaleAfter time.Duration

	// Session lifecycle
	RefreshLeadTime time.Duration
	SessionFilePath string

	// Inactivity monitor
	SessionTimeout time.Duration
	WarningWindow  time.Duration
	TickInterval   time.Duration

	// Logging and features
	LogLevel         string
	MetricsNamespace string
	EnableCORS       bool
	AllowedOrigins   []string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	home, _ := os.UserHomeDir()

	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8090"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		GatewayBaseURL: getEnv("GATEWAY_BASE_URL", "http://localhost:8080/api"),
		GatewayTimeout: getEnvDuration("GATEWAY_TIMEOUT", 15*time.Second),

		StaleAfter: getEnvDuration("CACHE_STALE_AFTER", 5*time.Minute),

		RefreshLeadTime: getEnvDuration("REFRESH_LEAD_TIME", 5*time.Minute),
		SessionFilePath: getEnv("SESSION_FILE_PATH", home+"/.admincore/session.json"),

		SessionTimeout: getEnvDuration("SESSION_TIMEOUT", 30*time.Minute),
		WarningWindow:  getEnvDuration("WARNING_WINDOW", 5*time.Minute),
		TickInterval:   getEnvDuration("INACTIVITY_TICK", 30*time.Second),

		LogLevel:         getEnv("LOG_LEVEL", "info"),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "admincore"),
		EnableCORS:       getEnvBool("ENABLE_CORS", true),
		AllowedOrigins:   []string{getEnv("ALLOWED_ORIGIN", "http://localhost:5173")},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present and coherent
func (c *Config) Validate() error {
	if c.GatewayBaseURL == "" {
		return fmt.Errorf("GATEWAY_BASE_URL is required")
	}
	if c.WarningWindow >= c.SessionTimeout {
		return fmt.Errorf("WARNING_WINDOW must be shorter than SESSION_TIMEOUT")
	}
	if c.RefreshLeadTime <= 0 {
		return fmt.Errorf("REFRESH_LEAD_TIME must be positive")
	}
	if c.Environment == "production" {
		if c.SessionFilePath == "" {
			return fmt.Errorf("SESSION_FILE_PATH is required in production")
		}
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
