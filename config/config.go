package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	Providers   ProvidersConfig
	Router      RouterConfig
	Metering    MeteringConfig
	LogLevel    string
	LogFormat   string // json or text
	Environment string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// AuthConfig holds access token configuration. Tokens are opaque bearer
// credentials; the service only checks presence, never contents.
type AuthConfig struct {
	Required bool
}

// ProvidersConfig holds LLM provider configurations
type ProvidersConfig struct {
	OpenAI    ProviderConfig
	Anthropic ProviderConfig
	Gemini    ProviderConfig
}

// ProviderConfig holds configuration for one provider backend
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Model   string // Default model override, empty means adapter default
}

// Enabled reports whether the provider has credentials configured
func (c *ProviderConfig) Enabled() bool {
	return c.APIKey != ""
}

// RouterConfig holds request routing configuration
type RouterConfig struct {
	DefaultProvider  string
	FallbackProvider string // Tried once after the primary is exhausted, empty disables fallback
	MaxRetries       int    // Extra attempts after the first, for retryable failures only
	RetryBackoff     time.Duration
	MaxElapsed       time.Duration // Overall bound across attempts and backoff
	MaxTokensLimit   int
}

// MeteringConfig holds usage metering configuration
type MeteringConfig struct {
	BufferSize    int
	WorkerCount   int
	CharsPerToken int
	StopTimeout   time.Duration
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: loadDatabaseConfig(),
		Auth: AuthConfig{
			Required: getEnvAsBool("AUTH_REQUIRED", true),
		},
		Providers: ProvidersConfig{
			OpenAI: ProviderConfig{
				APIKey:  getEnv("OPENAI_API_KEY", ""),
				BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Timeout: getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
				Model:   getEnv("OPENAI_MODEL", ""),
			},
			Anthropic: ProviderConfig{
				APIKey:  getEnv("ANTHROPIC_API_KEY", ""),
				BaseURL: getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
				Timeout: getEnvAsDuration("ANTHROPIC_TIMEOUT", 60*time.Second),
				Model:   getEnv("ANTHROPIC_MODEL", ""),
			},
			Gemini: ProviderConfig{
				APIKey:  getEnv("GEMINI_API_KEY", ""),
				BaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
				Timeout: getEnvAsDuration("GEMINI_TIMEOUT", 60*time.Second),
				Model:   getEnv("GEMINI_MODEL", ""),
			},
		},
		Router: RouterConfig{
			DefaultProvider:  getEnv("ROUTER_DEFAULT_PROVIDER", "openai"),
			FallbackProvider: getEnv("ROUTER_FALLBACK_PROVIDER", ""),
			MaxRetries:       getEnvAsInt("ROUTER_MAX_RETRIES", 2),
			RetryBackoff:     getEnvAsDuration("ROUTER_RETRY_BACKOFF", 500*time.Millisecond),
			MaxElapsed:       getEnvAsDuration("ROUTER_MAX_ELAPSED", 2*time.Minute),
			MaxTokensLimit:   getEnvAsInt("ROUTER_MAX_TOKENS_LIMIT", 8192),
		},
		Metering: MeteringConfig{
			BufferSize:    getEnvAsInt("METERING_BUFFER_SIZE", 10000),
			WorkerCount:   getEnvAsInt("METERING_WORKER_COUNT", 5),
			CharsPerToken: getEnvAsInt("METERING_CHARS_PER_TOKEN", 4),
			StopTimeout:   getEnvAsDuration("METERING_STOP_TIMEOUT", 10*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	// Database validation (DATABASE_URL or DB_* vars)
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	// Provider validation (at least one provider API key required in production)
	if c.IsProduction() {
		if !c.Providers.OpenAI.Enabled() &&
			!c.Providers.Anthropic.Enabled() &&
			!c.Providers.Gemini.Enabled() {
			return fmt.Errorf("at least one LLM provider must be configured in production")
		}
	}

	if c.Router.DefaultProvider == "" {
		return fmt.Errorf("default provider is required")
	}
	if c.Router.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	if c.Metering.BufferSize <= 0 {
		return fmt.Errorf("metering buffer size must be positive")
	}
	if c.Metering.WorkerCount <= 0 {
		return fmt.Errorf("metering worker count must be positive")
	}

	if c.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "llmproxy"),
		Password:        getEnv("DB_PASSWORD", "llmproxy"),
		Database:        getEnv("DB_NAME", "llmproxy"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
