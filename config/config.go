package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Auth          AuthConfig
	Dispatcher    DispatcherConfig
	Providers     ProvidersConfig
	Fallback      FallbackConfig
	Observability ObservabilityConfig
	Environment   string

	// AgentSettingsDir optionally points at a directory of per-agent YAML
	// settings files (<agentID>.yaml) loaded at startup.
	AgentSettingsDir string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// AuthConfig holds bearer-token authentication configuration.
// When Secret is empty authentication is disabled (development only).
type AuthConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// DispatcherConfig holds invocation dispatcher configuration
type DispatcherConfig struct {
	DefaultTimeout time.Duration
	BreakerEnabled bool
}

// ProvidersConfig holds primary provider configurations
type ProvidersConfig struct {
	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
}

// OpenAIConfig holds OpenAI provider configuration
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	SmallModel string
	LargeModel string
	Priority   int
}

// AnthropicConfig holds Anthropic provider configuration
type AnthropicConfig struct {
	APIKey     string
	BaseURL    string
	SmallModel string
	LargeModel string
	Priority   int
}

// FallbackConfig holds the built-in defaults for the fallback settings
// layer; environment, agent settings and agent secrets override these at
// resolve time
type FallbackConfig struct {
	Enabled        bool
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	TextModel      string
	EmbeddingModel string
	Priority       int
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env if present (no-op otherwise)
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment:      getEnv("ENVIRONMENT", "development"),
		AgentSettingsDir: getEnv("AGENT_SETTINGS_DIR", ""),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			Secret:   getEnv("AUTH_JWT_SECRET", ""),
			Issuer:   getEnv("AUTH_JWT_ISSUER", "llm-dispatch"),
			Audience: getEnv("AUTH_JWT_AUDIENCE", ""),
		},
		Dispatcher: DispatcherConfig{
			DefaultTimeout: getEnvAsDuration("DISPATCH_DEFAULT_TIMEOUT", 60*time.Second),
			BreakerEnabled: getEnvAsBool("DISPATCH_BREAKER_ENABLED", false),
		},
		Providers: ProvidersConfig{
			OpenAI: OpenAIConfig{
				APIKey:     getEnv("OPENAI_API_KEY", ""),
				BaseURL:    getEnv("OPENAI_BASE_URL", ""),
				SmallModel: getEnv("OPENAI_SMALL_MODEL", ""),
				LargeModel: getEnv("OPENAI_LARGE_MODEL", ""),
				Priority:   getEnvAsInt("OPENAI_PRIORITY", 1),
			},
			Anthropic: AnthropicConfig{
				APIKey:     getEnv("ANTHROPIC_API_KEY", ""),
				BaseURL:    getEnv("ANTHROPIC_BASE_URL", ""),
				SmallModel: getEnv("ANTHROPIC_SMALL_MODEL", ""),
				LargeModel: getEnv("ANTHROPIC_LARGE_MODEL", ""),
				Priority:   getEnvAsInt("ANTHROPIC_PRIORITY", 2),
			},
		},
		Fallback: FallbackConfig{
			Enabled:        getEnvAsBool("FALLBACK_ENABLED", true),
			BaseURL:        getEnv("FALLBACK_BASE_URL", ""),
			APIKey:         getEnv("FALLBACK_API_KEY", ""),
			Timeout:        time.Duration(getEnvAsInt("FALLBACK_TIMEOUT_MS", 30000)) * time.Millisecond,
			TextModel:      getEnv("FALLBACK_TEXT_MODEL", ""),
			EmbeddingModel: getEnv("FALLBACK_EMBEDDING_MODEL", ""),
			Priority:       getEnvAsInt("FALLBACK_PRIORITY", 100),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}
	if c.IsProduction() {
		if c.Auth.Secret == "" {
			return fmt.Errorf("AUTH_JWT_SECRET is required in production")
		}
		if c.Providers.OpenAI.APIKey == "" &&
			c.Providers.Anthropic.APIKey == "" &&
			c.Fallback.BaseURL == "" {
			return fmt.Errorf("at least one provider must be configured in production")
		}
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

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

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
