// Package config provides environment configuration for the API server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	Server    Server    `yaml:"server"`
	Store     Store     `yaml:"store"`
	NATS      NATS      `yaml:"nats"`
	Auth      Auth      `yaml:"auth"`
	LLM       LLM       `yaml:"llm"`
	Persist   Persist   `yaml:"persist"`
	RateLimit RateLimit `yaml:"rate_limit"`

	LogLevel string  `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Tracing  Tracing `yaml:"tracing"`
}

// Server settings.
type Server struct {
	Port         string        `yaml:"port" env:"PORT" env-default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"5m"`
	ShutdownWait time.Duration `yaml:"shutdown_wait" env:"SERVER_SHUTDOWN_WAIT" env-default:"30s"`
}

// Store selects and configures the conversation store.
type Store struct {
	Driver     string `yaml:"driver" env:"STORE_DRIVER" env-default:"sqlite"`
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"data/chat.db"`

	PostgresDSN     string        `yaml:"postgres_dsn" env:"POSTGRES_DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`

	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"REDIS_DB" env-default:"0"`
}

// NATS settings. An empty URL disables the event bus.
type NATS struct {
	URL      string `yaml:"url" env:"NATS_URL"`
	CAFile   string `yaml:"ca_file" env:"NATS_CA_FILE"`
	CertFile string `yaml:"cert_file" env:"NATS_CERT_FILE"`
	KeyFile  string `yaml:"key_file" env:"NATS_KEY_FILE"`
	Token    string `yaml:"token" env:"NATS_TOKEN"`
}

// Auth holds session and account policy settings.
type Auth struct {
	JWTSecret         string        `yaml:"jwt_secret" env:"JWT_SECRET" env-default:"development-secret-change-in-production"`
	JWTExpiration     time.Duration `yaml:"jwt_expiration" env:"JWT_EXPIRATION" env-default:"24h"`
	CookieSecure      bool          `yaml:"cookie_secure" env:"SESSION_COOKIE_SECURE" env-default:"false"`
	EmailDomainSuffix string        `yaml:"email_domain_suffix" env:"EMAIL_DOMAIN_SUFFIX" env-default:".edu"`
	MinPasswordLength int           `yaml:"min_password_length" env:"MIN_PASSWORD_LENGTH" env-default:"8"`
}

// LLM settings.
type LLM struct {
	Provider        string        `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	OpenAIAPIKey    string        `yaml:"openai_api_key" env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string        `yaml:"openai_base_url" env:"OPENAI_BASE_URL"`
	AnthropicAPIKey string        `yaml:"anthropic_api_key" env:"ANTHROPIC_API_KEY"`
	Model           string        `yaml:"model" env:"LLM_MODEL" env-default:"gpt-3.5-turbo"`
	Temperature     float64       `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.7"`
	MaxTokens       int           `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"0"`
	UpstreamTimeout time.Duration `yaml:"upstream_timeout" env:"LLM_UPSTREAM_TIMEOUT" env-default:"5m"`
}

// Persist settings for the deferred conversation write.
type Persist struct {
	Timeout time.Duration `yaml:"timeout" env:"PERSIST_TIMEOUT" env-default:"10s"`
}

// RateLimit settings.
type RateLimit struct {
	Requests int           `yaml:"requests" env:"RATE_LIMIT_REQUESTS" env-default:"60"`
	Window   time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW" env-default:"1m"`
}

// Tracing settings.
type Tracing struct {
	Endpoint string `yaml:"endpoint" env:"TRACING_ENDPOINT" env-default:"localhost:4318"`
	Enabled  bool   `yaml:"enabled" env:"TRACING_ENABLED" env-default:"false"`
}

// Load reads configuration from an optional .env file, an optional YAML file
// named by CONFIG_PATH, and environment variables, in increasing precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreSQLite, StoreRedis, StoreMemory:
	case StorePostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET cannot be empty")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE %v out of range [0,2]", c.LLM.Temperature)
	}
	return nil
}
