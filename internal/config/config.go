package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/incosense/incosense/internal/strictform"
)

// envPrefix combined with the "SECTION_" tags below yields keys of the form
// APP__SECTION__KEY, e.g. APP__DATABASE__USERNAME.
const envPrefix = "APP_"

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER_"`
	Database  DatabaseConfig  `yaml:"database" envconfig:"DATABASE_"`
	Form      FormConfig      `yaml:"form" envconfig:"FORM_"`
	Email     EmailConfig     `yaml:"email" envconfig:"EMAIL_"`
	Redis     RedisConfig     `yaml:"redis" envconfig:"REDIS_"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT_"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING_"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port" split_words:"true" validate:"min=1,max=65535"`
	Host           string   `yaml:"host" split_words:"true" validate:"required"`
	AllowedOrigins []string `yaml:"allowed_origins" split_words:"true"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	return c.Host
}

// Addr returns host:port for net.Listen.
func (c ServerConfig) Addr() string {
	return c.GetHost() + ":" + strconv.Itoa(c.Port)
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL          string `yaml:"url" split_words:"true"`
	Username     string `yaml:"username" split_words:"true" validate:"required_without=URL"`
	Password     string `yaml:"password" split_words:"true"`
	Host         string `yaml:"host" split_words:"true" validate:"required_without=URL"`
	Port         int    `yaml:"port" split_words:"true" validate:"min=1,max=65535"`
	DatabaseName string `yaml:"database_name" split_words:"true" validate:"required_without=URL"`
	SSLMode      string `yaml:"ssl_mode" split_words:"true" validate:"oneof=disable require verify-ca verify-full"`
}

// ConnectionString returns URL when set, otherwise a postgres:// URL built
// from the individual fields.
func (c DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.DatabaseName,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// FormConfig holds the strict form decoder caps
type FormConfig struct {
	MaxBodyBytes int64 `yaml:"max_body_bytes" split_words:"true" validate:"gt=0"`
	MaxFields    int   `yaml:"max_fields" split_words:"true" validate:"gt=0"`
}

// Limits converts the caps for the decoder.
func (c FormConfig) Limits() strictform.Limits {
	return strictform.Limits{MaxBodyBytes: c.MaxBodyBytes, MaxFields: c.MaxFields}
}

// EmailConfig holds confirmation email delivery settings.
// Provider "none" disables confirmation emails.
type EmailConfig struct {
	Provider       string `yaml:"provider" split_words:"true" validate:"oneof=none ses postmark"`
	Sender         string `yaml:"sender" split_words:"true" validate:"required_unless=Provider none"`
	ServiceURL     string `yaml:"service_url" split_words:"true" validate:"required_if=Provider postmark"`
	APIToken       string `yaml:"api_token" split_words:"true" validate:"required_if=Provider postmark"`
	Region         string `yaml:"region" split_words:"true"`
	AccessKey      string `yaml:"access_key" split_words:"true"`
	SecretKey      string `yaml:"secret_key" split_words:"true"`
	TimeoutSeconds int    `yaml:"timeout_seconds" split_words:"true" validate:"gte=0"`
	ConfirmURL     string `yaml:"confirm_url" split_words:"true"`
}

// Timeout returns the configured timeout as a duration
func (c EmailConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Enabled reports whether confirmation emails are sent.
func (c EmailConfig) Enabled() bool { return c.Provider != "none" }

// RedisConfig holds the rate limiter backend. An empty URL disables it.
type RedisConfig struct {
	URL string `yaml:"url" split_words:"true"`
}

// RateLimitConfig holds per-client limits for POST /subscriptions
type RateLimitConfig struct {
	Requests      int `yaml:"requests" split_words:"true" validate:"gte=0"`
	WindowSeconds int `yaml:"window_seconds" split_words:"true" validate:"gte=0"`

	// TrustedProxies are CIDRs (or single addresses) of load balancers whose
	// X-Forwarded-For entries identify the client.
	TrustedProxies []string `yaml:"trusted_proxies" split_words:"true" validate:"dive,cidr|ip"`
}

// Window returns the configured window as a duration
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level     string `yaml:"level" split_words:"true" validate:"omitempty,oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
	RedactPII *bool  `yaml:"redact_pii" split_words:"true"`
}

// ShouldRedact defaults to true when unset.
func (c LoggingConfig) ShouldRedact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Form.MaxBodyBytes == 0 {
		cfg.Form.MaxBodyBytes = strictform.DefaultMaxBodyBytes
	}
	if cfg.Form.MaxFields == 0 {
		cfg.Form.MaxFields = strictform.DefaultMaxFields
	}
	if cfg.Email.Provider == "" {
		cfg.Email.Provider = "none"
	}
	if cfg.Email.TimeoutSeconds == 0 {
		cfg.Email.TimeoutSeconds = 10
	}
	if cfg.Email.Region == "" {
		cfg.Email.Region = "us-west-2"
	}
	if cfg.RateLimit.Requests == 0 {
		cfg.RateLimit.Requests = 30
	}
	if cfg.RateLimit.WindowSeconds == 0 {
		cfg.RateLimit.WindowSeconds = 60
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in deployment.
// A missing YAML file is not an error.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = &Config{}
		cfg.applyDefaults()
	} else if err != nil {
		return nil, err
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	// Platform-style overrides
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.URL = redisURL
	}
	// APP__APPLICATION_PORT is the legacy name of the listen port; the
	// sectioned key wins when both are set, and PORT wins over both.
	for _, key := range []string{"APP__APPLICATION_PORT", "PORT"} {
		if key == "APP__APPLICATION_PORT" && os.Getenv("APP__SERVER__PORT") != "" {
			continue
		}
		if port := os.Getenv(key); port != "" {
			p, err := strconv.Atoi(port)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			cfg.Server.Port = p
		}
	}

	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints declared in struct tags.
func (cfg *Config) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
