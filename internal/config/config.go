package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Data backends selectable with DATA_BACKEND.
const (
	BackendHTTP   = "http"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config holds all application configuration.
// Values come from, in increasing precedence: defaults, an optional
// config.yaml, and environment variables.
type Config struct {
	// Server
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	// Persistence collaborator
	DataBackend string `mapstructure:"data_backend"`
	BackendURL  string `mapstructure:"backend_url"`
	SQLitePath  string `mapstructure:"sqlite_path"`

	// HTTP client
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`

	// Resilience
	MaxRetries     int           `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`

	// Cache
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// Observability
	OTLPEndpoint   string `mapstructure:"otel_exporter_otlp_endpoint"`
	TracingEnabled bool   `mapstructure:"tracing_enabled"`

	// Ledger
	PerDiemRate float64 `mapstructure:"per_diem_rate"`
	Timezone    string  `mapstructure:"timezone"`

	// Notifications
	AMQPURL        string `mapstructure:"amqp_url"`
	AMQPExchange   string `mapstructure:"amqp_exchange"`
	AMQPRoutingKey string `mapstructure:"amqp_routing_key"`

	// Comma-separated browser origins allowed on the notifications websocket
	WSAllowedOrigins string `mapstructure:"ws_allowed_origins"`
}

var defaults = map[string]any{
	"port":      8080,
	"log_level": "info",

	"data_backend": BackendHTTP,
	"backend_url":  "http://localhost:8000",
	"sqlite_path":  "./data/ledger.db",

	"http_timeout": 30 * time.Second,

	"max_retries":     3,
	"initial_backoff": 100 * time.Millisecond,
	"max_concurrency": 50,

	"cache_ttl": 5 * time.Minute,

	"otel_exporter_otlp_endpoint": "localhost:4317",
	"tracing_enabled":             false,

	"per_diem_rate": 70.00,
	"timezone":      "America/Sao_Paulo",

	"amqp_url":         "",
	"amqp_exchange":    "ledger.notifications",
	"amqp_routing_key": "toast",

	"ws_allowed_origins": "",
}

// Load reads configuration. A missing config file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for k := range defaults {
		_ = v.BindEnv(k, strings.ToUpper(k))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DataBackend {
	case BackendHTTP, BackendMemory, BackendSQLite:
	default:
		return fmt.Errorf("invalid DATA_BACKEND %q: want http, memory or sqlite", c.DataBackend)
	}
	if c.DataBackend == BackendHTTP && c.BackendURL == "" {
		return errors.New("BACKEND_URL is required when DATA_BACKEND=http")
	}
	if c.PerDiemRate < 0 {
		return fmt.Errorf("invalid PER_DIEM_RATE %v: must not be negative", c.PerDiemRate)
	}
	return nil
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AllowedOrigins splits WSAllowedOrigins into its entries.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.WSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
