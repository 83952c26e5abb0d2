package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string

	// Auth0
	Auth0Domain   string
	Auth0Audience string

	// Server
	Port        string
	CORSOrigins []string
	Env         string

	Cache     CacheConfig
	Scheduler SchedulerConfig
	Notify    NotifyConfig
	Horizon   HorizonConfig
	SMTP      SMTPConfig
	AMQP      AMQPConfig
	WebSocket WebSocketConfig
}

// CacheConfig sizes the per-process read-through cache
type CacheConfig struct {
	TTL  time.Duration
	Size int
}

// SchedulerConfig controls the notification scheduler
type SchedulerConfig struct {
	Enabled    bool
	Location   *time.Location
	JobTimeout time.Duration
}

// NotifyConfig tunes notification fan-out
type NotifyConfig struct {
	Workers         int
	ProviderTimeout time.Duration
}

// HorizonConfig controls occurrence generation
type HorizonConfig struct {
	SyncInterval time.Duration
	Months       int
}

// SMTPConfig holds the server-wide email defaults
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// AMQPConfig enables the optional event relay when URL is set
type AMQPConfig struct {
	URL      string
	Exchange string
}

// WebSocketConfig bounds realtime connections
type WebSocketConfig struct {
	MaxClientsPerOwner int
}

// Load reads configuration from environment variables for the API server
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(true); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadCLI reads configuration for operator commands, which never validate tokens
func LoadCLI() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(false); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	p := &parser{}
	cfg := &Config{
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		Auth0Domain:   getEnv("AUTH0_DOMAIN", ""),
		Auth0Audience: getEnv("AUTH0_AUDIENCE", ""),
		Port:          getEnv("PORT", "8080"),
		CORSOrigins:   strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		Env:           getEnv("ENV", "development"),
		Cache: CacheConfig{
			TTL:  p.duration("CACHE_TTL", 15*time.Minute),
			Size: p.integer("CACHE_SIZE", 10000),
		},
		Scheduler: SchedulerConfig{
			Enabled:    p.boolean("SCHEDULER_ENABLED", true),
			Location:   p.location("SCHEDULER_TIMEZONE"),
			JobTimeout: p.duration("JOB_TIMEOUT", 10*time.Minute),
		},
		Notify: NotifyConfig{
			Workers:         p.integer("NOTIFY_WORKERS", 4),
			ProviderTimeout: p.duration("PROVIDER_TIMEOUT", 10*time.Second),
		},
		Horizon: HorizonConfig{
			SyncInterval: p.duration("HORIZON_SYNC_INTERVAL", time.Hour),
			Months:       p.integer("HORIZON_MONTHS", 12),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnv("SMTP_PORT", "587"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
		},
		AMQP: AMQPConfig{
			URL:      getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "billpilot.events"),
		},
		WebSocket: WebSocketConfig{
			MaxClientsPerOwner: p.integer("WS_MAX_CLIENTS_PER_OWNER", 8),
		},
	}
	if p.err != nil {
		return nil, p.err
	}
	return cfg, nil
}

func (c *Config) validate(requireAuth bool) error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if requireAuth {
		if c.Auth0Domain == "" {
			return fmt.Errorf("AUTH0_DOMAIN is required")
		}
		if c.Auth0Audience == "" {
			return fmt.Errorf("AUTH0_AUDIENCE is required")
		}
	}
	if c.Cache.Size <= 0 {
		return fmt.Errorf("CACHE_SIZE must be positive")
	}
	if c.Notify.Workers <= 0 {
		return fmt.Errorf("NOTIFY_WORKERS must be positive")
	}
	if c.Horizon.Months <= 0 {
		return fmt.Errorf("HORIZON_MONTHS must be positive")
	}
	return nil
}

// IsProduction reports whether ENV is production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// parser keeps the first malformed value it sees
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
}

func (p *parser) duration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
		return defaultValue
	}
	return d
}

func (p *parser) integer(key string, defaultValue int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return defaultValue
	}
	return n
}

func (p *parser) boolean(key string, defaultValue bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw, err)
		return defaultValue
	}
	return b
}

// location defaults to the server's local zone
func (p *parser) location(key string) *time.Location {
	raw := getEnv(key, "")
	if raw == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(raw)
	if err != nil {
		p.fail(key, raw, err)
		return time.Local
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
