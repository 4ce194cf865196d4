package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting for the loan API.
type Config struct {
	Port            int           `env:"LOAN_API_PORT" envDefault:"3001"`
	LogLevel        string        `env:"LOAN_LOG_LEVEL" envDefault:"info"`
	AllowedOrigins  []string      `env:"LOAN_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	ShutdownTimeout time.Duration `env:"LOAN_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// StrictTransitions makes Closed, Rejected and Withdrawn terminal.
	StrictTransitions bool `env:"LOAN_STRICT_TRANSITIONS" envDefault:"false"`

	Store  StoreConfig
	SMTP   SMTPConfig
	Notify NotifyConfig
}

type StoreConfig struct {
	Driver        string `env:"LOAN_STORE_DRIVER" envDefault:"sqlite"` // sqlite, redis or memory
	SQLitePath    string `env:"LOAN_SQLITE_PATH" envDefault:"loans.db"`
	RedisAddr     string `env:"LOAN_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"LOAN_REDIS_PASSWORD"`
	RedisDB       int    `env:"LOAN_REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"LOAN_REDIS_PREFIX" envDefault:"loans"`
}

// SMTPConfig is left empty to log notifications instead of mailing them.
type SMTPConfig struct {
	Host     string `env:"LOAN_SMTP_HOST"`
	Port     int    `env:"LOAN_SMTP_PORT" envDefault:"587"`
	Username string `env:"LOAN_SMTP_USERNAME"`
	Password string `env:"LOAN_SMTP_PASSWORD"`
	From     string `env:"LOAN_SMTP_FROM" envDefault:"Loan Team <no-reply@loanapp.local>"`
}

type NotifyConfig struct {
	QueueSize   int           `env:"LOAN_NOTIFY_QUEUE_SIZE" envDefault:"64"`
	Workers     int           `env:"LOAN_NOTIFY_WORKERS" envDefault:"2"`
	SendTimeout time.Duration `env:"LOAN_NOTIFY_SEND_TIMEOUT" envDefault:"20s"`
}

const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Load reads an optional .env file from the working directory, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite, DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Notify.QueueSize < 1 {
		c.Notify.QueueSize = 1
	}
	if c.Notify.Workers < 1 {
		c.Notify.Workers = 1
	}
	return nil
}

// SMTPEnabled reports whether outbound mail is configured.
func (c *Config) SMTPEnabled() bool {
	return c.SMTP.Host != ""
}
