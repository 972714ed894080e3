package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuongbtq/grow-sync/internal/batch"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535

	// MinSecretLength is the shortest accepted webhook signing secret
	MinSecretLength = 32
	// MaxBatchJobs is the hard upper bound on jobs per request
	MaxBatchJobs = 100

	// DefaultMaxBodyBytes caps an inbound webhook body
	DefaultMaxBodyBytes = 1 << 20

	placeholderSecret = "change-me"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	App      AppConfig      `yaml:"app"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`
	Notion   NotionConfig   `yaml:"notion"`
	Batch    BatchConfig    `yaml:"batch"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
	NoColor      bool   `yaml:"no_color"`
}

// SecurityConfig holds webhook authentication and inbound throttling settings
type SecurityConfig struct {
	HMACSecret           string  `yaml:"hmac_secret"`
	RateLimitBypassToken string  `yaml:"rate_limit_bypass_token"`
	InboundRPS           float64 `yaml:"inbound_rps"`
	InboundBurst         int     `yaml:"inbound_burst"`
}

// NotionConfig holds record store access and outbound pacing settings
type NotionConfig struct {
	APIToken       string        `yaml:"api_token"`
	BaseURL        string        `yaml:"base_url"`
	Version        string        `yaml:"version"`
	PhotosDBID     string        `yaml:"photos_db_id"`
	HistoryDBID    string        `yaml:"history_db_id"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MinInterval    time.Duration `yaml:"min_interval"`
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// BatchConfig holds batch processing limits
type BatchConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	MaxJobs       int           `yaml:"max_jobs"`
	ReportTimeout time.Duration `yaml:"report_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration for the sync ledger
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange configuration for result events
type RabbitMQConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds the optional queue bound to the events exchange
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	BindingKey string `yaml:"binding_key"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	MaxInterval   time.Duration `yaml:"max_interval"`
}

// Load reads the configuration file, expands ${VAR} references from the
// environment, parses it and applies defaults
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()

	return &config, nil
}

// ApplyDefaults fills unset values
func (c *Config) ApplyDefaults() {
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Notion.BaseURL == "" {
		c.Notion.BaseURL = "https://api.notion.com/v1"
	}
	if c.Notion.Version == "" {
		c.Notion.Version = "2022-06-28"
	}
	if c.Notion.RequestTimeout <= 0 {
		c.Notion.RequestTimeout = 30 * time.Second
	}
	if c.Notion.MinInterval <= 0 {
		c.Notion.MinInterval = 333 * time.Millisecond
	}
	if c.Notion.MaxRetries <= 0 {
		c.Notion.MaxRetries = 5
	}
	if c.Notion.InitialBackoff <= 0 {
		c.Notion.InitialBackoff = time.Second
	}
	if c.Notion.MaxBackoff <= 0 {
		c.Notion.MaxBackoff = 32 * time.Second
	}
	if c.Batch.MaxJobs == 0 {
		c.Batch.MaxJobs = MaxBatchJobs
	}
	if c.Batch.Timeout <= 0 {
		c.Batch.Timeout = max(batch.DefaultTimeout, c.MinBatchTimeout().Truncate(time.Second)+time.Second)
	}
	if c.Batch.ReportTimeout <= 0 {
		c.Batch.ReportTimeout = batch.DefaultReportTimeout
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = c.Batch.Timeout + 30*time.Second
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Security.InboundRPS <= 0 {
		c.Security.InboundRPS = 5
	}
	if c.Security.InboundBurst <= 0 {
		c.Security.InboundBurst = 10
	}
	if c.RabbitMQ.Exchange.Type == "" {
		c.RabbitMQ.Exchange.Type = "topic"
	}
}

// Validate checks if the configuration is valid for the API service.
// The history collection id is checked per batch, not here.
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateSecret(); err != nil {
		return err
	}

	if err := c.ValidateStore(); err != nil {
		return err
	}

	if c.Batch.MaxJobs < 1 || c.Batch.MaxJobs > MaxBatchJobs {
		return fmt.Errorf("invalid batch max_jobs: %d (must be between 1 and %d)", c.Batch.MaxJobs, MaxBatchJobs)
	}

	if minTimeout := c.MinBatchTimeout(); c.Batch.Timeout < minTimeout {
		return fmt.Errorf("batch timeout %s is too short: %d jobs at one store call per %s need at least %s",
			c.Batch.Timeout, c.Batch.MaxJobs, c.Notion.MinInterval, minTimeout)
	}

	if c.Server.WriteTimeout <= c.Batch.Timeout {
		return fmt.Errorf("server write_timeout %s must be longer than batch timeout %s", c.Server.WriteTimeout, c.Batch.Timeout)
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return errors.New("database host is required")
		}
		if c.Database.Port < MinPort || c.Database.Port > MaxPort {
			return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
		}
		if c.Database.Database == "" {
			return errors.New("database name is required")
		}
	}

	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.Host == "" {
			return errors.New("rabbitmq host is required")
		}
		if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
			return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
		}
		if c.RabbitMQ.Exchange.Name == "" {
			return errors.New("rabbitmq exchange name is required")
		}
	}

	return nil
}

// MinBatchTimeout is the shortest batch timeout that lets a full batch finish at the configured pacing
func (c *Config) MinBatchTimeout() time.Duration {
	return batch.MinTimeout(c.Batch.MaxJobs, c.Notion.MinInterval)
}

// ValidateStore checks the settings needed to reach the record store
func (c *Config) ValidateStore() error {
	if c.Notion.APIToken == "" {
		return errors.New("notion api_token is required")
	}
	return nil
}

func (c *Config) validateSecret() error {
	switch secret := c.Security.HMACSecret; {
	case secret == "":
		return errors.New("security hmac_secret is required")
	case secret == placeholderSecret:
		return errors.New("security hmac_secret must be changed from the placeholder value")
	case len(secret) < MinSecretLength:
		return fmt.Errorf("security hmac_secret must be at least %d characters", MinSecretLength)
	}
	return nil
}
