// Package config loads this module's configuration knobs (§6): a YAML
// file with environment-variable overrides, the same two-layer loader
// shape the teacher uses for its own config.
package config

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every externally-tunable knob (§6: "object-storage
// bucket + list keys, worker concurrency, rate-limit rps, queue
// retention windows, day-scheduler timezone (fixed to UTC), default
// admin bootstrap").
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Redis       RedisConfig       `yaml:"redis"`
	Dynamo      DynamoConfig      `yaml:"dynamo"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
	SES         SESConfig         `yaml:"ses"`
	Worker      WorkerConfig      `yaml:"worker"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Queue       QueueConfig       `yaml:"queue"`
	Admin       AdminConfig       `yaml:"admin"`
}

// ServerConfig holds the webhook/campaign-API HTTP server's listen
// address (§6: webhook "HTTPS POST /webhooks/ses").
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// GetHost returns the listen host, matching containers that must bind
// every interface rather than just localhost.
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// PostgresConfig holds the Campaign Store's connection string (§4.8).
type PostgresConfig struct {
	DatabaseURL string `yaml:"database_url"`
}

// RedisConfig holds the shared Redis connection backing the Delivery
// Queue (§4.5), the rate limiter (§4.5 step 5), and the EventBus (§1).
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
}

// DynamoConfig holds the Message Store and Analytics Aggregator's
// DynamoDB table (§4.7, §4.10).
type DynamoConfig struct {
	Table  string `yaml:"table"`
	Region string `yaml:"region"`
}

// ObjectStoreConfig holds the recipient CSV / unsubscribe-file bucket
// (§6: "object-storage bucket + list keys").
type ObjectStoreConfig struct {
	Bucket         string `yaml:"bucket"`
	Prefix         string `yaml:"prefix"`
	Region         string `yaml:"region"`
	UnsubscribeKey string `yaml:"unsubscribe_key"`
}

// SESConfig holds the MailTransport's AWS SES region (§4.5 step 5).
type SESConfig struct {
	Region string `yaml:"region"`
}

// WorkerConfig holds the Delivery Queue's worker pool size (§4.5:
// "reference concurrency = 50").
type WorkerConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// RateLimitConfig holds the MailTransport sliding-window budget (§4.5
// step 5: "default 14 req/s sliding 1-s window").
type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
}

// QueueConfig holds the Delivery Queue's retention windows (§4.5:
// "completed jobs 24h / 1000 max; failed jobs 7 days").
type QueueConfig struct {
	CompletedRetentionHours int `yaml:"completed_retention_hours"`
	CompletedMaxCount       int `yaml:"completed_max_count"`
	FailedRetentionDays     int `yaml:"failed_retention_days"`
}

// AdminConfig holds the default admin bootstrap account (§6).
type AdminConfig struct {
	BootstrapEmail    string `yaml:"bootstrap_email"`
	BootstrapPassword string `yaml:"-"`
}

// Load reads and parses the YAML config file at path, filling in
// reference defaults for anything left zero.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Dynamo.Region == "" {
		cfg.Dynamo.Region = "us-east-1"
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = cfg.Dynamo.Region
	}
	if cfg.ObjectStore.Region == "" {
		cfg.ObjectStore.Region = cfg.Dynamo.Region
	}
	if cfg.ObjectStore.UnsubscribeKey == "" {
		cfg.ObjectStore.UnsubscribeKey = "unsubscribed.csv"
	}
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = 50
	}
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 14
	}
	if cfg.Queue.CompletedRetentionHours == 0 {
		cfg.Queue.CompletedRetentionHours = 24
	}
	if cfg.Queue.CompletedMaxCount == 0 {
		cfg.Queue.CompletedMaxCount = 1000
	}
	if cfg.Queue.FailedRetentionDays == 0 {
		cfg.Queue.FailedRetentionDays = 7
	}
}

// LoadFromEnv loads the YAML config at path and then applies
// environment-variable overrides, loading a .env file first (if
// present) the same way the teacher's LoadFromEnv does so secrets can
// live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("DYNAMO_TABLE"); v != "" {
		cfg.Dynamo.Table = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Dynamo.Region = v
		cfg.SES.Region = v
		cfg.ObjectStore.Region = v
	}
	if v := os.Getenv("OBJECT_STORE_BUCKET"); v != "" {
		cfg.ObjectStore.Bucket = v
	}
	if v := os.Getenv("ADMIN_BOOTSTRAP_EMAIL"); v != "" {
		cfg.Admin.BootstrapEmail = v
	}
	if v := os.Getenv("ADMIN_BOOTSTRAP_PASSWORD"); v != "" {
		cfg.Admin.BootstrapPassword = v
	}

	return cfg, nil
}
