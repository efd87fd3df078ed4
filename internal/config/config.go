// Package config loads the engine's runtime configuration: defaults first,
// then an optional JSON file, then environment variables on top.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the full runtime configuration.
type Config struct {
	Database   DatabaseConfig   `json:"database"`
	Logging    LoggingConfig    `json:"logging"`
	Provenance ProvenanceConfig `json:"provenance"`
	Storage    StorageConfig    `json:"storage"`
	Worker     WorkerConfig     `json:"worker"`
	Metrics    MetricsConfig    `json:"metrics"`
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `json:"level"`
}

// ProvenanceConfig configures calculation receipt signing. An empty secret
// disables receipts.
type ProvenanceConfig struct {
	ReceiptSecret string `json:"receipt_secret"`
	Issuer        string `json:"issuer"`
}

// StorageConfig points at the evidence bucket. An empty bucket selects the
// in-memory object store.
type StorageConfig struct {
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
}

// WorkerConfig drives the factor-watch worker. Schedule is a cron expression
// with a seconds field.
type WorkerConfig struct {
	Schedule string `json:"schedule"`
}

// MetricsConfig sets where Prometheus metrics are served.
type MetricsConfig struct {
	Addr string `json:"addr"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    os.Getenv("USER"),
			DBName:  "ghg_inventory",
			SSLMode: "disable",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			Region: "eu-north-1",
		},
		Worker: WorkerConfig{
			Schedule: "0 0 6 * * *",
		},
		Metrics: MetricsConfig{
			Addr: ":9201",
		},
	}

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	overrideWithEnv(config)

	return config, nil
}

func overrideWithEnv(config *Config) {
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if secret := os.Getenv("RECEIPT_SECRET"); secret != "" {
		config.Provenance.ReceiptSecret = secret
	}
	if issuer := os.Getenv("RECEIPT_ISSUER"); issuer != "" {
		config.Provenance.Issuer = issuer
	}
	if bucket := os.Getenv("EVIDENCE_BUCKET"); bucket != "" {
		config.Storage.Bucket = bucket
	}
	if region := os.Getenv("EVIDENCE_REGION"); region != "" {
		config.Storage.Region = region
	}
	if key := os.Getenv("EVIDENCE_ACCESS_KEY"); key != "" {
		config.Storage.AccessKey = key
	}
	if secret := os.Getenv("EVIDENCE_SECRET_KEY"); secret != "" {
		config.Storage.SecretKey = secret
	}
	if schedule := os.Getenv("WORKER_SCHEDULE"); schedule != "" {
		config.Worker.Schedule = schedule
	}
	if addr := os.Getenv("METRICS_ADDR"); addr != "" {
		config.Metrics.Addr = addr
	}
}

// GetDatabaseURL returns the database connection string.
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}
