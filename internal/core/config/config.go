package config

import (
	"time"

	redisclient "github.com/vietddude/sentinel/internal/infra/redis"
	"github.com/vietddude/sentinel/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Network  NetworkConfig      `yaml:"network"`
	Queue    QueueConfig        `yaml:"queue"`
	Recovery RecoveryConfig     `yaml:"recovery"`
	Redis    redisclient.Config `yaml:"redis"`
	Database postgres.Config    `yaml:"database"`
}

// ServerConfig holds ops HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// NetworkConfig holds connectivity probe settings. When both probes are
// configured the gRPC health check wins.
type NetworkConfig struct {
	ProbeURL      string        `yaml:"probe_url"`
	ProbeGRPC     string        `yaml:"probe_grpc"`
	GRPCService   string        `yaml:"grpc_service"`
	ProbeInterval time.Duration `yaml:"probe_interval"`
}

// QueueConfig holds operation queue retry settings.
type QueueConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	Backoff    BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds backoff policy parameters.
type BackoffConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	Jitter       float64       `yaml:"jitter"` // fraction, at most 0.5
}

// RecoveryConfig holds boundary recovery budgets. The defaults are tuned,
// not derived; treat them as policy parameters.
type RecoveryConfig struct {
	MaxAutoRecovery  int           `yaml:"max_auto_recovery"`
	MaxManualRetries int           `yaml:"max_manual_retries"`
	MinErrorAge      time.Duration `yaml:"min_error_age"`
	RecoveryWindow   time.Duration `yaml:"recovery_window"`
	SnapshotTTL      time.Duration `yaml:"snapshot_ttl"`
}
