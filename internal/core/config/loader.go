package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Network.ProbeInterval == 0 {
		cfg.Network.ProbeInterval = 10 * time.Second
	}

	if cfg.Queue.MaxRetries == 0 {
		cfg.Queue.MaxRetries = 3
	}
	if cfg.Queue.Backoff.InitialDelay == 0 {
		cfg.Queue.Backoff.InitialDelay = 2 * time.Second
	}
	if cfg.Queue.Backoff.MaxDelay == 0 {
		cfg.Queue.Backoff.MaxDelay = 60 * time.Second
	}
	if cfg.Queue.Backoff.Multiplier == 0 {
		cfg.Queue.Backoff.Multiplier = 2.0
	}

	if cfg.Recovery.MaxAutoRecovery == 0 {
		cfg.Recovery.MaxAutoRecovery = 2
	}
	if cfg.Recovery.MaxManualRetries == 0 {
		cfg.Recovery.MaxManualRetries = 3
	}
	if cfg.Recovery.MinErrorAge == 0 {
		cfg.Recovery.MinErrorAge = 5 * time.Second
	}
	if cfg.Recovery.RecoveryWindow == 0 {
		cfg.Recovery.RecoveryWindow = 5 * time.Minute
	}
}
