package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadFile reads, defaults and validates the configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		path = DefaultFileName
	}

	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if cfg.ProjectDir == "" {
		abs, err := filepath.Abs(filepath.Dir(path))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve project directory: %w", err)
		}
		cfg.ProjectDir = abs
	}

	return cfg, nil
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration populated with default values.
func Default() *Config {
	return &Config{
		VMType:           "qemu",
		VMIDRange:        IDRange{Min: 900, Max: 999},
		FullClone:        true,
		QemuNICModel:     "virtio",
		QemuBridge:       "vmbr0",
		AllocationJitter: true,
		Timeouts:         *LoadTimeouts(),
		SSH: SSHConfig{
			User: "vagrant",
			Port: 22,
		},
	}
}

// applyDefaults fills values an explicit but empty YAML section may have zeroed.
func (c *Config) applyDefaults() {
	defaults := LoadTimeouts()
	if c.Timeouts.Task == 0 {
		c.Timeouts.Task = defaults.Task
	}
	if c.Timeouts.TaskCheckInterval == 0 {
		c.Timeouts.TaskCheckInterval = defaults.TaskCheckInterval
	}
	if c.Timeouts.ImgCopy == 0 {
		c.Timeouts.ImgCopy = defaults.ImgCopy
	}
	if c.Timeouts.SSH == 0 {
		c.Timeouts.SSH = defaults.SSH
	}
	if c.Timeouts.SSHCheckInterval == 0 {
		c.Timeouts.SSHCheckInterval = defaults.SSHCheckInterval
	}
	if c.Timeouts.AgentRetryDelay == 0 {
		c.Timeouts.AgentRetryDelay = defaults.AgentRetryDelay
	}
	if c.Timeouts.AgentRetryAttempts == 0 {
		c.Timeouts.AgentRetryAttempts = defaults.AgentRetryAttempts
	}
	if c.Timeouts.AllocationJitterMax == 0 {
		c.Timeouts.AllocationJitterMax = defaults.AllocationJitterMax
	}
	if c.SSH.Port == 0 {
		c.SSH.Port = 22
	}
	if c.VMType == "" {
		c.VMType = "qemu"
	}
}
