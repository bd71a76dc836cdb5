// Package config provides YAML-based configuration loading for the messaging
// service.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration, loaded from msgd.yaml.
type Config struct {
	Listen   ListenConfig   `yaml:"listen"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Cleanup  CleanupConfig  `yaml:"cleanup"`
}

// ListenConfig holds the HTTP listener settings.
type ListenConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig selects and configures the backing store. Driver is "mysql"
// for production or "sqlite" for local single-node runs.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Path     string `yaml:"path"` // sqlite only
}

// AuthConfig holds the shared secret used to verify identity tokens.
type AuthConfig struct {
	TokenSecret string `yaml:"token_secret"`
}

// StorageConfig holds the attachment object-store settings.
type StorageConfig struct {
	Dir string `yaml:"dir"`
}

// GatewayConfig tunes the realtime gateway.
type GatewayConfig struct {
	SendBuffer int `yaml:"send_buffer"` // outbound frames queued per connection
}

// CleanupConfig controls the inactivity sweeper.
type CleanupConfig struct {
	Schedule      string `yaml:"schedule"` // cron expression; empty disables
	RetentionDays int    `yaml:"retention_days"`
}

// Load reads a YAML config file from path and returns a validated Config.
// Secrets may be supplied via MSGD_DB_PASSWORD and MSGD_TOKEN_SECRET instead
// of the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse unmarshals YAML bytes into a Config with defaults applied. Validation
// is left to Load so tests can build partial configs.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen.Host == "" {
		c.Listen.Host = "0.0.0.0"
	}
	if c.Listen.Port == 0 {
		c.Listen.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Name == "" {
		c.Database.Name = "messaging"
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Database.Path == "" {
		c.Database.Path = "messaging.db"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "attachments"
	}
	if c.Gateway.SendBuffer == 0 {
		c.Gateway.SendBuffer = 128
	}
	if c.Cleanup.RetentionDays == 0 {
		c.Cleanup.RetentionDays = 180
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MSGD_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("MSGD_TOKEN_SECRET"); v != "" {
		c.Auth.TokenSecret = v
	}
}

func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported", c.Database.Driver))
	}
	if c.Auth.TokenSecret == "" {
		errs = append(errs, "auth.token_secret is required")
	}
	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		errs = append(errs, "listen.port is out of range")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
