// Package config provides YAML-based configuration loading for Timekeeper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level Timekeeper configuration, loaded from timekeeper.yaml.
type Config struct {
	Database    DatabaseConfig     `yaml:"database"`
	Departments []DepartmentConfig `yaml:"departments"`
	Alerts      AlertsConfig       `yaml:"alerts"`
	Timer       TimerConfig        `yaml:"timer"`
	Server      ServerConfig       `yaml:"server"`
	Log         LogConfig          `yaml:"log"`
	Notify      NotifyConfig       `yaml:"notify"`
}

// DatabaseConfig selects and addresses the backing SQL store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite or mysql
	Path     string `yaml:"path"`   // sqlite file
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// DepartmentConfig defines a department and the task categories its workers may log against.
type DepartmentConfig struct {
	Name       string   `yaml:"name"`
	Categories []string `yaml:"categories"`
}

// AlertsConfig tunes the compliance alert deriver and the digest schedule.
type AlertsConfig struct {
	WindowDays        int    `yaml:"window_days"`
	SuppressJustified bool   `yaml:"suppress_justified"`
	DigestCron        string `yaml:"digest_cron"`
}

// TimerConfig controls the live task timer cadence.
type TimerConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	FlushEvery   time.Duration `yaml:"flush_every"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LogConfig selects the zap logger preset.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// NotifyConfig holds chat delivery settings for alert digests. Empty tokens disable a channel.
type NotifyConfig struct {
	Slack   ChatConfig `yaml:"slack"`
	Discord ChatConfig `yaml:"discord"`
}

// ChatConfig is a bot token plus the channel digests are posted to.
type ChatConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "timekeeper.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.Name == "" {
			c.Database.Name = "timekeeper"
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
	}
	if c.Alerts.WindowDays == 0 {
		c.Alerts.WindowDays = 30
	}
	if c.Alerts.DigestCron == "" {
		c.Alerts.DigestCron = "0 7 * * 1-5"
	}
	if c.Timer.TickInterval == 0 {
		c.Timer.TickInterval = time.Second
	}
	if c.Timer.FlushEvery == 0 {
		c.Timer.FlushEvery = 30 * time.Minute
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	if len(c.Departments) == 0 {
		errs = append(errs, "at least one department is required")
	}
	seen := make(map[string]bool)
	for i, d := range c.Departments {
		if d.Name == "" {
			errs = append(errs, fmt.Sprintf("departments[%d].name is required", i))
			continue
		}
		if seen[d.Name] {
			errs = append(errs, fmt.Sprintf("departments[%d].name %q is duplicated", i, d.Name))
		}
		seen[d.Name] = true
		if len(d.Categories) == 0 {
			errs = append(errs, fmt.Sprintf("departments[%d].categories must not be empty", i))
		}
	}
	if c.Alerts.WindowDays < 0 {
		errs = append(errs, "alerts.window_days must be positive")
	}
	if _, err := cron.ParseStandard(c.Alerts.DigestCron); err != nil {
		errs = append(errs, fmt.Sprintf("alerts.digest_cron %q is invalid: %v", c.Alerts.DigestCron, err))
	}
	if c.Timer.TickInterval < 0 {
		errs = append(errs, "timer.tick_interval must be positive")
	}
	if c.Timer.FlushEvery < time.Second {
		errs = append(errs, "timer.flush_every must be at least 1s")
	}
	if c.Notify.Slack.Token != "" && c.Notify.Slack.Channel == "" {
		errs = append(errs, "notify.slack.channel is required when a token is set")
	}
	if c.Notify.Discord.Token != "" && c.Notify.Discord.Channel == "" {
		errs = append(errs, "notify.discord.channel is required when a token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Categories returns the category names configured for a department, or nil if unknown.
func (c *Config) Categories(department string) []string {
	for _, d := range c.Departments {
		if d.Name == department {
			return d.Categories
		}
	}
	return nil
}
