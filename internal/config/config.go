// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
	// PostgreSQL connection URL; DATABASE_URL overrides it.
	URL          string `yaml:"url,omitempty"`
	MaxOpenConns int    `yaml:"max_open_conns,omitempty"`
}

type DashboardConfig struct {
	// IANA timezone that defines calendar days for all date buckets.
	Timezone       string        `yaml:"timezone"`
	GlobalCron     string        `yaml:"global_cron"`
	CompanyCron    string        `yaml:"company_cron"`
	RefreshTimeout time.Duration `yaml:"refresh_timeout"`
	// Manual refreshes allowed per client per minute; 0 disables the limit.
	ManualRefreshPerMinute int `yaml:"manual_refresh_per_minute"`
	TrustProxy             bool `yaml:"trust_proxy"`
}

type NotifyConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Recipient string `yaml:"recipient"`
	Sender    string `yaml:"sender"`
	Region    string `yaml:"region"`
	// Loaded from environment
	AccessKeyID     string `yaml:"-"`
	SecretAccessKey string `yaml:"-"`
}

type Config struct {
	App struct {
		Name            string        `yaml:"name"`
		Environment     string        `yaml:"environment"`
		Port            int           `yaml:"port"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"app"`

	Database  DatabaseConfig  `yaml:"database"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// Load loads the .env file next to configPath (if any), then the YAML file,
// then secrets from the environment, and validates the result.
func Load(configPath string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	cfg.Notify.AccessKeyID = os.Getenv("AWS_SES_ACCESS_KEY_ID")
	cfg.Notify.SecretAccessKey = os.Getenv("AWS_SES_SECRET_ACCESS_KEY")
	if region := os.Getenv("AWS_SES_REGION"); region != "" {
		cfg.Notify.Region = region
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Default returns the values used for keys missing from the YAML file.
func Default() *Config {
	cfg := &Config{}
	cfg.App.Environment = "development"
	cfg.App.Port = 8080
	cfg.App.ShutdownTimeout = 30 * time.Second
	cfg.Database.Driver = "sqlite"
	cfg.Dashboard.Timezone = "UTC"
	cfg.Dashboard.GlobalCron = "*/5 * * * *"
	cfg.Dashboard.CompanyCron = "*/3 * * * *"
	cfg.Dashboard.RefreshTimeout = 30 * time.Second
	cfg.Dashboard.ManualRefreshPerMinute = 6
	return cfg
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	for name, expr := range map[string]string{
		"global_cron":  c.Dashboard.GlobalCron,
		"company_cron": c.Dashboard.CompanyCron,
	} {
		if strings.TrimSpace(expr) == "" {
			continue
		}
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("dashboard %s %q: %w", name, expr, err)
		}
	}
	if c.Dashboard.RefreshTimeout < 0 {
		return fmt.Errorf("dashboard refresh_timeout must not be negative")
	}
	if c.Dashboard.ManualRefreshPerMinute < 0 {
		return fmt.Errorf("dashboard manual_refresh_per_minute must not be negative")
	}

	if c.Notify.Enabled {
		if c.Notify.Recipient == "" {
			return fmt.Errorf("notify recipient is required when notifications are enabled")
		}
		if c.Notify.Sender == "" {
			return fmt.Errorf("notify sender is required when notifications are enabled")
		}
		if c.Notify.Region == "" {
			return fmt.Errorf("notify region is required when notifications are enabled")
		}
	}
	return nil
}

// Location resolves the dashboard timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Dashboard.Timezone)
	if err != nil {
		return nil, fmt.Errorf("dashboard timezone %q: %w", c.Dashboard.Timezone, err)
	}
	return loc, nil
}
