package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: transitdash
database:
  driver: sqlite
  filename: data/dashboard.db
dashboard:
  timezone: Africa/Abidjan
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Port != 8080 {
		t.Fatalf("Port = %d, want default 8080", cfg.App.Port)
	}
	if cfg.Dashboard.GlobalCron != "*/5 * * * *" || cfg.Dashboard.CompanyCron != "*/3 * * * *" {
		t.Fatalf("crons = %q / %q", cfg.Dashboard.GlobalCron, cfg.Dashboard.CompanyCron)
	}
	if cfg.Dashboard.RefreshTimeout != 30*time.Second {
		t.Fatalf("RefreshTimeout = %v", cfg.Dashboard.RefreshTimeout)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "Africa/Abidjan" {
		t.Fatalf("Location = %v, %v", loc, err)
	}
}

func TestLoadReadsSecretsFromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://dash@localhost/dash")
	t.Setenv("AWS_SES_ACCESS_KEY_ID", "AKIA")
	t.Setenv("AWS_SES_SECRET_ACCESS_KEY", "secret")
	path := writeConfig(t, `
app:
  name: transitdash
  port: 9000
database:
  driver: postgres
notify:
  enabled: true
  recipient: ops@example.com
  sender: dashboard@example.com
  region: eu-west-1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.URL != "postgres://dash@localhost/dash" {
		t.Fatalf("Database.URL = %q", cfg.Database.URL)
	}
	if cfg.Notify.AccessKeyID != "AKIA" || cfg.Notify.SecretAccessKey != "secret" {
		t.Fatal("SES credentials not loaded from environment")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.App.Name = "transitdash"
		cfg.Database.Filename = "dashboard.db"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing name", func(c *Config) { c.App.Name = "" }, "app name"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "unsupported database driver"},
		{"sqlite without file", func(c *Config) { c.Database.Filename = "" }, "filename"},
		{"postgres without url", func(c *Config) { c.Database.Driver = "postgres" }, "URL"},
		{"bad timezone", func(c *Config) { c.Dashboard.Timezone = "Mars/Olympus" }, "timezone"},
		{"bad cron", func(c *Config) { c.Dashboard.GlobalCron = "*/5 * *" }, "global_cron"},
		{"empty cron disables job", func(c *Config) { c.Dashboard.CompanyCron = "" }, ""},
		{"negative limit", func(c *Config) { c.Dashboard.ManualRefreshPerMinute = -1 }, "manual_refresh_per_minute"},
		{"notify without recipient", func(c *Config) {
			c.Notify.Enabled = true
			c.Notify.Sender = "dashboard@example.com"
			c.Notify.Region = "eu-west-1"
		}, "recipient"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}
