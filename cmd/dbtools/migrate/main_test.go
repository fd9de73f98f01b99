package main

import (
	"strings"
	"testing"

	"github.com/codr1/transitdash/internal/config"
)

func TestMigrateDatabaseURL(t *testing.T) {
	got, err := migrateDatabaseURL(config.DatabaseConfig{Driver: "postgres", URL: "postgres://dash:pw@db:5432/dash?sslmode=disable"})
	if err != nil {
		t.Fatalf("postgres: %v", err)
	}
	if got != "pgx5://dash:pw@db:5432/dash?sslmode=disable" {
		t.Fatalf("postgres url = %q", got)
	}

	got, err = migrateDatabaseURL(config.DatabaseConfig{Driver: "sqlite", Filename: t.TempDir() + "/data/app.db"})
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	if !strings.HasPrefix(got, "sqlite3:///") || !strings.HasSuffix(got, "/data/app.db") {
		t.Fatalf("sqlite url = %q", got)
	}

	if _, err := migrateDatabaseURL(config.DatabaseConfig{Driver: "postgres", URL: "mysql://x"}); err == nil {
		t.Fatal("expected error for non-postgres URL")
	}
	if _, err := migrateDatabaseURL(config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
