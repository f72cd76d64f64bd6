package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Expected default port 8000, got %d", cfg.Server.Port)
	}
	if cfg.Upload.MaxFileSize != 10<<20 {
		t.Errorf("Expected 10MiB upload cap, got %d", cfg.Upload.MaxFileSize)
	}
	if cfg.Redis.SummaryTTL != time.Minute {
		t.Errorf("Expected 1m summary ttl, got %s", cfg.Redis.SummaryTTL)
	}
	if cfg.Redis.Enabled() || cfg.MinIO.Enabled() {
		t.Error("Redis and MinIO should be disabled without a host")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", "file:taskweaver.db")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("REDIS_HOST", "cache")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.PostgresDSN() != "file:taskweaver.db" {
		t.Errorf("Unexpected database config %+v", cfg.Database)
	}
	if len(cfg.CORS.Origins) != 2 || cfg.CORS.Origins[1] != "https://b.example" {
		t.Errorf("Unexpected origins %v", cfg.CORS.Origins)
	}
	if !cfg.Redis.Enabled() {
		t.Error("Expected redis enabled")
	}
}

func TestPostgresDSNFromFields(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "tw", SSLMode: "disable"}
	want := "host=db port=5432 user=u password=p dbname=tw sslmode=disable"
	if got := c.PostgresDSN(); got != want {
		t.Errorf("PostgresDSN() = %q, want %q", got, want)
	}
}
