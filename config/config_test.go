package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "")
	t.Setenv("DB_DRIVER", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.DBDriver != "mysql" {
		t.Errorf("expected default driver mysql, got %s", cfg.DBDriver)
	}
	if cfg.JWTTTL() != 7*24*time.Hour {
		t.Errorf("unexpected JWT TTL %v", cfg.JWTTTL())
	}
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "klik.yaml")
	content := []byte("port: \"9000\"\ndb_driver: sqlite\nstorage_bucket: media\ncors_origins:\n  - https://klik.app\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("STORAGE_BUCKET", "")
	t.Setenv("CORS_ORIGINS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Port != "9100" {
		t.Errorf("environment should win over file, got port %s", cfg.Port)
	}
	if cfg.DBDriver != "sqlite" {
		t.Errorf("expected driver from file, got %s", cfg.DBDriver)
	}
	if cfg.StorageBucket != "media" {
		t.Errorf("expected bucket from file, got %s", cfg.StorageBucket)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "https://klik.app" {
		t.Errorf("unexpected CORS origins %v", cfg.CORSOrigins)
	}
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := defaults()
	cfg.DBDriver = "oracle"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a, b ,,c ")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("unexpected split result %v", got)
	}
}
