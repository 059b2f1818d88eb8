package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("OBJECT_STORE", "")
	t.Setenv("QUEUE_BACKEND", "")
	t.Setenv("MAX_UPLOAD_BYTES", "")
	t.Setenv("CONFIG_FILE", "")

	cfg := Load()
	if cfg.Env != "dev" {
		t.Fatalf("expected env dev, got %q", cfg.Env)
	}
	if cfg.ObjectStoreType != "local" {
		t.Fatalf("expected local store, got %q", cfg.ObjectStoreType)
	}
	if cfg.QueueBackend != "inline" {
		t.Fatalf("expected inline queue, got %q", cfg.QueueBackend)
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Fatalf("expected 10MiB upload ceiling, got %d", cfg.MaxUploadBytes)
	}
	if !cfg.IsDevLike() {
		t.Fatalf("expected dev-like config")
	}
}

func TestLoadNormalizesValues(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("OBJECT_STORE", "MinIO")
	t.Setenv("QUEUE_BACKEND", "redis")
	t.Setenv("EXTRACTION_CONCURRENCY", "-3")
	t.Setenv("CONFIG_FILE", "")

	cfg := Load()
	if cfg.Env != "production" {
		t.Fatalf("expected production, got %q", cfg.Env)
	}
	if cfg.ObjectStoreType != "minio" {
		t.Fatalf("expected minio, got %q", cfg.ObjectStoreType)
	}
	if cfg.QueueBackend != "asynq" {
		t.Fatalf("expected asynq, got %q", cfg.QueueBackend)
	}
	if cfg.ExtractionConcurrency != defaultExtractionConcurrency {
		t.Fatalf("expected default concurrency, got %d", cfg.ExtractionConcurrency)
	}
	if cfg.IsDevLike() {
		t.Fatalf("production must not be dev-like")
	}
}

func TestConfigFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docchat.yaml")
	content := []byte("upload:\n  max_bytes: 2048\nextraction:\n  concurrency: 9\n  timeout: 45s\ncors:\n  allow_origins: [\"https://app.example.com\"]\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg := Load()
	if cfg.MaxUploadBytes != 2048 {
		t.Fatalf("expected 2048, got %d", cfg.MaxUploadBytes)
	}
	if cfg.ExtractionConcurrency != 9 {
		t.Fatalf("expected 9, got %d", cfg.ExtractionConcurrency)
	}
	if cfg.ExtractionTimeout != 45*time.Second {
		t.Fatalf("expected 45s, got %s", cfg.ExtractionTimeout)
	}
	if len(cfg.CORSAllowOrigin) != 1 || cfg.CORSAllowOrigin[0] != "https://app.example.com" {
		t.Fatalf("unexpected origins: %v", cfg.CORSAllowOrigin)
	}
}

func TestApplyYAMLRejectsBadDuration(t *testing.T) {
	var cfg Config
	if err := applyYAML(&cfg, []byte("extraction:\n  timeout: soon\n")); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}
