package config

import (
	"os"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Remove(tmpfile.Name()) })

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

func TestLoad(t *testing.T) {
	content := `
server:
  port: 9090
  host: "127.0.0.1"

database:
  host: "testdb"
  port: 5432
  user: "testuser"
  password: "testpass"
  dbname: "testdb"

coconut:
  apiKey: "k-123"

jobs:
  pollInterval: "2s"
  defaultStorage: "media"
  storages:
    media:
      service: "s3"
      bucket: "media-bucket"
      region: "us-east-1"
`

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Expected host 127.0.0.1, got %s", cfg.Server.Host)
	}

	if cfg.Database.Host != "testdb" {
		t.Errorf("Expected database host testdb, got %s", cfg.Database.Host)
	}

	if cfg.Coconut.APIKey != "k-123" {
		t.Errorf("Expected coconut api key k-123, got %s", cfg.Coconut.APIKey)
	}

	if cfg.Jobs.PollInterval != 2*time.Second {
		t.Errorf("Expected poll interval 2s, got %v", cfg.Jobs.PollInterval)
	}

	media, ok := cfg.Jobs.Storages["media"]
	if !ok {
		t.Fatal("Expected media storage to be configured")
	}
	if media.Service != "s3" || media.Bucket != "media-bucket" {
		t.Errorf("Unexpected media storage: %+v", media)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 8081\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Queue.TTR != 15*time.Minute {
		t.Errorf("Expected default queue ttr 15m, got %v", cfg.Queue.TTR)
	}

	if cfg.Jobs.PollInterval != 5*time.Second {
		t.Errorf("Expected default poll interval 5s, got %v", cfg.Jobs.PollInterval)
	}

	if cfg.Jobs.OutputPathFormat == "" {
		t.Error("Expected a default output path format")
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default log level info, got %s", cfg.Logging.Level)
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Error("Expected error when loading nonexistent file")
	}
}
