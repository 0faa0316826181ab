package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/csams/sterncast/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "sterncast")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.DownloadDir != filepath.Join(wantData, "downloads") {
		t.Fatalf("unexpected download dir: %q", cfg.Paths.DownloadDir)
	}
	if cfg.Feed.URL != "https://sternengeschichten.podigee.io/feed/mp3" {
		t.Fatalf("unexpected feed url: %q", cfg.Feed.URL)
	}
	if cfg.RequestTimeout() != 0 {
		t.Fatalf("expected no request timeout by default, got %v", cfg.RequestTimeout())
	}
	if cfg.SaveInterval() != 5*time.Second {
		t.Fatalf("unexpected save interval: %v", cfg.SaveInterval())
	}
	if cfg.FeedDatabasePath() != filepath.Join(wantData, "feed.db") {
		t.Fatalf("unexpected feed database path: %q", cfg.FeedDatabasePath())
	}
	if cfg.StateDir() != filepath.Join(wantData, "state") {
		t.Fatalf("unexpected state dir: %q", cfg.StateDir())
	}
}

func TestLoadCustomConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[feed]
url = "https://example.com/feed.xml"
request_timeout = 30

[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
download_dir = "` + filepath.Join(dir, "audio") + `"

[logging]
level = "DEBUG"
format = "json"

[display]
date_format = "%b %d"
search_min_score = 0
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected existing config at %q, got %q (exists=%v)", path, resolved, exists)
	}
	if cfg.Feed.URL != "https://example.com/feed.xml" {
		t.Fatalf("unexpected feed url: %q", cfg.Feed.URL)
	}
	if cfg.RequestTimeout() != 30*time.Second {
		t.Fatalf("unexpected request timeout: %v", cfg.RequestTimeout())
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected normalized log level, got %q", cfg.Logging.Level)
	}
	if cfg.Paths.DownloadDir != filepath.Join(dir, "audio") {
		t.Fatalf("unexpected download dir: %q", cfg.Paths.DownloadDir)
	}
	// Unset sections keep their defaults
	if cfg.Player.Binary != "mpv" {
		t.Fatalf("expected default player binary, got %q", cfg.Player.Binary)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, d := range []string{cfg.Paths.DataDir, cfg.Paths.DownloadDir} {
		if info, err := os.Stat(d); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist", d)
		}
	}
}

func TestLoadRejectsInvalidConfigWithAllProblems(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[feed]
url = "ftp://example.com/feed"

[logging]
level = "loud"
format = "xml"

[player]
save_interval = 0
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, _, err := config.Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"feed.url", "logging.level", "logging.format", "player.save_interval"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in error %q", want, msg)
		}
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[feed\nurl ="), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Display.DateFormat != "%Y-%m-%d %H:%M" {
		t.Fatalf("unexpected date format: %q", cfg.Display.DateFormat)
	}

	encoded, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if !strings.Contains(encoded, "[feed]") {
		t.Fatalf("expected encoded config to contain [feed], got %q", encoded)
	}
}
