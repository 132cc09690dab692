package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Retry.MaxAttempts != 10 {
		t.Errorf("Expected default max attempts to be 10, got %d", config.Retry.MaxAttempts)
	}

	if config.Retry.BackoffFactor != 1.0 {
		t.Errorf("Expected default backoff factor to be 1.0, got %v", config.Retry.BackoffFactor)
	}

	if len(config.Retry.RetryableStatuses) != 5 {
		t.Errorf("Expected 5 default retryable statuses, got %v", config.Retry.RetryableStatuses)
	}

	if config.Retry.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout to be 30s, got %v", config.Retry.Timeout)
	}

	if config.Crawl.PageSize != 12 {
		t.Errorf("Expected default page size to be 12, got %d", config.Crawl.PageSize)
	}

	if config.Download.Concurrency != 10 {
		t.Errorf("Expected default concurrency to be 10, got %d", config.Download.Concurrency)
	}

	if config.Output.BaseDirectory != "imagefx_images" {
		t.Errorf("Expected default output directory to be imagefx_images, got %s", config.Output.BaseDirectory)
	}

	if config.Output.CheckpointFile != "media_keys_crawl_result.json" {
		t.Errorf("Unexpected default checkpoint file %s", config.Output.CheckpointFile)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FXARCHIVE_COOKIE", "SID=abc; HSID=def")
	t.Setenv("FXARCHIVE_MAX_ATTEMPTS", "4")
	t.Setenv("FXARCHIVE_BACKOFF_FACTOR", "0.5")
	t.Setenv("FXARCHIVE_RETRY_STATUSES", "429, 503")
	t.Setenv("FXARCHIVE_TIMEOUT", "15s")
	t.Setenv("FXARCHIVE_PAGE_DELAY", "2")
	t.Setenv("FXARCHIVE_CONCURRENCY", "5")
	t.Setenv("FXARCHIVE_SKIP_EXISTING", "true")
	t.Setenv("FXARCHIVE_OUTPUT_DIR", "/tmp/fx")
	t.Setenv("FXARCHIVE_LOG_LEVEL", "debug")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.Session.Cookie != "SID=abc; HSID=def" {
		t.Errorf("Expected cookie from env, got %q", config.Session.Cookie)
	}
	if config.Retry.MaxAttempts != 4 {
		t.Errorf("Expected max attempts 4, got %d", config.Retry.MaxAttempts)
	}
	if config.Retry.BackoffFactor != 0.5 {
		t.Errorf("Expected backoff factor 0.5, got %v", config.Retry.BackoffFactor)
	}
	if len(config.Retry.RetryableStatuses) != 2 || config.Retry.RetryableStatuses[1] != 503 {
		t.Errorf("Unexpected statuses %v", config.Retry.RetryableStatuses)
	}
	if config.Retry.Timeout != 15*time.Second {
		t.Errorf("Expected timeout 15s, got %v", config.Retry.Timeout)
	}
	if config.Crawl.PageDelay != 2*time.Second {
		t.Errorf("Expected page delay 2s, got %v", config.Crawl.PageDelay)
	}
	if config.Download.Concurrency != 5 {
		t.Errorf("Expected concurrency 5, got %d", config.Download.Concurrency)
	}
	if !config.Download.SkipExisting {
		t.Error("Expected skip existing to be enabled")
	}
	if config.Output.BaseDirectory != "/tmp/fx" {
		t.Errorf("Expected output dir /tmp/fx, got %s", config.Output.BaseDirectory)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromEnvReportsBadNumbers(t *testing.T) {
	t.Setenv("FXARCHIVE_CONCURRENCY", "lots")
	t.Setenv("FXARCHIVE_TIMEOUT", "soon")

	config := DefaultConfig()
	err := config.LoadFromEnv()
	if err == nil {
		t.Fatal("Expected an error for malformed values")
	}
	if !strings.Contains(err.Error(), "FXARCHIVE_CONCURRENCY") || !strings.Contains(err.Error(), "FXARCHIVE_TIMEOUT") {
		t.Errorf("Expected both variables in error, got %v", err)
	}
	if config.Download.Concurrency != 10 {
		t.Errorf("Malformed value should leave default, got %d", config.Download.Concurrency)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
session:
  cookie: "SID=file"
retry:
  max_attempts: 3
  timeout: 5s
crawl:
  page_size: 50
  page_delay: 250ms
  max_items: 100
download:
  concurrency: 4
output:
  base_directory: "/data/fx"
logging:
  level: "warn"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	config := DefaultConfig()
	if err := config.LoadFromFile(path); err != nil {
		t.Fatalf("Failed to load config file: %v", err)
	}

	if config.Session.Cookie != "SID=file" {
		t.Errorf("Expected cookie SID=file, got %s", config.Session.Cookie)
	}
	if config.Retry.MaxAttempts != 3 {
		t.Errorf("Expected max attempts 3, got %d", config.Retry.MaxAttempts)
	}
	if config.Retry.Timeout != 5*time.Second {
		t.Errorf("Expected timeout 5s, got %v", config.Retry.Timeout)
	}
	if config.Crawl.PageDelay != 250*time.Millisecond {
		t.Errorf("Expected page delay 250ms, got %v", config.Crawl.PageDelay)
	}
	if config.Crawl.MaxItems != 100 {
		t.Errorf("Expected max items 100, got %d", config.Crawl.MaxItems)
	}
	// Unset keys keep their defaults
	if config.Retry.BackoffFactor != 1.0 {
		t.Errorf("Expected default backoff factor to survive, got %v", config.Retry.BackoffFactor)
	}
	if config.Output.CheckpointFile != "media_keys_crawl_result.json" {
		t.Errorf("Expected default checkpoint file to survive, got %s", config.Output.CheckpointFile)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	config := DefaultConfig()
	if err := config.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "max attempts"},
		{"negative factor", func(c *Config) { c.Retry.BackoffFactor = -1 }, "backoff factor"},
		{"bad status", func(c *Config) { c.Retry.RetryableStatuses = []int{42} }, "invalid retryable status"},
		{"zero timeout", func(c *Config) { c.Retry.Timeout = 0 }, "timeout"},
		{"zero page size", func(c *Config) { c.Crawl.PageSize = 0 }, "page size"},
		{"negative max items", func(c *Config) { c.Crawl.MaxItems = -1 }, "max items"},
		{"zero concurrency", func(c *Config) { c.Download.Concurrency = 0 }, "concurrency"},
		{"huge concurrency", func(c *Config) { c.Download.Concurrency = 500 }, "should not exceed"},
		{"no output", func(c *Config) { c.Output.BaseDirectory = "" }, "output directory"},
		{"same extensions", func(c *Config) { c.Output.TextExtension = ".jpg" }, "must differ"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
		{"bad base url", func(c *Config) { c.Session.BaseURL = "not a url" }, "base URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	config := DefaultConfig()
	config.Crawl.PageDelay = 1500 * time.Millisecond
	config.Download.SkipExisting = true
	if err := config.Save(path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Saved config missing: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected 0600 permissions, got %v", info.Mode().Perm())
	}

	loaded := DefaultConfig()
	loaded.Download.SkipExisting = false
	if err := loaded.LoadFromFile(path); err != nil {
		t.Fatalf("Failed to reload config: %v", err)
	}
	if loaded.Crawl.PageDelay != 1500*time.Millisecond {
		t.Errorf("Expected page delay to round-trip, got %v", loaded.Crawl.PageDelay)
	}
	if !loaded.Download.SkipExisting {
		t.Error("Expected skip existing to round-trip")
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()
	config.MergeCommandLineFlags(map[string]interface{}{
		"cookie":       "SID=flag",
		"concurrency":  3,
		"max-items":    7,
		"page-delay":   500 * time.Millisecond,
		"output":       "out",
		"metrics-addr": ":9100",
		"log-level":    "",
	})

	if config.Session.Cookie != "SID=flag" {
		t.Errorf("Expected cookie from flag, got %s", config.Session.Cookie)
	}
	if config.Download.Concurrency != 3 {
		t.Errorf("Expected concurrency 3, got %d", config.Download.Concurrency)
	}
	if config.Crawl.MaxItems != 7 {
		t.Errorf("Expected max items 7, got %d", config.Crawl.MaxItems)
	}
	if config.Crawl.PageDelay != 500*time.Millisecond {
		t.Errorf("Expected page delay 500ms, got %v", config.Crawl.PageDelay)
	}
	if config.Output.BaseDirectory != "out" {
		t.Errorf("Expected output out, got %s", config.Output.BaseDirectory)
	}
	if config.Metrics.Listen != ":9100" {
		t.Errorf("Expected metrics address, got %s", config.Metrics.Listen)
	}
	if config.Logging.Level != "info" {
		t.Errorf("Empty flag should not override log level, got %s", config.Logging.Level)
	}
}

func TestMergeRetryStatusesFlag(t *testing.T) {
	codes, err := ParseStatusList("429,502")
	if err != nil {
		t.Fatalf("ParseStatusList: %v", err)
	}

	config := DefaultConfig()
	config.MergeCommandLineFlags(map[string]interface{}{"retry-statuses": codes})
	if len(config.Retry.RetryableStatuses) != 2 || config.Retry.RetryableStatuses[1] != 502 {
		t.Errorf("Expected statuses from flag, got %v", config.Retry.RetryableStatuses)
	}

	config = DefaultConfig()
	config.MergeCommandLineFlags(map[string]interface{}{"retry-statuses": []int{}})
	if len(config.Retry.RetryableStatuses) != 5 {
		t.Errorf("Empty flag should keep defaults, got %v", config.Retry.RetryableStatuses)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("download:\n  concurrency: 2\ncrawl:\n  page_size: 20\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("FXARCHIVE_CONCURRENCY", "6")

	config, err := Load(path, map[string]interface{}{"max-items": 9})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if config.Crawl.PageSize != 20 {
		t.Errorf("Expected page size from file, got %d", config.Crawl.PageSize)
	}
	if config.Download.Concurrency != 6 {
		t.Errorf("Expected env to override file, got %d", config.Download.Concurrency)
	}
	if config.Crawl.MaxItems != 9 {
		t.Errorf("Expected flag value, got %d", config.Crawl.MaxItems)
	}

	config, err = Load(path, map[string]interface{}{"concurrency": 1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Download.Concurrency != 1 {
		t.Errorf("Expected flag to override env, got %d", config.Download.Concurrency)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("FXARCHIVE_LOG_LEVEL", "verbose")
	if _, err := Load("", nil); err == nil {
		t.Error("Expected error")
	}
}

func TestParseStatusList(t *testing.T) {
	codes, err := ParseStatusList("429, 500,,503")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(codes) != 3 || codes[0] != 429 || codes[2] != 503 {
		t.Errorf("unexpected codes %v", codes)
	}

	if _, err := ParseStatusList("429,abc"); err == nil {
		t.Error("Expected error for non-numeric status")
	}
}
