package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "FXARCHIVE_"

// Config holds all configuration options for fxarchive
type Config struct {
	// Session is the opaque credential bundle sent with every request
	Session SessionConfig `yaml:"session" json:"session"`

	Retry    RetryConfig    `yaml:"retry" json:"retry"`
	Crawl    CrawlConfig    `yaml:"crawl" json:"crawl"`
	Download DownloadConfig `yaml:"download" json:"download"`
	Output   OutputConfig   `yaml:"output" json:"output"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
}

// SessionConfig holds the cookie bundle and API endpoint
type SessionConfig struct {
	// Account selects a session saved with `fxarchive auth login`
	Account   string `yaml:"account" json:"account"`
	Cookie    string `yaml:"cookie" json:"cookie"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	BaseURL   string `yaml:"base_url" json:"base_url"`
}

// RetryConfig is turned into the transport's retry policy
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts" json:"max_attempts"`
	BackoffFactor     float64       `yaml:"backoff_factor" json:"backoff_factor"`
	RetryableStatuses []int         `yaml:"retryable_statuses" json:"retryable_statuses"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	// RequestsPerMinute paces all requests; 0 disables pacing
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// CrawlConfig controls history pagination
type CrawlConfig struct {
	PageSize  int           `yaml:"page_size" json:"page_size"`
	PageDelay time.Duration `yaml:"page_delay" json:"page_delay"`
	// MaxItems caps discovery; 0 means everything
	MaxItems int `yaml:"max_items" json:"max_items"`
}

// DownloadConfig controls the batch download
type DownloadConfig struct {
	Concurrency    int  `yaml:"concurrency" json:"concurrency"`
	MilestoneEvery int  `yaml:"milestone_every" json:"milestone_every"`
	SkipExisting   bool `yaml:"skip_existing" json:"skip_existing"`
}

// OutputConfig holds output locations
type OutputConfig struct {
	BaseDirectory  string `yaml:"base_directory" json:"base_directory"`
	CheckpointFile string `yaml:"checkpoint_file" json:"checkpoint_file"`
	ImageExtension string `yaml:"image_extension" json:"image_extension"`
	TextExtension  string `yaml:"text_extension" json:"text_extension"`
}

// LoggingConfig holds logging configuration. When File is set, the file is
// rotated once it reaches MaxSize megabytes.
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Listen is a host:port to serve /metrics on; empty disables it
	Listen string `yaml:"listen" json:"listen"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			BaseURL:   "https://labs.google/fx/api/trpc",
		},
		Retry: RetryConfig{
			MaxAttempts:       10,
			BackoffFactor:     1.0,
			RetryableStatuses: []int{429, 500, 502, 503, 504},
			Timeout:           30 * time.Second,
		},
		Crawl: CrawlConfig{
			PageSize:  12,
			PageDelay: 1 * time.Second,
		},
		Download: DownloadConfig{
			Concurrency:    10,
			MilestoneEvery: 10,
		},
		Output: OutputConfig{
			BaseDirectory:  "imagefx_images",
			CheckpointFile: "media_keys_crawl_result.json",
			ImageExtension: "jpg",
			TextExtension:  "txt",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// LoadFromEnv loads configuration from FXARCHIVE_* environment variables.
// Malformed numbers are reported together instead of being ignored.
func (c *Config) LoadFromEnv() error {
	var errs []error

	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(name string, dst *bool) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("ACCOUNT", &c.Session.Account)
	str("COOKIE", &c.Session.Cookie)
	str("USER_AGENT", &c.Session.UserAgent)
	str("BASE_URL", &c.Session.BaseURL)

	integer("MAX_ATTEMPTS", &c.Retry.MaxAttempts)
	if v := os.Getenv(EnvPrefix + "BACKOFF_FACTOR"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sBACKOFF_FACTOR: %w", EnvPrefix, err))
		} else {
			c.Retry.BackoffFactor = f
		}
	}
	if v := os.Getenv(EnvPrefix + "RETRY_STATUSES"); v != "" {
		codes, err := ParseStatusList(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sRETRY_STATUSES: %w", EnvPrefix, err))
		} else {
			c.Retry.RetryableStatuses = codes
		}
	}
	duration("TIMEOUT", &c.Retry.Timeout)
	integer("REQUESTS_PER_MINUTE", &c.Retry.RequestsPerMinute)

	integer("PAGE_SIZE", &c.Crawl.PageSize)
	duration("PAGE_DELAY", &c.Crawl.PageDelay)
	integer("MAX_ITEMS", &c.Crawl.MaxItems)

	integer("CONCURRENCY", &c.Download.Concurrency)
	integer("MILESTONE_EVERY", &c.Download.MilestoneEvery)
	boolean("SKIP_EXISTING", &c.Download.SkipExisting)

	str("OUTPUT_DIR", &c.Output.BaseDirectory)
	str("CHECKPOINT_FILE", &c.Output.CheckpointFile)

	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FILE", &c.Logging.File)
	str("METRICS_ADDR", &c.Metrics.Listen)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".fxarchive.yaml",
		".fxarchive.yml",
	}
	if home != "" {
		locations = append(locations,
			filepath.Join(home, ".config", "fxarchive", "config.yaml"),
			filepath.Join(home, ".config", "fxarchive", "config.yml"),
			filepath.Join(home, ".fxarchive.yaml"),
		)
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// DefaultConfigPath is where `config init` writes.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fxarchive.yaml"
	}
	return filepath.Join(home, ".config", "fxarchive", "config.yaml")
}

// Validate checks if the configuration is valid. Credentials are not checked
// here because they may come from the credential store.
func (c *Config) Validate() error {
	var errs []error

	if c.Session.BaseURL != "" {
		if u, err := url.Parse(c.Session.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid base URL %q", c.Session.BaseURL))
		}
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max attempts must be at least 1"))
	}
	if c.Retry.BackoffFactor < 0 {
		errs = append(errs, errors.New("backoff factor cannot be negative"))
	}
	for _, code := range c.Retry.RetryableStatuses {
		if code < 100 || code > 599 {
			errs = append(errs, fmt.Errorf("invalid retryable status %d", code))
		}
	}
	if c.Retry.Timeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.Retry.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	if c.Crawl.PageSize <= 0 {
		errs = append(errs, errors.New("page size must be positive"))
	}
	if c.Crawl.PageDelay < 0 {
		errs = append(errs, errors.New("page delay cannot be negative"))
	}
	if c.Crawl.MaxItems < 0 {
		errs = append(errs, errors.New("max items cannot be negative"))
	}

	if c.Download.Concurrency <= 0 {
		errs = append(errs, errors.New("concurrency must be positive"))
	}
	if c.Download.Concurrency > 64 {
		errs = append(errs, errors.New("concurrency should not exceed 64"))
	}
	if c.Download.MilestoneEvery < 0 {
		errs = append(errs, errors.New("milestone interval cannot be negative"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.CheckpointFile == "" {
		errs = append(errs, errors.New("checkpoint file is required"))
	}
	if c.Output.ImageExtension == "" || c.Output.TextExtension == "" {
		errs = append(errs, errors.New("image and text extensions are required"))
	} else if strings.TrimPrefix(c.Output.ImageExtension, ".") == strings.TrimPrefix(c.Output.TextExtension, ".") {
		errs = append(errs, errors.New("image and text extensions must differ"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only flags the user actually set should be present in the map.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["account"].(string); ok && v != "" {
		c.Session.Account = v
	}
	if v, ok := flags["cookie"].(string); ok && v != "" {
		c.Session.Cookie = v
	}
	if v, ok := flags["base-url"].(string); ok && v != "" {
		c.Session.BaseURL = v
	}
	if v, ok := flags["max-attempts"].(int); ok {
		c.Retry.MaxAttempts = v
	}
	if v, ok := flags["backoff-factor"].(float64); ok {
		c.Retry.BackoffFactor = v
	}
	if v, ok := flags["timeout"].(time.Duration); ok {
		c.Retry.Timeout = v
	}
	if v, ok := flags["rpm"].(int); ok {
		c.Retry.RequestsPerMinute = v
	}
	if v, ok := flags["max-items"].(int); ok {
		c.Crawl.MaxItems = v
	}
	if v, ok := flags["page-delay"].(time.Duration); ok {
		c.Crawl.PageDelay = v
	}
	if v, ok := flags["concurrency"].(int); ok {
		c.Download.Concurrency = v
	}
	if v, ok := flags["skip-existing"].(bool); ok {
		c.Download.SkipExisting = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["checkpoint"].(string); ok && v != "" {
		c.Output.CheckpointFile = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-file"].(string); ok && v != "" {
		c.Logging.File = v
	}
	if v, ok := flags["metrics-addr"].(string); ok {
		c.Metrics.Listen = v
	}
	if v, ok := flags["retry-statuses"].([]int); ok && len(v) > 0 {
		c.Retry.RetryableStatuses = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are fine
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".fxarchive.env"))
	}

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// ParseStatusList parses "429,500, 503" into status codes.
func ParseStatusList(s string) ([]int, error) {
	var codes []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid status %q", part)
		}
		codes = append(codes, n)
	}
	return codes, nil
}

// parseDuration accepts Go durations ("1.5s") and bare seconds ("2").
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}
