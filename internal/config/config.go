package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "pdfserver.json"

	// DefaultAddress is the default listen address.
	DefaultAddress = ":5000"

	// DefaultBaseURL is the externally visible URL prefixed to page
	// references handed to clients.
	DefaultBaseURL = "http://localhost:5000"

	// DefaultPDFDir is the directory scanned for documents.
	DefaultPDFDir = "pdfs"

	// DefaultPagesDir is the temporary-pages root for rendered bitmaps.
	DefaultPagesDir = "temp_pages"

	// DefaultIdleTimeout is how long a session may stay idle before the
	// cleanup sweep removes it.
	DefaultIdleTimeout = 30 * time.Minute

	// DefaultCleanupInterval is how often the cleanup sweep runs.
	DefaultCleanupInterval = 5 * time.Minute
)

// Config is the complete pdfserver.json configuration.
type Config struct {
	// Address is the listen address (host:port).
	Address string `json:"address,omitempty"`

	// BaseURL is the externally visible base URL for page references.
	BaseURL string `json:"baseUrl,omitempty"`

	// PDFDir is the directory containing the served documents.
	PDFDir string `json:"pdfDir,omitempty"`

	// PagesDir is the temporary-pages root (disk store backend).
	PagesDir string `json:"pagesDir,omitempty"`

	// IdleTimeout is the session idle expiry (e.g. "30m").
	IdleTimeout Duration `json:"idleTimeout,omitempty"`

	// CleanupInterval is the sweep period (e.g. "5m").
	CleanupInterval Duration `json:"cleanupInterval,omitempty"`

	// Store selects and configures the page store backend.
	Store StoreConfig `json:"store,omitempty"`
}

// StoreConfig selects the page store backend.
type StoreConfig struct {
	// Backend is "disk" (default) or "s3".
	Backend string `json:"backend,omitempty"`

	// S3 configures the S3 backend. Ignored for disk.
	S3 S3Config `json:"s3,omitempty"`
}

// S3Config configures the S3 page store.
type S3Config struct {
	Bucket string `json:"bucket,omitempty"`
	Prefix string `json:"prefix,omitempty"`
	Region string `json:"region,omitempty"`
}

// Duration is a time.Duration that marshals as a string like "30m".
type Duration time.Duration

// UnmarshalJSON parses either a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", value, err)
		}
		*d = Duration(parsed)
		return nil
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	default:
		return fmt.Errorf("config: invalid duration %v", v)
	}
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Address:         DefaultAddress,
		BaseURL:         DefaultBaseURL,
		PDFDir:          DefaultPDFDir,
		PagesDir:        DefaultPagesDir,
		IdleTimeout:     Duration(DefaultIdleTimeout),
		CleanupInterval: Duration(DefaultCleanupInterval),
		Store:           StoreConfig{Backend: "disk"},
	}
}

// Load reads ConfigFileName from the working directory, falling back to
// defaults when the file is absent. The PORT environment variable, when
// set, overrides the configured address (matching container platforms).
func Load() (*Config, error) {
	cfg, err := LoadFrom(ConfigFileName)
	if err != nil {
		return nil, err
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Address = ":" + port
	}
	return cfg, nil
}

// LoadFrom reads configuration from given path. A missing file yields the
// defaults; a present but invalid file is an error.
func LoadFrom(path string) (*Config, error) {
	cfg := New()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills in zero-valued fields after parsing.
func (c *Config) applyDefaults() {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.PDFDir == "" {
		c.PDFDir = DefaultPDFDir
	}
	if c.PagesDir == "" {
		c.PagesDir = DefaultPagesDir
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = Duration(DefaultIdleTimeout)
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = Duration(DefaultCleanupInterval)
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "disk"
	}
}

// Warnings returns human-readable notes about suspicious configuration.
// The server starts anyway; these are logged at startup.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.Store.Backend != "disk" && c.Store.Backend != "s3" {
		warnings = append(warnings,
			fmt.Sprintf("unknown store backend %q, expected disk or s3", c.Store.Backend))
	}
	if c.Store.Backend == "s3" && c.Store.S3.Bucket == "" {
		warnings = append(warnings, "store backend is s3 but no bucket is configured")
	}
	if c.IdleTimeout.Std() < c.CleanupInterval.Std() {
		warnings = append(warnings,
			"idleTimeout is shorter than cleanupInterval; sessions may outlive their timeout by a full sweep period")
	}
	return warnings
}
