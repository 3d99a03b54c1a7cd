// Package config defines the runtime configuration for a telemlink
// endpoint and provides loading from YAML files and the environment.
package config

import (
	"fmt"
	"time"
)

// Config holds every tuneable for a single link endpoint.
type Config struct {
	// ── Link ─────────────────────────────────────────────────────────
	Host           string        `yaml:"host"`            // remote host (client mode)
	Port           int           `yaml:"port"`            // remote or listen port
	Server         bool          `yaml:"server"`          // listen instead of dial
	ConnectTimeout time.Duration `yaml:"connect_timeout"` // bounded connect wait

	// ── Logging ──────────────────────────────────────────────────────
	Logging LoggingConfig `yaml:"logging"`

	// ── Output (CLI only, not loaded from files) ─────────────────────
	Verbose int  `yaml:"-"`
	HexDump bool `yaml:"-"`
	Raw     bool `yaml:"-"`
}

// LoggingConfig controls log level, format, and destination.
type LoggingConfig struct {
	Level     string `yaml:"level"`       // trace|debug|info|warn|error
	Format    string `yaml:"format"`      // text|json
	Output    string `yaml:"output"`      // console|file
	FilePath  string `yaml:"file_path"`   // used when Output == "file"
	MaxSizeMB int    `yaml:"max_size_mb"` // rotation threshold
	MaxAge    int    `yaml:"max_age"`     // days to retain rotated files
	Compress  bool   `yaml:"compress"`    // gzip rotated files
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", c.Port)
	}
	if !c.Server && c.Host == "" {
		return fmt.Errorf("host is required in client mode")
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive, got %v", c.ConnectTimeout)
	}
	if c.HexDump && c.Raw {
		return fmt.Errorf("hex dump and raw output are mutually exclusive")
	}
	if c.Logging.Output == "file" && c.Logging.FilePath == "" {
		return fmt.Errorf("logging.file_path is required with file output")
	}
	return nil
}
