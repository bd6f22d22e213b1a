// Package config loads the hidbridge configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable that overrides the config path.
const EnvPath = "HIDBRIDGE_CONFIG"

// Config is the on-disk configuration. Command-line flags take precedence
// over every field.
type Config struct {
	Backend  string           `yaml:"backend"`
	Format   string           `yaml:"format"`
	Log      LogConfig        `yaml:"log"`
	Monitor  MonitorConfig    `yaml:"monitor"`
	Matching []map[string]any `yaml:"matching,omitempty"`
	Server   ServerConfig     `yaml:"server"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MonitorConfig holds defaults for the monitor command.
type MonitorConfig struct {
	// Mode is "runloop" or "queue".
	Mode string `yaml:"mode"`
	// ReportSize is the input report buffer size; 0 uses MaxInputReportSize.
	ReportSize int  `yaml:"report_size"`
	Timestamps bool `yaml:"timestamps"`
}

// ServerConfig holds defaults for the MCP server.
type ServerConfig struct {
	Transport  string `yaml:"transport"`
	Port       int    `yaml:"port"`
	CacheTTLMs int    `yaml:"cache_ttl_ms"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend: "auto",
		Format:  "",
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Monitor: MonitorConfig{
			Mode: "runloop",
		},
		Server: ServerConfig{
			Transport:  "stdio",
			Port:       8080,
			CacheTTLMs: 500,
		},
	}
}

// DefaultPath returns $HIDBRIDGE_CONFIG or ~/.config/hidbridge/config.yaml.
func DefaultPath() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "hidbridge", "config.yaml")
}

// Load reads path over the defaults. A missing file is not an error; the
// defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidationError is a single invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors collects every invalid field.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, v := range e {
		msgs = append(msgs, v.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks enumerated fields and ranges.
func (c *Config) Validate() error {
	var errs ValidationErrors
	if !oneOf(c.Backend, "auto", "native", "sim") {
		errs = append(errs, ValidationError{"backend", fmt.Sprintf("unsupported backend %q (use auto, native, or sim)", c.Backend)})
	}
	if !oneOf(c.Format, "", "yaml", "json") {
		errs = append(errs, ValidationError{"format", fmt.Sprintf("unsupported format %q (use yaml or json)", c.Format)})
	}
	if !oneOf(strings.ToLower(c.Log.Level), "", "debug", "info", "warn", "warning", "error") {
		errs = append(errs, ValidationError{"log.level", fmt.Sprintf("unknown level %q", c.Log.Level)})
	}
	if !oneOf(c.Log.Format, "", "text", "json") {
		errs = append(errs, ValidationError{"log.format", fmt.Sprintf("unknown format %q", c.Log.Format)})
	}
	if !oneOf(c.Monitor.Mode, "runloop", "queue") {
		errs = append(errs, ValidationError{"monitor.mode", fmt.Sprintf("unknown mode %q (use runloop or queue)", c.Monitor.Mode)})
	}
	if c.Monitor.ReportSize < 0 {
		errs = append(errs, ValidationError{"monitor.report_size", "must not be negative"})
	}
	if !oneOf(c.Server.Transport, "stdio", "streamable-http") {
		errs = append(errs, ValidationError{"server.transport", fmt.Sprintf("unsupported transport %q", c.Server.Transport)})
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{"server.port", fmt.Sprintf("out of range: %d", c.Server.Port)})
	}
	if c.Server.CacheTTLMs < 0 {
		errs = append(errs, ValidationError{"server.cache_ttl_ms", "must not be negative"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
