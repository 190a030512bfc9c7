// Package config loads kittybg configuration from file and environment.
//
// Precedence (highest to lowest):
//  1. Environment variables (KITTYBG_*)
//  2. Config file
//  3. Built-in defaults
//
// Config file search order:
//  1. .kittybg.yaml in current directory
//  2. ~/.config/kittybg/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all kittybg configuration.
type Config struct {
	// Discovery settings
	Signature      string `yaml:"signature"`       // substring identifying the terminal process
	SelfName       string `yaml:"self_name"`       // own binary name, excluded from signature matching
	SocketTemplate string `yaml:"socket_template"` // socket address template, %d = kitty PID
	WalkDepth      int    `yaml:"walk_depth"`      // max ancestor hops during discovery
	CacheTTL       string `yaml:"cache_ttl"`       // Go duration string, e.g. "10m"

	// Render settings
	BackgroundColor string `yaml:"background_color"` // canvas fill, hex

	// OTEL
	OTELEndpoint string `yaml:"otel_endpoint"`
	OTELHeaders  string `yaml:"otel_headers"` // Comma-separated key=value pairs

	// Parsed durations (not from YAML, set after loading)
	CacheTTLDuration time.Duration `yaml:"-"`

	// ConfigFile is the path to the config file that was loaded (empty if none).
	ConfigFile string `yaml:"-"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		Signature:       "kitty",
		SelfName:        "kittybg",
		SocketTemplate:  "unix:/tmp/kitty-%d",
		WalkDepth:       20,
		CacheTTL:        "600s",
		BackgroundColor: "#141414",
	}
}

// Load reads configuration from file and environment variables.
// Environment variables always override file values.
func Load() (*Config, error) {
	cfg := Defaults()

	// Try to load config file
	if path, data, err := findConfigFile(); err == nil {
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		cfg.ConfigFile = path
		mergeFile(cfg, &fileCfg)
	}

	// Environment variables override everything
	mergeEnv(cfg)

	var err error
	cfg.CacheTTLDuration, err = time.ParseDuration(cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid cache TTL %q: %w", cfg.CacheTTL, err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file and returns its path and contents.
func findConfigFile() (string, []byte, error) {
	// 1. Current directory
	if data, err := os.ReadFile(".kittybg.yaml"); err == nil {
		return ".kittybg.yaml", data, nil
	}

	// 2. XDG config dir / ~/.config
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", "kittybg", "config.yaml")
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}

	return "", nil, fmt.Errorf("no config file found")
}

// mergeFile applies non-zero file values onto cfg.
func mergeFile(cfg *Config, file *Config) {
	if file.Signature != "" {
		cfg.Signature = file.Signature
	}
	if file.SelfName != "" {
		cfg.SelfName = file.SelfName
	}
	if file.SocketTemplate != "" {
		cfg.SocketTemplate = file.SocketTemplate
	}
	if file.WalkDepth > 0 {
		cfg.WalkDepth = file.WalkDepth
	}
	if file.CacheTTL != "" {
		cfg.CacheTTL = file.CacheTTL
	}
	if file.BackgroundColor != "" {
		cfg.BackgroundColor = file.BackgroundColor
	}
	if file.OTELEndpoint != "" {
		cfg.OTELEndpoint = file.OTELEndpoint
	}
	if file.OTELHeaders != "" {
		cfg.OTELHeaders = file.OTELHeaders
	}
}

// mergeEnv applies environment variables onto cfg. Env always wins.
func mergeEnv(cfg *Config) {
	if v := os.Getenv("KITTYBG_SIGNATURE"); v != "" {
		cfg.Signature = v
	}
	if v := os.Getenv("KITTYBG_SELF_NAME"); v != "" {
		cfg.SelfName = v
	}
	if v := os.Getenv("KITTYBG_SOCKET_TEMPLATE"); v != "" {
		cfg.SocketTemplate = v
	}
	if v := os.Getenv("KITTYBG_WALK_DEPTH"); v != "" {
		if depth, err := strconv.Atoi(v); err == nil && depth > 0 {
			cfg.WalkDepth = depth
		}
	}
	if v := os.Getenv("KITTYBG_CACHE_TTL"); v != "" {
		cfg.CacheTTL = v
	}
	if v := os.Getenv("KITTYBG_BACKGROUND_COLOR"); v != "" {
		cfg.BackgroundColor = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTELEndpoint = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); v != "" {
		cfg.OTELHeaders = v
	}
}
