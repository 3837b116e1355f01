// Package config provides configuration management for Fleetlink.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/ini.v1"

	"github.com/fleetlink/fleetlink-int/internal/constants"
)

// Config is the single configuration source for the CLI and all services.
//
// Config file location:
//   - Windows: %USERPROFILE%\.config\fleetlink\apiconfig
//   - Unix: ~/.config/fleetlink/apiconfig
//
// INI format:
//
//	[graph]
//	base_url = https://graph.example.com/v1.0
//	tenant_id = 00000000-0000-0000-0000-000000000000
//	access_token = <bearer-token>
//
//	[proxy]
//	mode = system
//	host = proxy.corp.example.com
//	port = 8080
//	user =
//	password =
//	no_proxy = .internal.example.com
//	warmup = false
//
//	[cache]
//	devices_ttl_seconds = 300
//	applications_ttl_seconds = 300
//	groups_ttl_seconds = 600
//	assignments_ttl_seconds = 180
type Config struct {
	// Graph connection settings
	BaseURL     string `ini:"base_url"`
	TenantID    string `ini:"tenant_id"`
	AccessToken string `ini:"access_token"`

	// Proxy settings (own [proxy] section)
	Proxy ProxyConfig `ini:"-"`

	// Cache TTLs per entity type (own [cache] section)
	Cache CacheConfig `ini:"-"`
}

// ProxyConfig contains outbound proxy settings for locked-down desktops.
type ProxyConfig struct {
	// Mode is one of "", "no-proxy", "system", "basic", "ntlm".
	Mode     string `ini:"mode"`
	Host     string `ini:"host"`
	Port     int    `ini:"port"`
	User     string `ini:"user"`
	Password string `ini:"password"`
	// NoProxy is a comma-separated bypass list (hosts, domains, CIDRs).
	NoProxy string `ini:"no_proxy"`
	// Warmup performs a probe request at client construction so proxy
	// auth failures surface before the first real call.
	Warmup bool `ini:"warmup"`
}

// CacheConfig holds per-entity freshness windows in seconds.
type CacheConfig struct {
	DevicesTTLSeconds      int `ini:"devices_ttl_seconds"`
	ApplicationsTTLSeconds int `ini:"applications_ttl_seconds"`
	GroupsTTLSeconds       int `ini:"groups_ttl_seconds"`
	AssignmentsTTLSeconds  int `ini:"assignments_ttl_seconds"`
}

// Default returns a Config with baked-in defaults applied.
func Default() *Config {
	return &Config{
		BaseURL: constants.DefaultBaseURL,
		Cache: CacheConfig{
			DevicesTTLSeconds:      300,
			ApplicationsTTLSeconds: 300,
			GroupsTTLSeconds:       600,
			AssignmentsTTLSeconds:  180,
		},
	}
}

// Path returns the config file location for the current user.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "fleetlink", "apiconfig"), nil
}

// Load reads the config file, applying defaults for missing keys and
// environment overrides (FLEETLINK_BASE_URL, FLEETLINK_TOKEN) last.
// A missing file is not an error; defaults are returned.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config from an explicit path. Used by tests.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		file, err := ini.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if err := file.Section("graph").MapTo(cfg); err != nil {
			return nil, fmt.Errorf("invalid [graph] section: %w", err)
		}
		if err := file.Section("proxy").MapTo(&cfg.Proxy); err != nil {
			return nil, fmt.Errorf("invalid [proxy] section: %w", err)
		}
		if err := file.Section("cache").MapTo(&cfg.Cache); err != nil {
			return nil, fmt.Errorf("invalid [cache] section: %w", err)
		}
	}

	// Environment overrides win over the file for scripting and CI.
	if v := os.Getenv("FLEETLINK_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("FLEETLINK_TOKEN"); v != "" {
		cfg.AccessToken = v
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = constants.DefaultBaseURL
	}

	return cfg, nil
}

// Save writes the config back to the default path with 0600 permissions
// (the file holds a bearer token).
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to an explicit path. Used by tests.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file := ini.Empty()
	if err := file.Section("graph").ReflectFrom(c); err != nil {
		return fmt.Errorf("failed to encode [graph] section: %w", err)
	}
	if err := file.Section("proxy").ReflectFrom(&c.Proxy); err != nil {
		return fmt.Errorf("failed to encode [proxy] section: %w", err)
	}
	if err := file.Section("cache").ReflectFrom(&c.Cache); err != nil {
		return fmt.Errorf("failed to encode [cache] section: %w", err)
	}

	if err := file.SaveTo(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return os.Chmod(path, 0o600)
}

// TTLFor returns the freshness window for an entity type, falling back to
// the package default for unknown types.
func (c *Config) TTLFor(entityType string) time.Duration {
	secs := 0
	switch entityType {
	case "devices":
		secs = c.Cache.DevicesTTLSeconds
	case "applications":
		secs = c.Cache.ApplicationsTTLSeconds
	case "groups":
		secs = c.Cache.GroupsTTLSeconds
	case "assignments":
		secs = c.Cache.AssignmentsTTLSeconds
	}
	if secs <= 0 {
		return constants.DefaultCacheTTL
	}
	return time.Duration(secs) * time.Second
}
