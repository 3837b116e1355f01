package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fleetlink/fleetlink-int/internal/constants"
)

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("FLEETLINK_BASE_URL", "")
	t.Setenv("FLEETLINK_TOKEN", "")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "apiconfig"))
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}

	if cfg.BaseURL != constants.DefaultBaseURL {
		t.Errorf("BaseURL = %q, want default", cfg.BaseURL)
	}
	if cfg.Cache.GroupsTTLSeconds != 600 {
		t.Errorf("GroupsTTLSeconds = %d, want 600", cfg.Cache.GroupsTTLSeconds)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("FLEETLINK_BASE_URL", "")
	t.Setenv("FLEETLINK_TOKEN", "")

	path := filepath.Join(t.TempDir(), "apiconfig")

	cfg := Default()
	cfg.BaseURL = "https://graph.example.org/beta"
	cfg.TenantID = "11111111-2222-3333-4444-555555555555"
	cfg.AccessToken = "secret-token"
	cfg.Proxy.Mode = "ntlm"
	cfg.Proxy.Host = "proxy.corp.example.com"
	cfg.Proxy.Port = 8080
	cfg.Proxy.NoProxy = ".internal.example.com"
	cfg.Cache.DevicesTTLSeconds = 120

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() failed: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}

	if loaded.BaseURL != cfg.BaseURL {
		t.Errorf("BaseURL = %q, want %q", loaded.BaseURL, cfg.BaseURL)
	}
	if loaded.TenantID != cfg.TenantID {
		t.Errorf("TenantID = %q, want %q", loaded.TenantID, cfg.TenantID)
	}
	if loaded.AccessToken != cfg.AccessToken {
		t.Errorf("AccessToken round trip failed")
	}
	if loaded.Proxy.Mode != "ntlm" || loaded.Proxy.Host != cfg.Proxy.Host || loaded.Proxy.Port != 8080 {
		t.Errorf("proxy section round trip failed: %+v", loaded.Proxy)
	}
	if loaded.Cache.DevicesTTLSeconds != 120 {
		t.Errorf("DevicesTTLSeconds = %d, want 120", loaded.Cache.DevicesTTLSeconds)
	}
}

func TestSaveToRestrictsPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apiconfig")
	cfg := Default()
	cfg.AccessToken = "secret"

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config file permissions = %o, want 600", perm)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apiconfig")
	cfg := Default()
	cfg.BaseURL = "https://from-file.example.com/v1.0"
	cfg.AccessToken = "file-token"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() failed: %v", err)
	}

	t.Setenv("FLEETLINK_BASE_URL", "https://from-env.example.com/v1.0")
	t.Setenv("FLEETLINK_TOKEN", "env-token")

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}
	if loaded.BaseURL != "https://from-env.example.com/v1.0" {
		t.Errorf("BaseURL = %q, want the environment override", loaded.BaseURL)
	}
	if loaded.AccessToken != "env-token" {
		t.Errorf("AccessToken = %q, want the environment override", loaded.AccessToken)
	}
}

func TestTTLFor(t *testing.T) {
	cfg := Default()
	cfg.Cache.AssignmentsTTLSeconds = 45

	if got := cfg.TTLFor("assignments"); got != 45*time.Second {
		t.Errorf("TTLFor(assignments) = %v, want 45s", got)
	}
	if got := cfg.TTLFor("groups"); got != 600*time.Second {
		t.Errorf("TTLFor(groups) = %v, want 600s", got)
	}
	if got := cfg.TTLFor("unknown-entity"); got != constants.DefaultCacheTTL {
		t.Errorf("TTLFor(unknown) = %v, want the package default", got)
	}
}
