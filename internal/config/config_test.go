package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != defaultServerURL {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.ForegroundInterval != time.Second {
		t.Errorf("ForegroundInterval = %v", cfg.ForegroundInterval)
	}
	if cfg.BackgroundInterval != 2*time.Second {
		t.Errorf("BackgroundInterval = %v", cfg.BackgroundInterval)
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != defaultServerURL {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vestnik.toml")
	body := `
server = "http://chat.example:9000"
prefs_db = "/var/lib/vestnik/prefs.db"
poll_interval = "500ms"
sidebar_interval = "3s"
request_timeout = "10s"
max_upload_bytes = 1048576
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != "http://chat.example:9000" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.PrefsDB != "/var/lib/vestnik/prefs.db" {
		t.Errorf("PrefsDB = %q", cfg.PrefsDB)
	}
	if cfg.ForegroundInterval != 500*time.Millisecond {
		t.Errorf("ForegroundInterval = %v", cfg.ForegroundInterval)
	}
	if cfg.BackgroundInterval != 3*time.Second {
		t.Errorf("BackgroundInterval = %v", cfg.BackgroundInterval)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.MaxUploadBytes != 1<<20 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vestnik.toml")
	if err := os.WriteFile(path, []byte(`server = "http://from-file:1"`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VESTNIK_SERVER", "http://from-env:2")
	t.Setenv("VESTNIK_POLL_INTERVAL", "250ms")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != "http://from-env:2" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.ForegroundInterval != 250*time.Millisecond {
		t.Errorf("ForegroundInterval = %v", cfg.ForegroundInterval)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vestnik.toml")
	if err := os.WriteFile(path, []byte(`poll_interval = "soon"`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unparseable duration")
	}

	t.Setenv("VESTNIK_SIDEBAR_INTERVAL", "whenever")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unparseable env duration")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"empty server", func(c *Config) { c.ServerURL = "  " }},
		{"zero poll interval", func(c *Config) { c.ForegroundInterval = 0 }},
		{"negative sidebar interval", func(c *Config) { c.BackgroundInterval = -time.Second }},
		{"zero upload cap", func(c *Config) { c.MaxUploadBytes = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tc.mut(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
