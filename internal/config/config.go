package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	ServerURL          string
	PrefsDB            string
	ForegroundInterval time.Duration
	BackgroundInterval time.Duration
	RequestTimeout     time.Duration
	MaxUploadBytes     int64
}

const (
	defaultServerURL          = "http://localhost:8765"
	defaultPrefsDB            = "vestnik.db"
	defaultForegroundInterval = time.Second
	defaultBackgroundInterval = 2 * time.Second
	defaultRequestTimeout     = 5 * time.Second
	defaultMaxUploadBytes     = 10 << 20
)

// Load reads an optional TOML config file and applies environment overrides.
// A missing file is not an error; defaults cover every field.
func Load(path string) (*Config, error) {
	cfg := &Config{
		ServerURL:          defaultServerURL,
		PrefsDB:            defaultPrefsDB,
		ForegroundInterval: defaultForegroundInterval,
		BackgroundInterval: defaultBackgroundInterval,
		RequestTimeout:     defaultRequestTimeout,
		MaxUploadBytes:     defaultMaxUploadBytes,
	}

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.ServerURL = getEnv("VESTNIK_SERVER", cfg.ServerURL)
	cfg.PrefsDB = getEnv("VESTNIK_DB", cfg.PrefsDB)

	if v, ok := os.LookupEnv("VESTNIK_POLL_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("VESTNIK_POLL_INTERVAL: %w", err)
		}
		cfg.ForegroundInterval = d
	}
	if v, ok := os.LookupEnv("VESTNIK_SIDEBAR_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("VESTNIK_SIDEBAR_INTERVAL: %w", err)
		}
		cfg.BackgroundInterval = d
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open config: %w", err)
	}

	var raw struct {
		Server          string `toml:"server"`
		PrefsDB         string `toml:"prefs_db"`
		PollInterval    string `toml:"poll_interval"`
		SidebarInterval string `toml:"sidebar_interval"`
		RequestTimeout  string `toml:"request_timeout"`
		MaxUploadBytes  int64  `toml:"max_upload_bytes"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	if s := strings.TrimSpace(raw.Server); s != "" {
		c.ServerURL = s
	}
	if s := strings.TrimSpace(raw.PrefsDB); s != "" {
		c.PrefsDB = s
	}
	if raw.MaxUploadBytes > 0 {
		c.MaxUploadBytes = raw.MaxUploadBytes
	}
	for _, pair := range []struct {
		value string
		dst   *time.Duration
	}{
		{raw.PollInterval, &c.ForegroundInterval},
		{raw.SidebarInterval, &c.BackgroundInterval},
		{raw.RequestTimeout, &c.RequestTimeout},
	} {
		if strings.TrimSpace(pair.value) == "" {
			continue
		}
		d, err := time.ParseDuration(pair.value)
		if err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
		*pair.dst = d
	}

	return nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.ServerURL) == "" {
		return fmt.Errorf("server URL is required")
	}
	if c.ForegroundInterval <= 0 {
		return fmt.Errorf("poll interval must be greater than 0")
	}
	if c.BackgroundInterval <= 0 {
		return fmt.Errorf("sidebar interval must be greater than 0")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be greater than 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
