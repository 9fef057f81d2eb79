// Package config resolves the creatorscope runtime configuration.
// File values come first, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved configuration.
type Config struct {
	APIURL      string
	Token       string
	SessionDB   string
	CacheDir    string
	LogLevel    slog.Level
	Timeout     time.Duration
	CacheTTL    time.Duration
	NoticeTTL   time.Duration
	RateLimit   float64
	RateBurst   int
	OAuth       OAuth
	DefaultPlat string
}

// OAuth configures the Instagram Graph connection flow.
type OAuth struct {
	ClientID    string
	RedirectURL string
	Scopes      []string
}

// configFile mirrors the YAML schema.
type configFile struct {
	API struct {
		URL       string  `yaml:"url"`
		Token     string  `yaml:"token"`
		Timeout   string  `yaml:"timeout"`
		RateLimit float64 `yaml:"rate_limit"`
		RateBurst int     `yaml:"rate_burst"`
	} `yaml:"api"`
	Cache struct {
		TTL string `yaml:"ttl"`
		Dir string `yaml:"dir"`
	} `yaml:"cache"`
	Session struct {
		DB string `yaml:"db"`
	} `yaml:"session"`
	OAuth struct {
		ClientID    string   `yaml:"client_id"`
		RedirectURL string   `yaml:"redirect_url"`
		Scopes      []string `yaml:"scopes"`
	} `yaml:"oauth"`
	UI struct {
		NoticeTTL       string `yaml:"notice_ttl"`
		DefaultPlatform string `yaml:"default_platform"`
	} `yaml:"ui"`
	LogLevel string `yaml:"log_level"`
}

// Environment variables that override file values.
const (
	EnvAPIURL      = "CREATORSCOPE_API_URL"
	EnvToken       = "CREATORSCOPE_TOKEN"
	EnvTimeout     = "CREATORSCOPE_TIMEOUT"
	EnvCacheTTL    = "CREATORSCOPE_CACHE_TTL"
	EnvSessionDB   = "CREATORSCOPE_SESSION_DB"
	EnvClientID    = "CREATORSCOPE_OAUTH_CLIENT_ID"
	EnvRedirectURL = "CREATORSCOPE_OAUTH_REDIRECT_URL"
	EnvLogLevel    = "CREATORSCOPE_LOG_LEVEL"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIURL:    "http://127.0.0.1:8000/api/v1",
		SessionDB: filepath.Join(configDir(), "session.db"),
		LogLevel:  slog.LevelInfo,
		Timeout:   30 * time.Second,
		CacheTTL:  5 * time.Minute,
		NoticeTTL: 5 * time.Second,
		RateLimit: 5,
		RateBurst: 5,
		OAuth: OAuth{
			RedirectURL: "http://127.0.0.1:8765/auth/callback",
			Scopes:      []string{"instagram_basic", "pages_show_list", "instagram_manage_insights"},
		},
		DefaultPlat: "youtube",
	}
}

// DefaultPath returns the config file location used when none is given.
func DefaultPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "creatorscope")
}

// Load reads the file at path, if any, then applies environment overrides.
// A missing file is not an error; an explicit path that cannot be read is.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		var f configFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		if err := apply(&cfg, &f); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func apply(cfg *Config, f *configFile) error {
	cfg.APIURL = orDefault(f.API.URL, cfg.APIURL)
	cfg.Token = orDefault(f.API.Token, cfg.Token)
	cfg.SessionDB = orDefault(f.Session.DB, cfg.SessionDB)
	cfg.CacheDir = orDefault(f.Cache.Dir, cfg.CacheDir)
	cfg.OAuth.ClientID = orDefault(f.OAuth.ClientID, cfg.OAuth.ClientID)
	cfg.OAuth.RedirectURL = orDefault(f.OAuth.RedirectURL, cfg.OAuth.RedirectURL)
	cfg.DefaultPlat = orDefault(f.UI.DefaultPlatform, cfg.DefaultPlat)
	if len(f.OAuth.Scopes) > 0 {
		cfg.OAuth.Scopes = f.OAuth.Scopes
	}
	if f.API.RateLimit > 0 {
		cfg.RateLimit = f.API.RateLimit
	}
	if f.API.RateBurst > 0 {
		cfg.RateBurst = f.API.RateBurst
	}

	var err error
	if cfg.Timeout, err = duration("api.timeout", f.API.Timeout, cfg.Timeout); err != nil {
		return err
	}
	if cfg.CacheTTL, err = duration("cache.ttl", f.Cache.TTL, cfg.CacheTTL); err != nil {
		return err
	}
	if cfg.NoticeTTL, err = duration("ui.notice_ttl", f.UI.NoticeTTL, cfg.NoticeTTL); err != nil {
		return err
	}
	if f.LogLevel != "" {
		if cfg.LogLevel, err = level(f.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.APIURL = envOrDefault(EnvAPIURL, cfg.APIURL)
	cfg.Token = envOrDefault(EnvToken, cfg.Token)
	cfg.SessionDB = envOrDefault(EnvSessionDB, cfg.SessionDB)
	cfg.OAuth.ClientID = envOrDefault(EnvClientID, cfg.OAuth.ClientID)
	cfg.OAuth.RedirectURL = envOrDefault(EnvRedirectURL, cfg.OAuth.RedirectURL)

	var err error
	if cfg.Timeout, err = duration(EnvTimeout, os.Getenv(EnvTimeout), cfg.Timeout); err != nil {
		return err
	}
	if cfg.CacheTTL, err = duration(EnvCacheTTL, os.Getenv(EnvCacheTTL), cfg.CacheTTL); err != nil {
		return err
	}
	if raw := os.Getenv(EnvLogLevel); raw != "" {
		if cfg.LogLevel, err = level(raw); err != nil {
			return err
		}
	}
	return nil
}

// Validate reports configuration that cannot work.
func (c Config) Validate() error {
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("api url must be http(s): %q", c.APIURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache ttl must not be negative, got %s", c.CacheTTL)
	}
	return nil
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}

func envOrDefault(name, fallback string) string {
	return orDefault(os.Getenv(name), fallback)
}

// duration parses a Go duration, or a bare number of seconds.
func duration(name, raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", name, raw)
	}
	return d, nil
}

func level(raw string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", raw)
	}
	return l, nil
}
