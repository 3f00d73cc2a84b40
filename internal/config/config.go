package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

type CacheConfig struct {
	Driver        string `yaml:"driver"` // "sqlite" or "memory"
	Path          string `yaml:"path,omitempty"`
	SweepInterval string `yaml:"sweep_interval"`
}

type HubConfig struct {
	HeartbeatInterval string `yaml:"heartbeat_interval"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AIConfig struct {
	Provider string `yaml:"provider"` // "claude" or "openai"
	APIKey   string `yaml:"api_key,omitempty"`
	Model    string `yaml:"model,omitempty"`
}

// MapProvider is one entry of the ordered geocoding provider list.
type MapProvider struct {
	Name    string `yaml:"name"` // "google", "mapbox" or "nominatim"
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
	Enabled bool   `yaml:"enabled"`
}

type GeocodingConfig struct {
	TTL       string        `yaml:"ttl"`
	Extractor bool          `yaml:"extractor"`
	Providers []MapProvider `yaml:"providers"`
}

type Thresholds struct {
	Verified   int `yaml:"verified"`
	Suspicious int `yaml:"suspicious"`
}

type VerificationConfig struct {
	TTL        string     `yaml:"ttl"`
	Thresholds Thresholds `yaml:"thresholds"`
}

type Source struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

type UpdatesConfig struct {
	TTL     string   `yaml:"ttl"`
	Limit   int      `yaml:"limit,omitempty"`
	Sources []Source `yaml:"sources"`
}

// ScoringConfig holds the relevance scorer weights.
type ScoringConfig struct {
	Priority            map[string]float64 `yaml:"priority"`
	Keyword             float64            `yaml:"keyword"`
	Location            float64            `yaml:"location"`
	RecencyBase         float64            `yaml:"recency_base"`
	RecencyDecayPerHour float64            `yaml:"recency_decay_per_hour"`
}

type Config struct {
	Server          ServerConfig       `yaml:"server"`
	Cache           CacheConfig        `yaml:"cache"`
	Hub             HubConfig          `yaml:"hub"`
	Log             LogConfig          `yaml:"log"`
	Simulation      bool               `yaml:"simulation"`
	ProviderTimeout string             `yaml:"provider_timeout"`
	AI              *AIConfig          `yaml:"ai,omitempty"`
	Geocoding       GeocodingConfig    `yaml:"geocoding"`
	Verification    VerificationConfig `yaml:"verification"`
	Updates         UpdatesConfig      `yaml:"updates"`
	Scoring         ScoringConfig      `yaml:"scoring"`
}

// Env holds the settings that may be overridden from the environment.
type Env struct {
	AIKey         string `env:"DRC_AI_KEY"`
	GoogleMapsKey string `env:"DRC_GOOGLE_MAPS_KEY"`
	MapboxToken   string `env:"DRC_MAPBOX_TOKEN"`
	Addr          string `env:"DRC_ADDR"`
	Simulation    *bool  `env:"DRC_SIMULATION"`
	LogLevel      string `env:"DRC_LOG_LEVEL"`
}

// AIEnabled returns true if AI is configured with a valid API key.
func (c *Config) AIEnabled() bool {
	return c.AI != nil && c.AI.APIKey != ""
}

// AIKey returns the resolved API key.
func (c *Config) AIKey() string {
	if c.AI == nil {
		return ""
	}
	return c.AI.APIKey
}

func (c *Config) ShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 10*time.Second)
}

func (c *Config) SweepInterval() time.Duration {
	return parseDuration(c.Cache.SweepInterval, time.Hour)
}

func (c *Config) HeartbeatInterval() time.Duration {
	return parseDuration(c.Hub.HeartbeatInterval, 30*time.Second)
}

func (c *Config) ProviderTimeoutDuration() time.Duration {
	return parseDuration(c.ProviderTimeout, 8*time.Second)
}

func (c *Config) GeocodingTTL() time.Duration {
	return parseDuration(c.Geocoding.TTL, 24*time.Hour)
}

func (c *Config) VerificationTTL() time.Duration {
	return parseDuration(c.Verification.TTL, 24*time.Hour)
}

func (c *Config) UpdatesTTL() time.Duration {
	return parseDuration(c.Updates.TTL, 15*time.Minute)
}

// UpdatesLimit returns how many ranked updates are delivered, defaulting to 20.
func (c *Config) UpdatesLimit() int {
	if c.Updates.Limit <= 0 {
		return 20
	}
	return c.Updates.Limit
}

func (c *Config) EnabledSources() []Source {
	var out []Source
	for _, s := range c.Updates.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) SourceNames() []string {
	var names []string
	for _, s := range c.EnabledSources() {
		names = append(names, s.Name)
	}
	return names
}

// EnabledMapProviders returns the geocoding providers in configured order.
func (c *Config) EnabledMapProviders() []MapProvider {
	var out []MapProvider
	for _, p := range c.Geocoding.Providers {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// ParseDuration accepts Go durations plus an "Nd" day suffix.
func ParseDuration(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "drc", "config.yaml")
}

func DefaultCachePath() string {
	return filepath.Join(xdg.CacheHome, "drc", "cache.db")
}

// CachePath returns the configured sqlite path or the xdg default.
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return DefaultCachePath()
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads the config at path (or the default path), layers it over the
// embedded defaults and applies environment overrides.
func Load(path string) (*Config, error) {
	defaults, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Non-fatal: fall back to embedded defaults
			_ = writeDefaults(path)
			if err := applyEnv(defaults); err != nil {
				return nil, err
			}
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := loadDefaults()
	if err != nil {
		return nil, err
	}
	cfg.Updates.Sources = nil
	cfg.Geocoding.Providers = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	mergeDefaultSources(cfg, defaults)
	if len(cfg.Geocoding.Providers) == 0 {
		cfg.Geocoding.Providers = defaults.Geocoding.Providers
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeDefaultSources refreshes sources that share a name with a default and
// appends defaults the user does not have yet.
func mergeDefaultSources(cfg, defaults *Config) {
	index := make(map[string]int, len(cfg.Updates.Sources))
	for i, s := range cfg.Updates.Sources {
		index[s.Name] = i
	}
	for _, d := range defaults.Updates.Sources {
		if i, ok := index[d.Name]; ok {
			cfg.Updates.Sources[i].URL = d.URL
			cfg.Updates.Sources[i].Type = d.Type
			continue
		}
		cfg.Updates.Sources = append(cfg.Updates.Sources, d)
	}
}

func applyEnv(cfg *Config) error {
	var e Env
	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if e.AIKey != "" {
		if cfg.AI == nil {
			cfg.AI = &AIConfig{Provider: "claude"}
		}
		cfg.AI.APIKey = e.AIKey
	}
	for i := range cfg.Geocoding.Providers {
		p := &cfg.Geocoding.Providers[i]
		switch {
		case p.Name == "google" && e.GoogleMapsKey != "":
			p.APIKey = e.GoogleMapsKey
		case p.Name == "mapbox" && e.MapboxToken != "":
			p.APIKey = e.MapboxToken
		}
	}
	if e.Addr != "" {
		cfg.Server.Addr = e.Addr
	}
	if e.Simulation != nil {
		cfg.Simulation = *e.Simulation
	}
	if e.LogLevel != "" {
		cfg.Log.Level = e.LogLevel
	}
	return nil
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

func validate(cfg *Config) error {
	validTypes := map[string]bool{"rss": true, "atom": true}
	for i, s := range cfg.Updates.Sources {
		if s.Name == "" {
			return fmt.Errorf("source %d: name is required", i)
		}
		if s.URL == "" {
			return fmt.Errorf("source %q: url is required", s.Name)
		}
		u, err := url.Parse(s.URL)
		if err != nil {
			return fmt.Errorf("source %q: invalid url: %w", s.Name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("source %q: url scheme must be http or https, got %q", s.Name, u.Scheme)
		}
		if !validTypes[s.Type] {
			return fmt.Errorf("source %q: unknown type %q (valid: rss, atom)", s.Name, s.Type)
		}
	}

	validMaps := map[string]bool{"google": true, "mapbox": true, "nominatim": true}
	for i, p := range cfg.Geocoding.Providers {
		if !validMaps[p.Name] {
			return fmt.Errorf("geocoding provider %d: unknown name %q (valid: google, mapbox, nominatim)", i, p.Name)
		}
	}

	t := cfg.Verification.Thresholds
	if t.Suspicious < 0 || t.Verified > 100 || t.Suspicious >= t.Verified {
		return fmt.Errorf("verification thresholds must satisfy 0 <= suspicious < verified <= 100, got %d/%d", t.Suspicious, t.Verified)
	}

	switch strings.ToLower(cfg.Cache.Driver) {
	case "", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown cache driver %q (valid: sqlite, memory)", cfg.Cache.Driver)
	}

	if cfg.AI != nil && cfg.AI.Provider != "" && cfg.AI.Provider != "claude" && cfg.AI.Provider != "openai" {
		return fmt.Errorf("unknown AI provider %q (valid: claude, openai)", cfg.AI.Provider)
	}
	return nil
}
