package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadDefaults()
	if err != nil {
		t.Fatalf("loadDefaults: %v", err)
	}
	if len(cfg.Updates.Sources) == 0 {
		t.Error("expected at least one default source")
	}
	if len(cfg.Geocoding.Providers) == 0 {
		t.Error("expected default geocoding providers")
	}
	if cfg.Simulation {
		t.Error("expected simulation mode off by default")
	}
	if err := validate(cfg); err != nil {
		t.Errorf("embedded defaults should validate: %v", err)
	}
}

func TestDefaultThresholdsAndWeights(t *testing.T) {
	cfg, err := loadDefaults()
	if err != nil {
		t.Fatalf("loadDefaults: %v", err)
	}
	if cfg.Verification.Thresholds.Verified != 70 || cfg.Verification.Thresholds.Suspicious != 40 {
		t.Errorf("unexpected thresholds: %+v", cfg.Verification.Thresholds)
	}
	if cfg.Scoring.Priority["urgent"] <= cfg.Scoring.Priority["low"] {
		t.Errorf("urgent weight should exceed low: %v", cfg.Scoring.Priority)
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := &Config{}
	if got := cfg.SweepInterval(); got != time.Hour {
		t.Errorf("expected 1h default sweep, got %v", got)
	}
	if got := cfg.HeartbeatInterval(); got != 30*time.Second {
		t.Errorf("expected 30s default heartbeat, got %v", got)
	}
	if got := cfg.ProviderTimeoutDuration(); got != 8*time.Second {
		t.Errorf("expected 8s default provider timeout, got %v", got)
	}

	cfg.Geocoding.TTL = "2d"
	if got := cfg.GeocodingTTL(); got != 48*time.Hour {
		t.Errorf("expected 48h geocoding ttl, got %v", got)
	}
	cfg.Updates.TTL = "invalid"
	if got := cfg.UpdatesTTL(); got != 15*time.Minute {
		t.Errorf("expected 15m default for invalid ttl, got %v", got)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
		err   bool
	}{
		{"7d", 7 * 24 * time.Hour, false},
		{"24h", 24 * time.Hour, false},
		{"30m", 30 * time.Minute, false},
		{"invalid", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.input)
		if tt.err {
			if err == nil {
				t.Errorf("ParseDuration(%q): expected error, got %v", tt.input, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseDuration(%q) = %v, %v; want %v", tt.input, got, err, tt.want)
		}
	}
}

func TestUpdatesLimit(t *testing.T) {
	cfg := &Config{}
	if got := cfg.UpdatesLimit(); got != 20 {
		t.Errorf("expected default limit 20, got %d", got)
	}
	cfg.Updates.Limit = 5
	if got := cfg.UpdatesLimit(); got != 5 {
		t.Errorf("expected limit 5, got %d", got)
	}
}

func TestEnabledSources(t *testing.T) {
	cfg := &Config{
		Updates: UpdatesConfig{Sources: []Source{
			{Name: "A", Enabled: true},
			{Name: "B", Enabled: false},
			{Name: "C", Enabled: true},
		}},
	}
	enabled := cfg.EnabledSources()
	if len(enabled) != 2 {
		t.Fatalf("expected 2 enabled sources, got %d", len(enabled))
	}
	if enabled[0].Name != "A" || enabled[1].Name != "C" {
		t.Errorf("unexpected enabled sources: %v", enabled)
	}
	names := cfg.SourceNames()
	if len(names) != 2 || names[1] != "C" {
		t.Errorf("unexpected names: %v", names)
	}
}

func TestEnabledMapProvidersKeepsOrder(t *testing.T) {
	cfg := &Config{Geocoding: GeocodingConfig{Providers: []MapProvider{
		{Name: "google", Enabled: false},
		{Name: "mapbox", Enabled: true},
		{Name: "nominatim", Enabled: true},
	}}}
	got := cfg.EnabledMapProviders()
	if len(got) != 2 || got[0].Name != "mapbox" || got[1].Name != "nominatim" {
		t.Errorf("unexpected providers: %+v", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := `simulation: true
updates:
  limit: 7
  sources:
    - name: Local
      type: rss
      url: https://example.com/feed
      enabled: true
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Simulation {
		t.Error("expected simulation from file")
	}
	if cfg.UpdatesLimit() != 7 {
		t.Errorf("expected limit 7, got %d", cfg.UpdatesLimit())
	}
	if cfg.Updates.Sources[0].Name != "Local" {
		t.Errorf("expected first source Local, got %s", cfg.Updates.Sources[0].Name)
	}
	if len(cfg.Updates.Sources) <= 1 {
		t.Errorf("expected default sources to be merged, got %d total", len(cfg.Updates.Sources))
	}
	// Unset keys keep their defaults
	if cfg.Verification.Thresholds.Verified != 70 {
		t.Errorf("expected default thresholds, got %+v", cfg.Verification.Thresholds)
	}
	if len(cfg.Geocoding.Providers) == 0 {
		t.Error("expected default geocoding providers")
	}
}

func TestLoadNonexistentFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sub", "config.yaml")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Updates.Sources) == 0 {
		t.Error("expected default sources when config doesn't exist")
	}
	if _, err := os.Stat(cfgPath); err != nil {
		t.Errorf("expected defaults written to %s: %v", cfgPath, err)
	}
}

func TestLoadAppliesEnv(t *testing.T) {
	t.Setenv("DRC_AI_KEY", "sk-test")
	t.Setenv("DRC_MAPBOX_TOKEN", "pk-test")
	t.Setenv("DRC_ADDR", ":9999")
	t.Setenv("DRC_SIMULATION", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.AIEnabled() || cfg.AIKey() != "sk-test" {
		t.Errorf("expected AI key from env, got %q", cfg.AIKey())
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("expected addr from env, got %q", cfg.Server.Addr)
	}
	if !cfg.Simulation {
		t.Error("expected simulation from env")
	}
	for _, p := range cfg.Geocoding.Providers {
		if p.Name == "mapbox" && p.APIKey != "pk-test" {
			t.Errorf("expected mapbox token from env, got %q", p.APIKey)
		}
	}
}

func TestMergeDefaultSources(t *testing.T) {
	cfg := &Config{Updates: UpdatesConfig{Sources: []Source{
		{Name: "Existing", Type: "rss", URL: "https://example.com/feed", Enabled: true},
		{Name: "Shared", Type: "rss", URL: "https://old.com/feed", Enabled: true},
	}}}
	defaults := &Config{Updates: UpdatesConfig{Sources: []Source{
		{Name: "Shared", Type: "atom", URL: "https://new.com/feed", Enabled: true},
		{Name: "NewSource", Type: "rss", URL: "https://new-source.com/feed", Enabled: true},
	}}}
	mergeDefaultSources(cfg, defaults)

	if len(cfg.Updates.Sources) != 3 {
		t.Fatalf("expected 3 sources after merge, got %d", len(cfg.Updates.Sources))
	}
	if cfg.Updates.Sources[1].URL != "https://new.com/feed" || cfg.Updates.Sources[1].Type != "atom" {
		t.Errorf("expected Shared updated, got %+v", cfg.Updates.Sources[1])
	}
	if cfg.Updates.Sources[2].Name != "NewSource" {
		t.Errorf("expected NewSource appended, got %s", cfg.Updates.Sources[2].Name)
	}
}

func validBase() *Config {
	return &Config{Verification: VerificationConfig{Thresholds: Thresholds{Verified: 70, Suspicious: 40}}}
}

func TestValidateSources(t *testing.T) {
	tests := []struct {
		name   string
		source Source
		ok     bool
	}{
		{"missing name", Source{Type: "rss", URL: "https://example.com"}, false},
		{"missing url", Source{Name: "Test", Type: "rss"}, false},
		{"invalid type", Source{Name: "Test", Type: "json", URL: "https://example.com"}, false},
		{"file scheme", Source{Name: "Test", Type: "rss", URL: "file:///etc/passwd"}, false},
		{"https", Source{Name: "Test", Type: "rss", URL: "https://example.com/feed"}, true},
		{"http atom", Source{Name: "Test", Type: "atom", URL: "http://example.com/feed"}, true},
	}
	for _, tt := range tests {
		cfg := validBase()
		cfg.Updates.Sources = []Source{tt.source}
		err := validate(cfg)
		if tt.ok && err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestValidateThresholds(t *testing.T) {
	cfg := validBase()
	cfg.Verification.Thresholds = Thresholds{Verified: 40, Suspicious: 70}
	if err := validate(cfg); err == nil {
		t.Error("expected error for inverted thresholds")
	}
	cfg.Verification.Thresholds = Thresholds{Verified: 120, Suspicious: 40}
	if err := validate(cfg); err == nil {
		t.Error("expected error for verified > 100")
	}
}

func TestValidateProvidersAndDriver(t *testing.T) {
	cfg := validBase()
	cfg.Geocoding.Providers = []MapProvider{{Name: "bing"}}
	if err := validate(cfg); err == nil {
		t.Error("expected error for unknown map provider")
	}

	cfg = validBase()
	cfg.Cache.Driver = "redis"
	if err := validate(cfg); err == nil {
		t.Error("expected error for unknown cache driver")
	}

	cfg = validBase()
	cfg.AI = &AIConfig{Provider: "gemini"}
	if err := validate(cfg); err == nil {
		t.Error("expected error for unknown AI provider")
	}
}
