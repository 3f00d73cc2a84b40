package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/ai"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/cache"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/config"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/feed"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/geocode"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/hub"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/logging"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/signal"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/updates"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/verify"
)

// app holds the services shared by the commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	backend cache.Backend
	store   *cache.Store
	hub     *hub.Hub

	geocoder *geocode.Service
	verifier *verify.Service
	updates  *updates.Service
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func openBackend(cfg *config.Config) (cache.Backend, error) {
	if strings.EqualFold(cfg.Cache.Driver, "memory") {
		return cache.NewMemory(), nil
	}
	db, err := cache.Open(cfg.CachePath())
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return db, nil
}

// newApp wires config, logging, the cache and every resolution namespace.
func newApp(cfg *config.Config, logOut io.Writer) (*app, error) {
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, logOut)

	backend, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}
	store := cache.NewStore(backend, cache.WithLogger(logger))
	h := hub.New(hub.WithLogger(logger))

	client, err := ai.New(cfg.AI, cfg.AIKey(), ai.Options{})
	if err != nil && !errors.Is(err, ai.ErrNotConfigured) {
		backend.Close()
		return nil, fmt.Errorf("creating AI client: %w", err)
	}
	if client == nil {
		logger.Info("AI not configured; geocoding extraction and verification use fallbacks")
	}

	timeout := cfg.ProviderTimeoutDuration()

	geoCfg := geocode.Config{
		Mappers: geocode.NewMappers(cfg.EnabledMapProviders(), nil),
		Cache:   store,
		TTL:     cfg.GeocodingTTL(),
		Timeout: timeout,
		Logger:  logger,
	}
	if client != nil && cfg.Geocoding.Extractor {
		geoCfg.Extractor = geocode.NewAIExtractor(client)
	}
	geocoder, err := geocode.New(geoCfg)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("building geocoder: %w", err)
	}

	verCfg := verify.Config{
		Thresholds: verify.ThresholdsFromConfig(cfg.Verification.Thresholds),
		Simulation: cfg.Simulation,
		Cache:      store,
		TTL:        cfg.VerificationTTL(),
		Timeout:    timeout,
		Logger:     logger,
	}
	if client != nil {
		verCfg.Analyzer = verify.NewAIAnalyzer(client)
	}
	if cfg.Simulation {
		verCfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	verifier, err := verify.New(verCfg)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("building verifier: %w", err)
	}

	updCfg := updates.Config{
		Providers:  feed.Providers(cfg.EnabledSources(), feed.NewRSSFetcher()),
		Weights:    signal.WeightsFromConfig(cfg.Scoring),
		Limit:      cfg.UpdatesLimit(),
		Simulation: cfg.Simulation,
		Cache:      store,
		TTL:        cfg.UpdatesTTL(),
		Timeout:    timeout,
		Publisher:  h,
		Logger:     logger,
	}
	if cfg.Simulation {
		updCfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano() + 1))
	}
	upd, err := updates.New(updCfg)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("building update aggregator: %w", err)
	}

	logger.Debug("services ready",
		"geocoding", geocoder.Providers(),
		"verification", verifier.Providers(),
		"updates", upd.Providers(),
		"cache", cfg.Cache.Driver,
		"simulation", cfg.Simulation,
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		backend:  backend,
		store:    store,
		hub:      h,
		geocoder: geocoder,
		verifier: verifier,
		updates:  upd,
	}, nil
}

func (a *app) Close() error {
	return a.backend.Close()
}
