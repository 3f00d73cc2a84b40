// Package geocode resolves free-text reports to coordinates. Resolution is
// two-stage: an extractor pulls a location phrase out of the text, then the
// first configured mapping provider geocodes it. When either stage is
// unavailable the gazetteer fallback answers instead.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/resolve"
)

// ServiceMock marks locations produced by the local gazetteer.
const ServiceMock = "mock"

type Location struct {
	Name             string  `json:"location_name"`
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
	FormattedAddress string  `json:"formatted_address,omitempty"`
	Service          string  `json:"service"`
}

var errInvalidLocation = errors.New("invalid location")

func validLocation(l Location) error {
	if l.Name == "" {
		return fmt.Errorf("%w: empty name", errInvalidLocation)
	}
	if l.Lat < -90 || l.Lat > 90 || l.Lng < -180 || l.Lng > 180 {
		return fmt.Errorf("%w: coordinates out of range (%f, %f)", errInvalidLocation, l.Lat, l.Lng)
	}
	return nil
}

type Config struct {
	// Extractor is optional; without it every request takes the fallback.
	Extractor Extractor
	// Mappers are in configured order. Only the first one is used.
	Mappers []Mapper
	Cache   resolve.Cache
	TTL     time.Duration
	Timeout time.Duration
	Logger  *slog.Logger
}

type Service struct {
	chain *resolve.Chain[Location]
}

func New(cfg Config) (*Service, error) {
	var providers []resolve.Provider[Location]
	if cfg.Extractor != nil {
		p := &pipeline{extractor: cfg.Extractor}
		if len(cfg.Mappers) > 0 {
			p.mapper = cfg.Mappers[0]
		}
		providers = append(providers, p)
	}

	chain, err := resolve.NewChain(resolve.ChainConfig[Location]{
		Namespace: resolve.Geocoding,
		Providers: providers,
		Fallback:  Fallback,
		Cache:     cfg.Cache,
		TTL:       cfg.TTL,
		Timeout:   cfg.Timeout,
		Validate:  validLocation,
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Service{chain: chain}, nil
}

// Resolve locates the place described by text.
func (s *Service) Resolve(ctx context.Context, text string) (resolve.Result[Location], error) {
	return s.chain.Resolve(ctx, resolve.Request{Input: text})
}

// Providers names the active pipeline, if any.
func (s *Service) Providers() []string {
	return s.chain.ProviderNames()
}

// pipeline chains extraction and mapping into a single provider attempt.
type pipeline struct {
	extractor Extractor
	mapper    Mapper
}

func (p *pipeline) Name() string {
	if p.mapper == nil {
		return p.extractor.Name() + "+gazetteer"
	}
	return p.extractor.Name() + "+" + p.mapper.Name()
}

func (p *pipeline) Attempt(ctx context.Context, req resolve.Request) (resolve.Answer[Location], error) {
	phrase, err := p.extractor.Extract(ctx, req.Input)
	if err != nil {
		return resolve.Answer[Location]{}, fmt.Errorf("extracting location: %w", err)
	}

	if p.mapper == nil {
		loc, ok := lookupGazetteer(phrase)
		if !ok {
			return resolve.Answer[Location]{}, fmt.Errorf("no mapping provider configured and %q is not in the gazetteer", phrase)
		}
		return resolve.Answer[Location]{Value: loc, Confidence: 0.5}, nil
	}

	loc, confidence, err := p.mapper.Geocode(ctx, phrase)
	if err != nil {
		return resolve.Answer[Location]{}, fmt.Errorf("geocoding %q: %w", phrase, err)
	}
	if loc.Name == "" {
		loc.Name = phrase
	}
	return resolve.Answer[Location]{Value: loc, Confidence: confidence}, nil
}
