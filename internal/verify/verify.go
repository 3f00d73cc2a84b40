// Package verify assesses the authenticity of an image reference in the
// context of a disaster.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/config"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/resolve"
)

type Status string

const (
	StatusVerified   Status = "verified"
	StatusSuspicious Status = "suspicious"
	StatusFake       Status = "fake"
)

type Verdict struct {
	Score                int    `json:"authenticity_score"`
	ManipulationDetected bool   `json:"manipulation_detected"`
	ContextMatch         bool   `json:"context_match"`
	ConfidenceLevel      string `json:"confidence_level"`
	Status               Status `json:"status"`
	Analysis             string `json:"analysis"`
}

// Thresholds map an authenticity score to a status. Scores strictly above
// Verified are verified, strictly above Suspicious are suspicious, the rest
// are fake.
type Thresholds struct {
	Verified   int
	Suspicious int
}

var DefaultThresholds = Thresholds{Verified: 70, Suspicious: 40}

func ThresholdsFromConfig(c config.Thresholds) Thresholds {
	t := Thresholds{Verified: c.Verified, Suspicious: c.Suspicious}
	if t.Verified == 0 && t.Suspicious == 0 {
		return DefaultThresholds
	}
	return t
}

func (t Thresholds) Status(score int) Status {
	switch {
	case score > t.Verified:
		return StatusVerified
	case score > t.Suspicious:
		return StatusSuspicious
	default:
		return StatusFake
	}
}

func confidenceLevel(score int) string {
	switch {
	case score >= 80 || score <= 20:
		return "high"
	case score >= 60 || score <= 40:
		return "medium"
	default:
		return "low"
	}
}

func clampScore(s int) int {
	return max(0, min(100, s))
}

var errInvalidVerdict = errors.New("invalid verdict")

func validVerdict(v Verdict) error {
	if v.Score < 0 || v.Score > 100 {
		return fmt.Errorf("%w: score %d out of range", errInvalidVerdict, v.Score)
	}
	return nil
}

type Config struct {
	// Analyzer is optional; without it every request takes the fallback.
	Analyzer   Analyzer
	Thresholds Thresholds
	// Simulation enables randomized fallback scores drawn from Rand.
	Simulation bool
	Rand       *rand.Rand
	Cache      resolve.Cache
	TTL        time.Duration
	Timeout    time.Duration
	Logger     *slog.Logger
}

type Service struct {
	chain *resolve.Chain[Verdict]
}

func New(cfg Config) (*Service, error) {
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds
	}
	if cfg.Simulation && cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	var providers []resolve.Provider[Verdict]
	if cfg.Analyzer != nil {
		providers = append(providers, &analyzerProvider{analyzer: cfg.Analyzer, thresholds: cfg.Thresholds})
	}

	fb := &fallback{thresholds: cfg.Thresholds}
	if cfg.Simulation {
		fb.rng = cfg.Rand
	}

	chain, err := resolve.NewChain(resolve.ChainConfig[Verdict]{
		Namespace: resolve.Verification,
		Providers: providers,
		Fallback:  fb.verdict,
		Cache:     cfg.Cache,
		TTL:       cfg.TTL,
		Timeout:   cfg.Timeout,
		Validate:  validVerdict,
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Service{chain: chain}, nil
}

// Verify assesses reference against the disaster described by dctx.
func (s *Service) Verify(ctx context.Context, reference string, dctx resolve.Context) (resolve.Result[Verdict], error) {
	return s.chain.Resolve(ctx, resolve.Request{Input: reference, Context: dctx})
}

func (s *Service) Providers() []string {
	return s.chain.ProviderNames()
}

type analyzerProvider struct {
	analyzer   Analyzer
	thresholds Thresholds
}

func (p *analyzerProvider) Name() string { return p.analyzer.Name() }

func (p *analyzerProvider) Attempt(ctx context.Context, req resolve.Request) (resolve.Answer[Verdict], error) {
	v, err := p.analyzer.Analyze(ctx, req.Input, req.Context)
	if err != nil {
		return resolve.Answer[Verdict]{}, err
	}
	v.Score = clampScore(v.Score)
	v.Status = p.thresholds.Status(v.Score)
	if v.ConfidenceLevel == "" {
		v.ConfidenceLevel = confidenceLevel(v.Score)
	}
	return resolve.Answer[Verdict]{Value: v, Confidence: confidenceWeight(v.ConfidenceLevel)}, nil
}

func confidenceWeight(level string) float64 {
	switch strings.ToLower(level) {
	case "high":
		return 0.9
	case "medium":
		return 0.7
	default:
		return 0.5
	}
}
