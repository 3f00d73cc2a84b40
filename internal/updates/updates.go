// Package updates aggregates, ranks and delivers the social media updates
// for a disaster.
package updates

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/feed"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/hub"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/logging"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/resolve"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/signal"
)

const DefaultLimit = 20

// Publisher is the part of the hub the service needs.
type Publisher interface {
	Publish(room hub.RoomID, eventType string, payload any) int
}

type Config struct {
	Providers []resolve.Provider[[]feed.Item]
	Weights   signal.Weights
	Limit     int
	// Simulation samples non-matching curated items into the fallback.
	Simulation bool
	Rand       *rand.Rand
	Cache      resolve.Cache
	TTL        time.Duration
	Timeout    time.Duration
	Publisher  Publisher
	Logger     *slog.Logger
	Now        func() time.Time
}

// Update is a ranked item as delivered to clients.
type Update struct {
	feed.Item
	Score float64 `json:"score"`
}

// Feed is the answer for one disaster.
type Feed struct {
	DisasterID string          `json:"disaster_id"`
	Outcome    resolve.Outcome `json:"outcome"`
	Source     string          `json:"source,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Cached     bool            `json:"cached"`
	Total      int             `json:"total"`
	Updates    []Update        `json:"updates"`
	Delivered  int             `json:"delivered"`
}

type Service struct {
	union     *resolve.Union[feed.Item]
	weights   signal.Weights
	limit     int
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func New(cfg Config) (*Service, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Weights.Priority == nil {
		cfg.Weights = signal.DefaultWeights()
	}
	var rng *rand.Rand
	if cfg.Simulation {
		rng = cfg.Rand
		if rng == nil {
			rng = rand.New(rand.NewSource(time.Now().UnixNano()))
		}
	}

	union, err := resolve.NewUnion(resolve.UnionConfig[feed.Item]{
		Namespace: resolve.Updates,
		Providers: cfg.Providers,
		Fallback:  feed.NewCuratedFallback(cfg.Now, rng).Items,
		Cache:     cfg.Cache,
		TTL:       cfg.TTL,
		Timeout:   cfg.Timeout,
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Service{
		union:     union,
		weights:   cfg.Weights,
		limit:     cfg.Limit,
		publisher: cfg.Publisher,
		logger:    logging.OrDiscard(cfg.Logger).With("component", "updates"),
		now:       cfg.Now,
	}, nil
}

func (s *Service) Providers() []string {
	return s.union.ProviderNames()
}

// Fetch gathers updates for a disaster, ranks them against the disaster's
// tags and location, keeps the top limit (the service default when limit is
// not positive) and publishes them to the disaster's room.
func (s *Service) Fetch(ctx context.Context, disasterID string, dctx resolve.Context, limit int) (*Feed, error) {
	dctx.EntityID = disasterID
	res, err := s.union.Resolve(ctx, resolve.Request{Input: disasterID, Context: dctx})
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = s.limit
	}
	ranked := signal.Rank(dedupe(res.Value), feed.Item.ScoreInput, signal.Context{
		Tags:     dctx.Tags,
		Location: dctx.Location,
		Now:      s.now(),
	}, s.weights)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := &Feed{
		DisasterID: disasterID,
		Outcome:    res.Outcome,
		Source:     res.Source,
		Reason:     res.Reason,
		Cached:     res.Cached,
		Total:      len(res.Value),
		Updates:    make([]Update, 0, len(ranked)),
	}
	for _, r := range ranked {
		out.Updates = append(out.Updates, Update{Item: r.Item, Score: r.Score})
	}

	if s.publisher != nil {
		out.Delivered = s.publisher.Publish(hub.DisasterRoom(disasterID), hub.EventSocialMediaUpdated, hub.SocialMediaUpdatedPayload{
			DisasterID: disasterID,
			Items:      out.Updates,
		})
	}
	s.logger.Info("updates fetched",
		"disaster", disasterID,
		"outcome", out.Outcome,
		"total", out.Total,
		"returned", len(out.Updates),
		"delivered", out.Delivered,
	)
	return out, nil
}

// dedupe drops repeated item ids, keeping the first occurrence. Sources
// frequently syndicate the same link.
func dedupe(items []feed.Item) []feed.Item {
	seen := make(map[string]bool, len(items))
	out := make([]feed.Item, 0, len(items))
	for _, it := range items {
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	return out
}
