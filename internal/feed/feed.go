package feed

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/classify"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/config"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/resolve"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/signal"
)

var ErrUnsupportedSource = errors.New("unsupported source type")

// MaxAge bounds how old a fetched item may be.
const MaxAge = 7 * 24 * time.Hour

// Item is one update from a source or the curated set.
type Item struct {
	ID        string            `json:"id"`
	Source    string            `json:"source"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	URL       string            `json:"url,omitempty"`
	Priority  classify.Priority `json:"priority"`
	Keywords  []string          `json:"keywords,omitempty"`
	Published time.Time         `json:"published"`
}

// ScoreInput adapts an item for the relevance scorer.
func (it Item) ScoreInput() signal.Input {
	return signal.Input{
		Priority:  string(it.Priority),
		Body:      it.Title + " " + it.Body,
		Keywords:  it.Keywords,
		Timestamp: it.Published,
	}
}

type Fetcher interface {
	Fetch(ctx context.Context, source config.Source) ([]Item, error)
}

type RSSFetcher struct {
	parser *gofeed.Parser
	now    func() time.Time
}

func NewRSSFetcher() *RSSFetcher {
	p := gofeed.NewParser()
	p.UserAgent = "drc/1.0"
	return &RSSFetcher{parser: p, now: time.Now}
}

func (f *RSSFetcher) Fetch(ctx context.Context, source config.Source) ([]Item, error) {
	if source.Type != "rss" && source.Type != "atom" {
		return nil, fmt.Errorf("%s: %w %q", source.Name, ErrUnsupportedSource, source.Type)
	}
	feed, err := f.parser.ParseURLWithContext(source.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", source.Name, err)
	}

	now := f.now()
	maxAge := now.Add(-MaxAge)
	items := make([]Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		pub := now
		if entry.PublishedParsed != nil {
			pub = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			pub = *entry.UpdatedParsed
		}

		if pub.Before(maxAge) {
			continue
		}

		body := entry.Description
		if body == "" {
			body = entry.Content
		}
		body = truncate(stripHTML(body), 300)

		items = append(items, Item{
			ID:        itemID(entry.Link),
			Source:    source.Name,
			Title:     entry.Title,
			Body:      body,
			URL:       entry.Link,
			Priority:  classify.Classify(entry.Title, body),
			Keywords:  classify.Keywords(entry.Title + " " + body),
			Published: pub,
		})
	}
	return items, nil
}

func itemID(link string) string {
	h := sha256.Sum256([]byte(link))
	return fmt.Sprintf("%x", h[:16])
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Relevant reports whether an item overlaps the request context by tag or
// location. Every item is relevant to an empty context.
func Relevant(it Item, rctx resolve.Context) bool {
	if len(rctx.Tags) == 0 && strings.TrimSpace(rctx.Location) == "" {
		return true
	}
	b := signal.ScoreWithBreakdown(it.ScoreInput(), signal.Context{Tags: rctx.Tags, Location: rctx.Location}, signal.DefaultWeights())
	return b.Keyword > 0 || b.Location > 0
}

// SourceProvider exposes one configured source to the update union.
type SourceProvider struct {
	source  config.Source
	fetcher Fetcher
}

func NewSourceProvider(source config.Source, fetcher Fetcher) *SourceProvider {
	return &SourceProvider{source: source, fetcher: fetcher}
}

// Providers builds a provider per source sharing one fetcher.
func Providers(sources []config.Source, fetcher Fetcher) []resolve.Provider[[]Item] {
	out := make([]resolve.Provider[[]Item], 0, len(sources))
	for _, s := range sources {
		out = append(out, NewSourceProvider(s, fetcher))
	}
	return out
}

func (p *SourceProvider) Name() string { return p.source.Name }

func (p *SourceProvider) Attempt(ctx context.Context, req resolve.Request) (resolve.Answer[[]Item], error) {
	items, err := p.fetcher.Fetch(ctx, p.source)
	if err != nil {
		return resolve.Answer[[]Item]{}, err
	}
	var relevant []Item
	for _, it := range items {
		if Relevant(it, req.Context) {
			relevant = append(relevant, it)
		}
	}
	return resolve.Answer[[]Item]{Value: relevant, Confidence: 0.8}, nil
}
