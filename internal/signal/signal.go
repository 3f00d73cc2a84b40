package signal

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/config"
)

// Input holds the data needed to score an update.
type Input struct {
	Priority  string
	Body      string
	Keywords  []string
	Timestamp time.Time
}

// Context is what the update is scored against. Now fixes the clock so a
// score depends only on its arguments.
type Context struct {
	Tags     []string
	Location string
	Now      time.Time
}

// Weights are the scorer's tunable constants.
type Weights struct {
	Priority            map[string]float64
	Keyword             float64
	Location            float64
	RecencyBase         float64
	RecencyDecayPerHour float64
}

func DefaultWeights() Weights {
	return Weights{
		Priority:            map[string]float64{"urgent": 10, "high": 7, "medium": 4, "low": 1},
		Keyword:             3,
		Location:            2,
		RecencyBase:         5,
		RecencyDecayPerHour: 0.5,
	}
}

// WeightsFromConfig overlays configured values on the defaults.
func WeightsFromConfig(c config.ScoringConfig) Weights {
	w := DefaultWeights()
	if len(c.Priority) > 0 {
		w.Priority = make(map[string]float64, len(c.Priority))
		for k, v := range c.Priority {
			w.Priority[strings.ToLower(k)] = v
		}
	}
	if c.Keyword != 0 {
		w.Keyword = c.Keyword
	}
	if c.Location != 0 {
		w.Location = c.Location
	}
	if c.RecencyBase != 0 {
		w.RecencyBase = c.RecencyBase
	}
	if c.RecencyDecayPerHour != 0 {
		w.RecencyDecayPerHour = c.RecencyDecayPerHour
	}
	return w
}

// Breakdown shows how each component contributed to the final score.
type Breakdown struct {
	Priority float64
	Keyword  float64
	Location float64
	Recency  float64
	Final    float64
}

// Score computes the relevance of an update to a context.
func Score(input Input, ctx Context, w Weights) float64 {
	return ScoreWithBreakdown(input, ctx, w).Final
}

// ScoreWithBreakdown computes a relevance score with component details.
func ScoreWithBreakdown(input Input, ctx Context, w Weights) Breakdown {
	body := strings.ToLower(input.Body)
	b := Breakdown{
		Priority: w.Priority[strings.ToLower(input.Priority)],
		Keyword:  float64(tagMatches(body, input.Keywords, ctx.Tags)) * w.Keyword,
		Location: float64(locationMatches(body, ctx.Location)) * w.Location,
		Recency:  recencyScore(input.Timestamp, ctx.Now, w),
	}
	b.Final = b.Priority + b.Keyword + b.Location + b.Recency
	return b
}

// tagMatches counts context tags found in the body or the item's keywords.
// Each tag counts at most once.
func tagMatches(body string, keywords, tags []string) int {
	n := 0
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		if strings.Contains(body, tag) || containsFold(keywords, tag) {
			n++
		}
	}
	return n
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// locationMatches counts distinct location tokens of three or more letters
// found in the body.
func locationMatches(body, location string) int {
	n := 0
	seen := map[string]bool{}
	for _, tok := range locationTokens(location) {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		if strings.Contains(body, tok) {
			n++
		}
	}
	return n
}

func locationTokens(location string) []string {
	fields := strings.FieldsFunc(strings.ToLower(location), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 3 {
			out = append(out, f)
		}
	}
	return out
}

// recencyScore decays linearly from RecencyBase and never goes negative.
// Items with no timestamp score zero; future ones get the full base.
func recencyScore(ts, now time.Time, w Weights) float64 {
	if ts.IsZero() || now.IsZero() {
		return 0
	}
	hours := now.Sub(ts).Hours()
	if hours < 0 {
		hours = 0
	}
	return max(0, w.RecencyBase-w.RecencyDecayPerHour*hours)
}

// Ranked pairs an item with its score.
type Ranked[T any] struct {
	Item  T
	Score float64
}

// Rank scores items and sorts them by descending score. Ties keep their
// input order.
func Rank[T any](items []T, toInput func(T) Input, ctx Context, w Weights) []Ranked[T] {
	out := make([]Ranked[T], len(items))
	for i, it := range items {
		out[i] = Ranked[T]{Item: it, Score: Score(toInput(it), ctx, w)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
