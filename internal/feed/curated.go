package feed

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/classify"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/resolve"
)

// SampleRate is the chance a non-matching curated item is included in
// simulation mode.
const SampleRate = 0.3

type curatedPost struct {
	source string
	title  string
	body   string
	age    time.Duration
}

var curatedPosts = []curatedPost{
	{"community", "Family trapped on second floor", "SOS: family of four trapped by flood water on Water Street in lower Manhattan, need rescue boat immediately", 20 * time.Minute},
	{"community", "Shelter open at PS 89", "Evacuation shelter open at PS 89 Brooklyn with food, water and medical staff on site", 45 * time.Minute},
	{"reliefweb", "Flood warning extended", "Flood warning extended for Queens and Brooklyn through Thursday; avoid low-lying roads", 2 * time.Hour},
	{"community", "No power in Hoboken", "Whole block without electricity since last night, no power and no water for elderly residents", 3 * time.Hour},
	{"gdacs", "Earthquake aftershock reported", "Magnitude 4.8 aftershock reported; inspect buildings for damage before re-entering", 5 * time.Hour},
	{"community", "Wildfire evacuation order", "Mandatory evacuation for canyon neighborhoods north of Los Angeles as wildfire spreads", 90 * time.Minute},
	{"fema", "Supply distribution point", "Relief supplies distribution at the Houston convention center from 9am, bring ID", 6 * time.Hour},
	{"community", "Volunteers needed for sandbags", "Volunteer crews needed to fill sandbags along the river in New Orleans this afternoon", 4 * time.Hour},
	{"community", "Road closed after landslide", "Highway 1 closed both directions after landslide; debris clearing underway", 8 * time.Hour},
	{"community", "Power restored downtown", "Power restored to most of downtown Miami, cleanup continues in coastal areas", 12 * time.Hour},
	{"usgs", "Tsunami advisory lifted", "Tsunami advisory lifted for the coast; residents may return, follow local guidance", 10 * time.Hour},
	{"community", "Thanks to rescue teams", "Community update: thank you to every rescue team and volunteer this week", 24 * time.Hour},
}

// Curated returns the curated update set with timestamps relative to now.
func Curated(now time.Time) []Item {
	items := make([]Item, 0, len(curatedPosts))
	for i, p := range curatedPosts {
		items = append(items, Item{
			ID:        itemID(fmt.Sprintf("curated:%d", i)),
			Source:    p.source,
			Title:     p.title,
			Body:      p.body,
			Priority:  classify.Classify(p.title, p.body),
			Keywords:  classify.Keywords(p.title + " " + p.body),
			Published: now.Add(-p.age),
		})
	}
	return items
}

// CuratedFallback answers the update namespace when no source contributed.
type CuratedFallback struct {
	now func() time.Time
	mu  sync.Mutex
	// rng is set only in simulation mode.
	rng *rand.Rand
}

// NewCuratedFallback builds the fallback. A nil rng keeps it deterministic.
func NewCuratedFallback(now func() time.Time, rng *rand.Rand) *CuratedFallback {
	if now == nil {
		now = time.Now
	}
	return &CuratedFallback{now: now, rng: rng}
}

// Items filters the curated set by relevance to the request context. In
// simulation mode non-matching items are sampled in at SampleRate.
func (f *CuratedFallback) Items(req resolve.Request) ([]Item, string) {
	all := Curated(f.now())

	var out []Item
	sampled := 0
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range all {
		switch {
		case Relevant(it, req.Context):
			out = append(out, it)
		case f.rng != nil && f.rng.Float64() < SampleRate:
			out = append(out, it)
			sampled++
		}
	}

	if len(out) == 0 {
		return all, "no source returned updates and no curated item matched; unfiltered curated set"
	}
	if sampled > 0 {
		return out, fmt.Sprintf("no source returned updates; curated set filtered by relevance with %d sampled", sampled)
	}
	return out, "no source returned updates; curated set filtered by relevance"
}
