package geocode

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/config"
)

// Mapper geocodes a location phrase. The float is the provider's confidence.
type Mapper interface {
	Name() string
	Geocode(ctx context.Context, phrase string) (Location, float64, error)
}

const userAgent = "drc/1.0 (disaster response coordination)"

// NewMappers builds mapping providers in configured order, skipping disabled
// entries and those missing credentials.
func NewMappers(providers []config.MapProvider, client *http.Client) []Mapper {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	var out []Mapper
	for _, p := range providers {
		if !p.Enabled {
			continue
		}
		switch p.Name {
		case "google":
			if p.APIKey == "" {
				continue
			}
			out = append(out, &Google{apiKey: p.APIKey, baseURL: orDefault(p.BaseURL, "https://maps.googleapis.com"), client: client})
		case "mapbox":
			if p.APIKey == "" {
				continue
			}
			out = append(out, &Mapbox{token: p.APIKey, baseURL: orDefault(p.BaseURL, "https://api.mapbox.com"), client: client})
		case "nominatim":
			out = append(out, &Nominatim{baseURL: orDefault(p.BaseURL, "https://nominatim.openstreetmap.org"), client: client})
		}
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func getJSON(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("malformed JSON response")
	}
	return body, nil
}

// --- Google ---

type Google struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func (g *Google) Name() string { return "google" }

func (g *Google) Geocode(ctx context.Context, phrase string) (Location, float64, error) {
	q := url.Values{"address": {phrase}, "key": {g.apiKey}}
	body, err := getJSON(ctx, g.client, g.baseURL+"/maps/api/geocode/json?"+q.Encode())
	if err != nil {
		return Location{}, 0, fmt.Errorf("google: %w", err)
	}
	if status := gjson.GetBytes(body, "status").String(); status != "OK" {
		return Location{}, 0, fmt.Errorf("google: status %s", status)
	}
	first := gjson.GetBytes(body, "results.0")
	return Location{
		Name:             phrase,
		Lat:              first.Get("geometry.location.lat").Float(),
		Lng:              first.Get("geometry.location.lng").Float(),
		FormattedAddress: first.Get("formatted_address").String(),
		Service:          "google",
	}, 0.9, nil
}

// --- Mapbox ---

type Mapbox struct {
	token   string
	baseURL string
	client  *http.Client
}

func (m *Mapbox) Name() string { return "mapbox" }

func (m *Mapbox) Geocode(ctx context.Context, phrase string) (Location, float64, error) {
	q := url.Values{"access_token": {m.token}, "limit": {"1"}}
	endpoint := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json?%s", m.baseURL, url.PathEscape(phrase), q.Encode())
	body, err := getJSON(ctx, m.client, endpoint)
	if err != nil {
		return Location{}, 0, fmt.Errorf("mapbox: %w", err)
	}
	first := gjson.GetBytes(body, "features.0")
	if !first.Exists() {
		return Location{}, 0, fmt.Errorf("mapbox: no features for %q", phrase)
	}
	confidence := first.Get("relevance").Float()
	if confidence == 0 {
		confidence = 0.9
	}
	return Location{
		Name:             phrase,
		Lat:              first.Get("center.1").Float(),
		Lng:              first.Get("center.0").Float(),
		FormattedAddress: first.Get("place_name").String(),
		Service:          "mapbox",
	}, confidence, nil
}

// --- Nominatim (OpenStreetMap) ---

type Nominatim struct {
	baseURL string
	client  *http.Client
}

func (n *Nominatim) Name() string { return "nominatim" }

func (n *Nominatim) Geocode(ctx context.Context, phrase string) (Location, float64, error) {
	q := url.Values{"q": {phrase}, "format": {"json"}, "limit": {"1"}}
	body, err := getJSON(ctx, n.client, n.baseURL+"/search?"+q.Encode())
	if err != nil {
		return Location{}, 0, fmt.Errorf("nominatim: %w", err)
	}
	first := gjson.GetBytes(body, "0")
	if !first.Exists() {
		return Location{}, 0, fmt.Errorf("nominatim: no results for %q", phrase)
	}
	confidence := first.Get("importance").Float()
	if confidence <= 0 || confidence > 1 {
		confidence = 0.7
	}
	return Location{
		Name:             phrase,
		Lat:              first.Get("lat").Float(),
		Lng:              first.Get("lon").Float(),
		FormattedAddress: first.Get("display_name").String(),
		Service:          "nominatim",
	}, confidence, nil
}
