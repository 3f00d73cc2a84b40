package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/ai"
)

// ErrNoLocation is returned when the extractor finds no place in the text.
var ErrNoLocation = errors.New("no location in text")

// Extractor pulls a location phrase out of free text.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, text string) (string, error)
}

const extractPrompt = `Extract the most specific location (neighborhood, city, region or country) mentioned in this disaster report.

Respond with ONLY the location name, for example "Manhattan, NYC". If no location is mentioned respond with NONE.

Report: %s`

// AIExtractor asks a language model for the location phrase.
type AIExtractor struct {
	client ai.Client
}

func NewAIExtractor(client ai.Client) *AIExtractor {
	return &AIExtractor{client: client}
}

func (e *AIExtractor) Name() string { return e.client.Name() }

func (e *AIExtractor) Extract(ctx context.Context, text string) (string, error) {
	reply, err := e.client.Complete(ctx, fmt.Sprintf(extractPrompt, text))
	if err != nil {
		return "", err
	}
	phrase := cleanPhrase(reply)
	if phrase == "" {
		return "", ErrNoLocation
	}
	return phrase, nil
}

// cleanPhrase reduces a model reply to the bare location, or "" when the
// model declined.
func cleanPhrase(reply string) string {
	line := strings.TrimSpace(reply)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	for _, prefix := range []string{"Location:", "location:", "LOCATION:"} {
		line = strings.TrimSpace(strings.TrimPrefix(line, prefix))
	}
	line = strings.Trim(line, "\"'`.")
	line = strings.TrimSpace(line)
	switch strings.ToUpper(line) {
	case "", "NONE", "N/A", "UNKNOWN":
		return ""
	}
	return line
}
