package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"

	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/ai"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/resolve"
)

// Analyzer produces a verdict for an image reference. Status is filled in by
// the service from its thresholds.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, reference string, dctx resolve.Context) (Verdict, error)
}

const analyzePrompt = `You are verifying an image submitted during a disaster response.

Image reference: %s
%s
Assess whether the image shows signs of manipulation and whether it matches the disaster context.

Respond with JSON only:
{"authenticity_score": 0-100, "manipulation_detected": true|false, "context_match": true|false, "confidence_level": "low"|"medium"|"high", "analysis": "one or two sentences"}`

type AIAnalyzer struct {
	client ai.Client
}

func NewAIAnalyzer(client ai.Client) *AIAnalyzer {
	return &AIAnalyzer{client: client}
}

func (a *AIAnalyzer) Name() string { return a.client.Name() }

func (a *AIAnalyzer) Analyze(ctx context.Context, reference string, dctx resolve.Context) (Verdict, error) {
	reply, err := a.client.Complete(ctx, fmt.Sprintf(analyzePrompt, reference, describeContext(dctx)))
	if err != nil {
		return Verdict{}, err
	}
	return ParseVerdict(reply), nil
}

func describeContext(dctx resolve.Context) string {
	var b strings.Builder
	if dctx.EntityID != "" {
		fmt.Fprintf(&b, "Disaster: %s\n", dctx.EntityID)
	}
	if len(dctx.Tags) > 0 {
		fmt.Fprintf(&b, "Disaster tags: %s\n", strings.Join(dctx.Tags, ", "))
	}
	if dctx.Location != "" {
		fmt.Fprintf(&b, "Disaster location: %s\n", dctx.Location)
	}
	return b.String()
}

// ParseVerdict reads the first JSON object in reply. When there is none, a
// verdict is derived from the wording of the reply.
func ParseVerdict(reply string) Verdict {
	if obj := firstJSONObject(reply); obj != "" {
		r := gjson.Parse(obj)
		if score := r.Get("authenticity_score"); score.Exists() {
			var v Verdict
			if err := json.Unmarshal([]byte(obj), &v); err != nil {
				// Numbers given as strings or floats.
				v = Verdict{
					ManipulationDetected: r.Get("manipulation_detected").Bool(),
					ContextMatch:         r.Get("context_match").Bool(),
					ConfidenceLevel:      r.Get("confidence_level").String(),
					Analysis:             r.Get("analysis").String(),
				}
			}
			v.Score = clampScore(int(score.Float()))
			return v
		}
	}
	return heuristicVerdict(reply)
}

// firstJSONObject returns the first balanced {...} in s, ignoring braces
// inside strings.
func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				candidate := s[start : i+1]
				if gjson.Valid(candidate) {
					return candidate
				}
				return ""
			}
		}
	}
	return ""
}

var (
	fakeryWords = map[string]bool{
		"fake": true, "faked": true, "manipulated": true, "manipulation": true, "doctored": true,
		"edited": true, "editing": true, "fabricated": true, "inauthentic": true, "staged": true,
	}
	authenticityWords = map[string]bool{
		"authentic": true, "genuine": true, "real": true, "legitimate": true, "unaltered": true,
	}
	negations = map[string]bool{
		"not": true, "no": true, "never": true, "without": true, "isn't": true, "wasn't": true, "doesn't": true,
	}
)

// negationReach is how many preceding words a negation applies to, so that
// "no signs of manipulation" still reads as negated. A "but" or another
// verdict word ends its scope.
const negationReach = 3

// heuristicVerdict scores a free-text reply by whole words. A negated
// fakery word counts toward authenticity and a negated authenticity word
// counts toward fakery.
func heuristicVerdict(reply string) Verdict {
	v := Verdict{Score: 50, ContextMatch: true, ConfidenceLevel: "low", Analysis: strings.TrimSpace(reply)}

	words := strings.FieldsFunc(strings.ToLower(reply), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	var fakery, authentic bool
	for i, w := range words {
		isFake, isReal := fakeryWords[w], authenticityWords[w]
		if !isFake && !isReal {
			continue
		}
		if negated(words, i) {
			isFake, isReal = isReal, isFake
		}
		fakery = fakery || isFake
		authentic = authentic || isReal
	}

	switch {
	case fakery:
		v.Score = 25
		v.ManipulationDetected = true
	case authentic:
		v.Score = 80
	}
	return v
}

func negated(words []string, i int) bool {
	for j := i - 1; j >= 0 && j >= i-negationReach; j-- {
		if words[j] == "but" || fakeryWords[words[j]] || authenticityWords[words[j]] {
			return false
		}
		if negations[words[j]] {
			return true
		}
	}
	return false
}
