package classify

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// Priority is the urgency ordinal of an update.
type Priority string

const (
	Urgent Priority = "urgent"
	High   Priority = "high"
	Medium Priority = "medium"
	Low    Priority = "low"
)

// AllPriorities returns all priorities from most to least urgent.
func AllPriorities() []Priority {
	return []Priority{Urgent, High, Medium, Low}
}

var priorityKeywords = map[Priority][]string{
	Urgent: {
		"sos", "trapped", "emergency", "urgent", "immediately", "life-threatening",
		"critical", "dying", "injured", "drowning", "collapsed", "missing person",
		"need rescue", "help now", "mass casualty", "unconscious",
	},
	High: {
		"evacuate", "evacuation", "rescue", "medical", "shelter", "stranded",
		"no power", "no water", "food", "insulin", "oxygen", "flooding",
		"fire", "wildfire", "aftershock", "landslide", "casualties",
	},
	Medium: {
		"damage", "damaged", "closed", "outage", "supplies", "volunteer",
		"donation", "road", "debris", "warning", "watch", "advisory",
		"relief", "distribution", "assessment",
	},
	Low: {
		"update", "recovery", "reopened", "restored", "thanks", "community",
		"cleanup", "rebuilding", "report", "meeting",
	},
}

// Aliases maps short CLI and query values to priorities.
var Aliases = map[string]Priority{
	"u":    Urgent,
	"crit": Urgent,
	"h":    High,
	"m":    Medium,
	"med":  Medium,
	"l":    Low,
}

// ParsePriority maps a priority name or alias to a Priority.
func ParsePriority(s string) (Priority, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if p, ok := Aliases[s]; ok {
		return p, nil
	}
	for _, p := range AllPriorities() {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown priority %q (valid: urgent, high, medium, low)", s)
}

// Classify determines the priority of an update from its title and body.
// Title keywords are weighted 2x and each tier's score is multiplied by its
// rank (urgent 4, low 1). Returns Low by default.
func Classify(title, body string) Priority {
	titleTokens := tokenize(title)
	bodyTokens := tokenize(body)
	titleLower := strings.ToLower(title)
	bodyLower := strings.ToLower(body)

	best := Low
	bestScore := 0

	for i, p := range AllPriorities() {
		score := 0
		for _, kw := range priorityKeywords[p] {
			if !strings.ContainsAny(kw, " -") {
				for _, t := range titleTokens {
					if t == kw {
						score += 2
					}
				}
				for _, t := range bodyTokens {
					if t == kw {
						score++
					}
				}
			} else {
				if strings.Contains(titleLower, kw) {
					score += 2
				}
				if strings.Contains(bodyLower, kw) {
					score++
				}
			}
		}
		score *= len(AllPriorities()) - i
		if score > bestScore {
			bestScore = score
			best = p
		}
	}
	return best
}

// PriorityOf classifies free text with no separate title.
func PriorityOf(text string) Priority {
	return Classify("", text)
}

// vocabulary is the set of disaster terms surfaced as item keywords.
var vocabulary = []string{
	"earthquake", "flood", "flooding", "hurricane", "tornado", "wildfire", "fire",
	"storm", "tsunami", "landslide", "drought", "heatwave", "blizzard", "cyclone",
	"volcano", "evacuation", "shelter", "rescue", "medical", "food", "water",
	"power", "outage", "damage", "injured", "trapped", "supplies", "volunteer",
	"donation", "relief", "aftershock",
}

// Keywords returns the disaster terms that appear in text, in vocabulary order.
func Keywords(text string) []string {
	tokens := tokenize(text)
	var out []string
	for _, kw := range vocabulary {
		if slices.Contains(tokens, kw) {
			out = append(out, kw)
		}
	}
	return out
}

func tokenize(s string) []string {
	var tokens []string
	for _, word := range strings.Fields(strings.ToLower(s)) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if word != "" {
			tokens = append(tokens, word)
		}
	}
	return tokens
}
