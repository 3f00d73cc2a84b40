package resolve

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// Normalize lowercases s and collapses runs of whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Key derives the cache key for input under ns. Tags are order-insensitive.
func Key(ns Namespace, input string, c Context) string {
	h := sha256.New()
	h.Write([]byte(Normalize(input)))
	h.Write([]byte{0})
	h.Write([]byte(c.discriminator()))
	return fmt.Sprintf("%s:%x", ns, h.Sum(nil)[:16])
}

func (c Context) discriminator() string {
	seen := make(map[string]bool, len(c.Tags))
	tags := make([]string, 0, len(c.Tags))
	for _, t := range c.Tags {
		t = Normalize(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return strings.Join(tags, ",") + "|" + Normalize(c.Location)
}
