package transform

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

// Normalization maps an original, noisy merchant string to a canonical name.
// Verified entries come from curated data and are never overwritten by a
// heuristic match, whatever its confidence.
type Normalization struct {
	Original   string    `json:"original"`
	Normalized string    `json:"normalized"`
	Category   string    `json:"category,omitempty"`
	Confidence float64   `json:"confidence"`
	Verified   bool      `json:"verified"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MerchantCache holds known normalizations, safe for concurrent use.
type MerchantCache struct {
	mu      sync.RWMutex
	entries map[string]Normalization // keyed by uppercased original
}

// NewMerchantCache creates an empty cache.
func NewMerchantCache() *MerchantCache {
	return &MerchantCache{entries: make(map[string]Normalization)}
}

// Seed loads curated normalizations, marking them verified.
func (c *MerchantCache) Seed(entries []Normalization) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		e.Verified = true
		if e.Confidence == 0 {
			e.Confidence = 1
		}
		c.entries[strings.ToUpper(strings.TrimSpace(e.Original))] = e
	}
}

// Put records a heuristic normalization unless a verified entry already
// exists for the same original string.
func (c *MerchantCache) Put(n Normalization) {
	key := strings.ToUpper(strings.TrimSpace(n.Original))
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok && existing.Verified {
		return
	}
	n.UpdatedAt = time.Now()
	c.entries[key] = n
}

// Lookup returns the cached normalization for the original string.
func (c *MerchantCache) Lookup(original string) (Normalization, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.entries[strings.ToUpper(strings.TrimSpace(original))]
	return n, ok
}

var (
	trailingRefRe = regexp.MustCompile(`[\s#*-]*(?:#?\d{2,}|[A-Z]{0,2}\d{3,}[A-Z0-9]*)$`)
	legalSuffixRe = regexp.MustCompile(`(?i)[\s,]+(?:INC|LLC|LTD|CORP|CO|PLC|GMBH)\.?$`)
)

// NormalizeMerchant canonicalizes a raw merchant string: cached entry first,
// then heuristics (strip trailing digits and reference codes, legal-entity
// suffixes, a leading "THE", squeeze whitespace, title case).
func (c *MerchantCache) NormalizeMerchant(raw string) Normalization {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Normalization{}
	}
	if n, ok := c.Lookup(raw); ok {
		return n
	}

	name := strings.Join(strings.Fields(raw), " ")
	name = trailingRefRe.ReplaceAllString(name, "")
	name = legalSuffixRe.ReplaceAllString(name, "")
	if upper := strings.ToUpper(name); strings.HasPrefix(upper, "THE ") {
		name = name[4:]
	}
	name = strings.TrimSpace(strings.Trim(name, "-*# "))
	if name == "" {
		name = raw
	}
	name = titleCase(name)

	n := Normalization{
		Original:   raw,
		Normalized: name,
		Confidence: 0.6,
	}
	c.Put(n)
	return n
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
