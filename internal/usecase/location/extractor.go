// Package location derives the place names that drive graph retrieval.
package location

import (
	"sort"
	"strings"
	"unicode"

	"github.com/kailas-cloud/vntravel/internal/domain"
)

// DefaultRegion is used when nothing else matches.
const DefaultRegion = "Vietnam"

// Entry is a gazetteer place with optional alternative spellings.
type Entry struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

// DefaultGazetteer lists the destinations the travel dataset covers.
var DefaultGazetteer = []Entry{
	{Name: "Hanoi", Aliases: []string{"Ha Noi"}},
	{Name: "Ho Chi Minh City", Aliases: []string{"Ho Chi Minh", "Saigon", "Sai Gon", "HCMC"}},
	{Name: "Hoi An"},
	{Name: "Da Nang", Aliases: []string{"Danang"}},
	{Name: "Hue"},
	{Name: "Nha Trang"},
	{Name: "Phu Quoc"},
	{Name: "Halong Bay", Aliases: []string{"Ha Long Bay", "Ha Long", "Halong"}},
	{Name: "Sapa", Aliases: []string{"Sa Pa"}},
	{Name: "Dalat", Aliases: []string{"Da Lat"}},
	{Name: "Mekong Delta"},
	{Name: "Can Tho"},
	{Name: "Mui Ne"},
	{Name: "Vung Tau"},
	{Name: "Ninh Binh"},
}

type pattern struct {
	tokens    string // normalized, single-space separated
	words     int
	canonical string
}

// Extractor scans text for gazetteer places. Safe for concurrent use.
type Extractor struct {
	patterns      []pattern
	canonical     map[string]string
	defaultRegion string
}

// NewExtractor compiles a gazetteer. An empty defaultRegion means DefaultRegion.
func NewExtractor(gazetteer []Entry, defaultRegion string) *Extractor {
	if strings.TrimSpace(defaultRegion) == "" {
		defaultRegion = DefaultRegion
	}
	e := &Extractor{canonical: make(map[string]string), defaultRegion: defaultRegion}

	for _, entry := range gazetteer {
		if strings.TrimSpace(entry.Name) == "" {
			continue
		}
		for _, spelling := range append([]string{entry.Name}, entry.Aliases...) {
			tokens := tokenize(spelling)
			if tokens == "" {
				continue
			}
			if _, dup := e.canonical[tokens]; dup {
				continue
			}
			e.canonical[tokens] = entry.Name
			e.patterns = append(e.patterns, pattern{
				tokens:    tokens,
				words:     strings.Count(tokens, " ") + 1,
				canonical: entry.Name,
			})
		}
	}

	// Longest first; ties broken lexically so scans are reproducible.
	sort.Slice(e.patterns, func(i, j int) bool {
		a, b := e.patterns[i], e.patterns[j]
		if len(a.tokens) != len(b.tokens) {
			return len(a.tokens) > len(b.tokens)
		}
		return a.tokens < b.tokens
	})
	return e
}

// DefaultRegion returns the fallback location.
func (e *Extractor) DefaultRegion() string { return e.defaultRegion }

// Extract returns the locations named in query plus those recorded in match
// metadata. The result is never empty.
func (e *Extractor) Extract(query string, matches []domain.VectorMatch) domain.LocationSet {
	set := domain.NewLocationSet(e.Scan(query)...)

	for _, m := range matches {
		if loc, ok := m.Location(); ok {
			set.Add(e.Canonicalize(loc))
		}
	}

	if set.IsEmpty() {
		set.Add(e.defaultRegion)
	}
	return set
}

// Scan returns the canonical names of gazetteer places found in text, in
// order of first appearance. Matches respect word boundaries and a longer
// place consumes its span, so "Ho Chi Minh City" never also yields "Ho".
func (e *Extractor) Scan(text string) []string {
	buf := " " + tokenize(text) + " "
	if strings.TrimSpace(buf) == "" {
		return nil
	}

	type hit struct {
		pos  int
		name string
	}
	var hits []hit
	seen := make(map[string]bool)

	for _, p := range e.patterns {
		needle := " " + p.tokens + " "
		for {
			idx := strings.Index(buf, needle)
			if idx < 0 {
				break
			}
			if !seen[p.canonical] {
				seen[p.canonical] = true
				hits = append(hits, hit{pos: idx, name: p.canonical})
			}
			// Mask the span, keeping the surrounding separators.
			buf = buf[:idx+1] + strings.Repeat("#", len(p.tokens)) + buf[idx+1+len(p.tokens):]
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.name
	}
	return out
}

// Canonicalize maps a known spelling to its gazetteer name; unknown names
// are returned trimmed.
func (e *Extractor) Canonicalize(name string) string {
	if c, ok := e.canonical[tokenize(name)]; ok {
		return c
	}
	return strings.TrimSpace(name)
}

// tokenize folds case and diacritics and turns every non-alphanumeric rune
// into a single separator.
func tokenize(s string) string {
	folded := domain.NormalizeName(s)
	return strings.Join(strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}
