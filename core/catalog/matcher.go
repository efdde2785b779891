package catalog

import (
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"nexx-gsm/core/determinism"
)

// Candidate is one catalog entry that satisfies the bidirectional substring
// test for a query, with its match quality.
type Candidate struct {
	Device DeviceRecord `json:"device"`

	// Score is the normalized Levenshtein similarity in [0,1]
	Score float64 `json:"score"`

	// Index is the position in catalog order
	Index int `json:"index"`
}

// Normalize lowercases, strips diacritics and collapses whitespace.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// Match returns every device whose name contains the query or is contained
// in it, best match first. Equal scores keep catalog order. An empty query
// matches nothing.
func (s *Store) Match(query string) []Candidate {
	q := Normalize(query)
	if q == "" || s == nil {
		return nil
	}

	var out []Candidate
	for i, name := range s.normalized {
		if !strings.Contains(name, q) && !strings.Contains(q, name) {
			continue
		}
		out = append(out, Candidate{
			Device: s.devices[i],
			Score:  levenshtein.Similarity(q, name, nil),
			Index:  i,
		})
	}

	determinism.SortSlice(out, func(a, b Candidate) bool {
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Index < b.Index
	})
	return out
}

// FindDevice returns the best candidate for query. A miss is not an error:
// callers fall through to category pricing.
func (s *Store) FindDevice(query string) (*DeviceRecord, bool) {
	candidates := s.Match(query)
	if len(candidates) == 0 {
		return nil, false
	}
	d := candidates[0].Device
	return &d, true
}
