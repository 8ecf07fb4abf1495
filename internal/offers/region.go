package offers

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ofertas-ai/offers-cli/internal/model"
)

// RegionKey returns a canonical lookup key for a region: accent-folded,
// lowercased, whitespace-collapsed ("SP"/"São Paulo" → "sp/sao paulo").
// Used for store lookups so repeated searches of the same city match.
func RegionKey(r model.Region) string {
	state := canonical(r.State)
	city := canonical(r.City)
	return state + "/" + city
}

func canonical(s string) string {
	s = foldAccents(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// foldAccents strips combining marks after NFD decomposition.
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
