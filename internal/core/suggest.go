package core

import (
	"sort"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// Suggestion is a candidate heading for a broken link, scored in [0,1].
type Suggestion struct {
	Heading string
	Score   float64
}

// Rank scores every candidate against the broken heading text with the Jaro
// metric (case-insensitive) and returns them best first. Ties keep the
// candidates' original order. No threshold is applied.
func Rank(broken string, candidates []string) []Suggestion {
	jaro := metrics.NewJaro()
	jaro.CaseSensitive = false

	out := make([]Suggestion, len(candidates))
	for i, c := range candidates {
		out[i] = Suggestion{Heading: c, Score: strutil.Similarity(broken, c, jaro)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// TopK returns at most k suggestions. k <= 0 returns all of them.
func TopK(s []Suggestion, k int) []Suggestion {
	if k <= 0 || len(s) <= k {
		return s
	}
	return s[:k]
}
