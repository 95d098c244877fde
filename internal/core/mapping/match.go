package mapping

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agext/levenshtein"

	"github.com/madelhuette/carvitra-sub001/constants"
	"github.com/madelhuette/carvitra-sub001/internal/entity"
)

// Similarity returns (maxLen - distance) / maxLen * 100 over runes of the
// lower-cased inputs.
func Similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 100
	}
	d := levenshtein.Distance(a, b, nil)
	return float64(maxLen-d) / float64(maxLen) * 100
}

// Match runs exact, fuzzy and alias matching of value against entries.
// It never returns a fuzzy candidate below minSimilarity.
func Match(entries []entity.ReferenceEntry, value string, rule constants.AliasRule, minSimilarity float64) entity.FieldMappingResult {
	input := strings.TrimSpace(value)
	if input == "" || len(entries) == 0 {
		return entity.NotFound()
	}

	for _, e := range entries {
		if strings.EqualFold(strings.TrimSpace(e.DisplayName), input) {
			return matched(e, 100, constants.MatchExact)
		}
	}

	lower := strings.ToLower(input)
	bestIdx, bestDist, bestSim := -1, math.MaxInt, 0.0
	for i, e := range entries {
		name := strings.ToLower(strings.TrimSpace(e.DisplayName))
		sim := Similarity(lower, name)
		if sim < minSimilarity {
			continue
		}
		if d := levenshtein.Distance(lower, name, nil); d < bestDist {
			bestIdx, bestDist, bestSim = i, d, sim
		}
	}
	if bestIdx >= 0 {
		return matched(entries[bestIdx], int(math.Round(bestSim)), constants.MatchFuzzy)
	}

	if e, ok := MatchAlias(rule, input, entries); ok {
		return matched(e, rule.Confidence, constants.MatchFuzzy)
	}
	return entity.NotFound()
}

// MatchAlias finds the first alias group that occurs in input and returns the
// first entry whose display name carries the group's canonical key or one of
// its aliases.
func MatchAlias(rule constants.AliasRule, input string, entries []entity.ReferenceEntry) (entity.ReferenceEntry, bool) {
	in := strings.ToLower(strings.TrimSpace(input))
	if in == "" {
		return entity.ReferenceEntry{}, false
	}
	for _, g := range rule.Groups {
		if !groupMatches(g, in) {
			continue
		}
		for _, e := range entries {
			if entryMatches(g, strings.ToLower(strings.TrimSpace(e.DisplayName))) {
				return e, true
			}
		}
	}
	return entity.ReferenceEntry{}, false
}

func groupMatches(g constants.AliasGroup, in string) bool {
	if strings.Contains(in, g.CanonicalKey) {
		return true
	}
	for _, a := range g.Aliases {
		if strings.Contains(in, a) {
			return true
		}
	}
	return false
}

func entryMatches(g constants.AliasGroup, name string) bool {
	if strings.Contains(name, g.CanonicalKey) {
		return true
	}
	for _, a := range g.Aliases {
		// short aliases like "vw" only match whole names
		if utf8.RuneCountInString(a) < 3 {
			if name == a {
				return true
			}
			continue
		}
		if strings.Contains(name, a) {
			return true
		}
	}
	return false
}

func matched(e entity.ReferenceEntry, confidence int, mt constants.MatchType) entity.FieldMappingResult {
	id := e.ID
	return entity.FieldMappingResult{CanonicalID: &id, Confidence: confidence, MatchType: mt}
}
