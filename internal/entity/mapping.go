package entity

import "github.com/madelhuette/carvitra-sub001/constants"

// ReferenceEntry is one canonical value of a vocabulary.
type ReferenceEntry struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// FieldMappingResult is the outcome of mapping one free-text value.
type FieldMappingResult struct {
	CanonicalID *string             `json:"canonical_id"`
	Confidence  int                 `json:"confidence"`
	MatchType   constants.MatchType `json:"match_type"`
}

// NotFound is the mapping result for values without any match.
func NotFound() FieldMappingResult {
	return FieldMappingResult{MatchType: constants.MatchNotFound}
}

// Matched reports whether a canonical id was found.
func (m FieldMappingResult) Matched() bool { return m.CanonicalID != nil }
