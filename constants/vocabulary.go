package constants

import "strings"

// Vocabulary names a reference table of canonical (id, display name) pairs.
type Vocabulary string

const (
	VocabularyMakes         Vocabulary = "makes"
	VocabularyFuelTypes     Vocabulary = "fuel_types"
	VocabularyTransmissions Vocabulary = "transmissions"
)

var allVocabularies = []Vocabulary{
	VocabularyMakes,
	VocabularyFuelTypes,
	VocabularyTransmissions,
}

// AllVocabularies returns every known vocabulary in a stable order.
func AllVocabularies() []Vocabulary {
	out := make([]Vocabulary, len(allVocabularies))
	copy(out, allVocabularies)
	return out
}

// ParseVocabulary accepts the canonical name plus a few common spellings.
func ParseVocabulary(s string) (Vocabulary, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))

	synonyms := map[string]Vocabulary{
		"make":         VocabularyMakes,
		"brand":        VocabularyMakes,
		"brands":       VocabularyMakes,
		"fuel":         VocabularyFuelTypes,
		"fuel_type":    VocabularyFuelTypes,
		"transmission": VocabularyTransmissions,
		"gearbox":      VocabularyTransmissions,
	}
	if v, ok := synonyms[normalized]; ok {
		return v, true
	}
	for _, v := range allVocabularies {
		if normalized == string(v) {
			return v, true
		}
	}
	return "", false
}
