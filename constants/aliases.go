package constants

// AliasGroup maps a set of free-text spellings onto one canonical key. The key
// itself is matched against reference display names, so it should be spelled
// the way the vocabulary spells it (lower-cased).
type AliasGroup struct {
	CanonicalKey string
	Aliases      []string
}

// AliasRule is the alias configuration of one vocabulary.
type AliasRule struct {
	Confidence int
	Groups     []AliasGroup
}

// AliasTable holds alias rules per vocabulary. Groups are evaluated in order,
// so more specific groups come first.
type AliasTable map[Vocabulary]AliasRule

// DefaultAliases is the built-in alias table for German vehicle offers.
var DefaultAliases = AliasTable{
	VocabularyMakes: {
		Confidence: 85,
		Groups: []AliasGroup{
			{CanonicalKey: "volkswagen", Aliases: []string{"vw", "v.w.", "volkswagen"}},
			{CanonicalKey: "mercedes-benz", Aliases: []string{"mercedes", "benz", "daimler"}},
			{CanonicalKey: "bmw", Aliases: []string{"bayerische motoren werke", "b.m.w."}},
			{CanonicalKey: "škoda", Aliases: []string{"skoda", "škoda"}},
			{CanonicalKey: "citroën", Aliases: []string{"citroen", "citroën"}},
			{CanonicalKey: "alfa romeo", Aliases: []string{"alfa", "alfaromeo"}},
			{CanonicalKey: "land rover", Aliases: []string{"landrover", "range rover"}},
			{CanonicalKey: "mini", Aliases: []string{"mini cooper"}},
			{CanonicalKey: "opel", Aliases: []string{"vauxhall"}},
		},
	},
	VocabularyFuelTypes: {
		Confidence: 90,
		Groups: []AliasGroup{
			{CanonicalKey: "plug-in-hybrid", Aliases: []string{"plug-in", "plugin", "phev"}},
			{CanonicalKey: "hybrid", Aliases: []string{"hybrid", "hev", "mild-hybrid", "mhev"}},
			{CanonicalKey: "elektro", Aliases: []string{"elektro", "electric", "bev", "strom", "e-motor"}},
			{CanonicalKey: "diesel", Aliases: []string{"diesel", "tdi", "cdi", "dci", "crdi", "hdi"}},
			{CanonicalKey: "benzin", Aliases: []string{"benzin", "petrol", "gasoline", "super", "otto", "tsi", "tfsi"}},
			{CanonicalKey: "erdgas", Aliases: []string{"cng", "erdgas", "lpg", "autogas"}},
			{CanonicalKey: "wasserstoff", Aliases: []string{"wasserstoff", "hydrogen", "fcev"}},
		},
	},
	VocabularyTransmissions: {
		Confidence: 88,
		Groups: []AliasGroup{
			{CanonicalKey: "automatik", Aliases: []string{"automatik", "automatic", "auto", "dsg", "steptronic", "tiptronic", "s tronic", "s-tronic", "cvt", "wandler"}},
			{CanonicalKey: "schaltgetriebe", Aliases: []string{"schalt", "manuell", "manual", "handschaltung", "gang"}},
		},
	},
}

// Lookup returns the rule for a vocabulary.
func (t AliasTable) Lookup(v Vocabulary) (AliasRule, bool) {
	r, ok := t[v]
	return r, ok && len(r.Groups) > 0
}
