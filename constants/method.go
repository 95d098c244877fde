package constants

// ExtractionMethod records which strategy produced an ExtractedText.
type ExtractionMethod string

const (
	MethodRemote    ExtractionMethod = "remote"    // conversion service
	MethodPdftotext ExtractionMethod = "pdftotext" // local poppler binary
	MethodByteScan  ExtractionMethod = "byte_scan" // printable-run scan, low confidence
	MethodNone      ExtractionMethod = "none"      // nothing recovered
)

// MatchType classifies how a free-text value was mapped to a reference id.
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchFuzzy    MatchType = "fuzzy"
	MatchFallback MatchType = "fallback" // vocabulary unavailable
	MatchNotFound MatchType = "not_found"
)
