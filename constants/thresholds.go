package constants

import "time"

// Structured extraction limits.
const (
	MinTextLength         = 50
	MaxInputChars         = 10000
	TruncationMarker      = "\n\n[... text truncated ...]"
	DefaultConfidence     = 50
	LowConfidence         = 30
	MapFuzzyMinSimilarity = 80.0
)

// AcceptConfidence is the default overall confidence at which an offer is
// accepted without review. Tunable via PIPELINE_ACCEPT_CONFIDENCE.
const AcceptConfidence = 20

// FallbackTextConfidenceCap bounds the confidence of results built from
// byte-scan text.
const FallbackTextConfidenceCap = 40

// Retry policy shared by the text extractor and the structured engine.
const (
	DefaultMaxRetries = 2
	BackoffBase       = 1000 * time.Millisecond
	BackoffCap        = 10000 * time.Millisecond
	DefaultTimeout    = 60 * time.Second
)

// Plausibility ranges used by the validation checker.
const (
	MinPlausibleYear    = 1990
	MaxPlausibleMileage = 1_000_000
	MinPlausiblePowerPS = 20
	MaxPlausiblePowerPS = 2000
	MinPlausiblePrice   = 500
	MaxPlausiblePrice   = 5_000_000
	MinPlausibleRate    = 10
	MaxPlausibleRate    = 50_000
)
