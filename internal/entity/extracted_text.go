package entity

import "github.com/madelhuette/carvitra-sub001/constants"

// ExtractedText is the plain text recovered from a Document. Pages are
// separated by form feeds. Empty text without an Error is a legitimate
// "no text extractable" outcome, empty text with an Error is a failure.
type ExtractedText struct {
	Text          string                     `json:"text"`
	PageCount     int                        `json:"page_count"`
	Method        constants.ExtractionMethod `json:"method"`
	LowConfidence bool                       `json:"low_confidence,omitempty"`
	Error         string                     `json:"extraction_error,omitempty"`
	PrimaryError  string                     `json:"primary_error,omitempty"`
	Meta          DocumentMeta               `json:"meta"`
}

// NoText reports the "legitimately empty" state.
func (t ExtractedText) NoText() bool { return t.Text == "" && t.Error == "" }

// Failed reports a failed extraction.
func (t ExtractedText) Failed() bool { return t.Error != "" }
