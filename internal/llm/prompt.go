package llm

import (
	"strings"
	"unicode/utf8"

	"github.com/madelhuette/carvitra-sub001/constants"
)

// OfferSystemPrompt is the fixed instruction for full-offer extraction.
const OfferSystemPrompt = "You are an extraction engine for German vehicle offers (dealer PDFs for purchase, leasing and financing). " +
	"Return ONLY one JSON object that matches the field list below, with no prose and no markdown. " +
	"Omit every field that is not stated in the document; never output null, empty strings or guesses. " +
	"Write numbers as JSON numbers without units or thousands separators (25.000 km becomes 25000). " +
	"Write equipment flags as true only when the equipment is listed. " +
	"Copy make, fuel type and transmission as written in the document. " +
	"Report " + ConfidenceKey + " from 0 to 100 for how certain and complete the extraction is."

// FieldSystemPrompt is the instruction for single-field resolution.
const FieldSystemPrompt = "You read German vehicle offers and answer with exactly one value. " +
	"No explanation, no quotes, no units unless asked. Answer null if the document does not state the value."

// Truncate cuts text to at most limit characters and reports whether it did.
// The truncation marker is appended after the cut.
func Truncate(text string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text, false
	}
	runes := []rune(text)
	return string(runes[:limit]) + constants.TruncationMarker, true
}

// BuildOfferPrompt packages the field list and the (truncated) document text.
func BuildOfferPrompt(text string) string {
	body, _ := Truncate(strings.TrimSpace(text), constants.MaxInputChars)

	var b strings.Builder
	b.WriteString("Fields (group, key, JSON type, meaning):\n")
	b.WriteString(DescribeSchema())
	b.WriteString("\nDocument text:\n")
	b.WriteString(body)
	b.WriteString("\n\nReturn ONLY the JSON object.")
	return b.String()
}

// BuildFieldPrompt asks for one value of the document.
func BuildFieldPrompt(text, fieldName, description string) string {
	body, _ := Truncate(strings.TrimSpace(text), constants.MaxInputChars)

	var b strings.Builder
	b.WriteString("Field: ")
	b.WriteString(fieldName)
	if d := strings.TrimSpace(description); d != "" {
		b.WriteString("\nMeaning: ")
		b.WriteString(d)
	}
	b.WriteString("\n\nDocument text:\n")
	b.WriteString(body)
	b.WriteString("\n\nValue:")
	return b.String()
}
