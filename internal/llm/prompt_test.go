package llm

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/madelhuette/carvitra-sub001/constants"
)

func TestTruncate(t *testing.T) {
	short := "BMW 320d"
	got, cut := Truncate(short, 10)
	assert.False(t, cut)
	assert.Equal(t, short, got)

	long := strings.Repeat("ä", 12)
	got, cut = Truncate(long, 10)
	assert.True(t, cut)
	assert.Equal(t, strings.Repeat("ä", 10)+constants.TruncationMarker, got)
	assert.True(t, utf8.ValidString(got))
}

func TestBuildOfferPrompt_TruncatesLongText(t *testing.T) {
	text := strings.Repeat("x", constants.MaxInputChars+500)
	p := BuildOfferPrompt(text)
	assert.Contains(t, p, constants.TruncationMarker)
	assert.NotContains(t, p, strings.Repeat("x", constants.MaxInputChars+1))
	assert.Contains(t, p, "monthly_rate (number)")
}

func TestBuildFieldPrompt(t *testing.T) {
	p := BuildFieldPrompt("Leasingrate 399 EUR", "commercial.monthly_rate", "monthly rate in EUR")
	assert.Contains(t, p, "Field: commercial.monthly_rate")
	assert.Contains(t, p, "Meaning: monthly rate in EUR")
	assert.Contains(t, p, "Leasingrate 399 EUR")
	assert.NotContains(t, p, constants.TruncationMarker)
}
