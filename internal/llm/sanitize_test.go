package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumber(t *testing.T) {
	for in, want := range map[string]float64{
		"25.000":     25000,
		"25.000 km":  25000,
		"ca. 15.000": 15000,
		"1.234,56 €": 1234.56,
		"1,234.56":   1234.56,
		"399,00 EUR": 399,
		"6,5":        6.5,
		"6.5":        6.5,
		"0.750":      0.75,
		"1.000.000":  1000000,
		"190 PS":     190,
		"-3,5":       -3.5,
		"12345.678":  12345.678,
	} {
		got, ok := ParseNumber(in)
		require.True(t, ok, in)
		assert.InDelta(t, want, got, 1e-9, in)
	}
	for _, in := range []string{"", "abc", "€"} {
		_, ok := ParseNumber(in)
		assert.False(t, ok, in)
	}
}

func TestParseBool(t *testing.T) {
	for in, want := range map[string]bool{"ja": true, "Yes": true, "vorhanden": true, "nein": false, "false": false} {
		got, ok := ParseBool(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseBool("vielleicht")
	assert.False(t, ok)
}

func TestSanitize_CoercesAndDrops(t *testing.T) {
	raw := []byte(`{
		"vehicle": {"make": " BMW ", "model": "320d", "mileage": "25.000 km", "power_ps": 190.0,
		            "color": null, "variant": "", "doors": "n/a"},
		"commercial":       {"monthly_rate": "399,00 €", "vat_deductible": "ja"},
		"dealer":           {"postal_code": 80331},
		"features":         {},
		"confidence_score": 85
	}`)

	out, dropped, err := Sanitize(raw, OfferSchema(), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"vehicle":          {"make": "BMW", "model": "320d", "mileage": 25000, "power_ps": 190},
		"commercial":       {"monthly_rate": 399, "vat_deductible": true},
		"dealer":           {"postal_code": "80331"},
		"confidence_score": 85
	}`, string(out))
	assert.ElementsMatch(t, []string{
		"vehicle.color(null)", "vehicle.variant(empty)", "vehicle.doors(empty)",
	}, dropped)

	require.NoError(t, ValidateJSONAgainstSchema(OfferSchema(), out))
}

func TestSanitize_KeepsUncoercibleForValidation(t *testing.T) {
	out, _, err := Sanitize([]byte(`{"vehicle":{"mileage":"viele"}}`), OfferSchema(), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"vehicle":{"mileage":"viele"}}`, string(out))
	assert.Error(t, ValidateJSONAgainstSchema(OfferSchema(), out))
}

func TestSanitize_KeepsUnknownKeysForValidation(t *testing.T) {
	for _, raw := range []string{
		`{"vehicle":{"make":"BMW","wheels":4}}`,
		`{"vehicle":{"make":"BMW"},"notes":"extra"}`,
	} {
		out, dropped, err := Sanitize([]byte(raw), OfferSchema(), nil)
		require.NoError(t, err)
		assert.JSONEq(t, raw, string(out))
		assert.Empty(t, dropped)
		assert.Error(t, ValidateJSONAgainstSchema(OfferSchema(), out), raw)
	}
}

func TestSanitize_DecimalFields(t *testing.T) {
	raw := []byte(`{
		"vehicle":    {"consumption_l_100km": "5.125 l/100km", "mileage": "5.125 km"},
		"commercial": {"interest_rate": "3.990 %", "price": "3.990 €"}
	}`)
	out, _, err := Sanitize(raw, OfferSchema(), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"vehicle":    {"consumption_l_100km": 5.125, "mileage": 5125},
		"commercial": {"interest_rate": 3.99, "price": 3990}
	}`, string(out))
}

func TestParseDecimal(t *testing.T) {
	for in, want := range map[string]float64{
		"3.990 %": 3.99,
		"3,99 %":  3.99,
		"6.5":     6.5,
		"1.234,5": 1234.5,
		"4":       4,
	} {
		got, ok := ParseDecimal(in)
		require.True(t, ok, in)
		assert.InDelta(t, want, got, 1e-9, in)
	}
	_, ok := ParseDecimal("k.A.")
	assert.False(t, ok)
}

func TestCoerceField(t *testing.T) {
	rate, ok := LookupField("commercial.interest_rate")
	require.True(t, ok)
	assert.True(t, rate.Decimal())
	assert.Equal(t, 3.99, CoerceField("3.990", rate))

	price, ok := LookupField("commercial.price")
	require.True(t, ok)
	assert.False(t, price.Decimal())
	assert.Equal(t, 3990.0, CoerceField("3.990", price))
}

func TestSanitize_RejectsNonObject(t *testing.T) {
	_, _, err := Sanitize([]byte(`[1,2]`), OfferSchema(), nil)
	assert.Error(t, err)
}

func TestCoerce(t *testing.T) {
	assert.Equal(t, int64(399), Coerce("399", TypeInteger))
	assert.Equal(t, 1.5, Coerce("1,5", TypeInteger))
	assert.Equal(t, int64(2022), Coerce(2022.0, TypeInteger))
	assert.Equal(t, 6.5, Coerce("6,5 l", TypeNumber))
	assert.Equal(t, true, Coerce("Serie", TypeBoolean))
	assert.Equal(t, "2022", Coerce(2022.0, TypeString))
	assert.Equal(t, "Diesel", Coerce("Diesel", TypeString))
}
