package validate

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madelhuette/carvitra-sub001/internal/entity"
)

func strp(s string) *string     { return &s }
func intp(i int) *int           { return &i }
func floatp(f float64) *float64 { return &f }

var fixedNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func checker() *Checker {
	return NewChecker(DefaultLimits(), func() time.Time { return fixedNow })
}

func plausible() entity.StructuredResult {
	return entity.StructuredResult{
		Vehicle: entity.Vehicle{
			Make:              strp("Volkswagen"),
			Model:             strp("Golf"),
			Year:              intp(2022),
			FirstRegistration: strp("03/2022"),
			Mileage:           intp(15000),
			PowerPS:           intp(150),
			PowerKW:           intp(110),
		},
		Commercial: entity.Commercial{
			Price:       floatp(25000),
			MonthlyRate: floatp(299),
		},
		Metadata: entity.Metadata{ConfidenceScore: 85, ExtractionTimestamp: fixedNow},
	}
}

func TestCheck_PlausibleOfferIsCleanlyValid(t *testing.T) {
	rep := checker().Check(plausible())
	assert.True(t, rep.IsValid)
	assert.Empty(t, rep.Errors)
	assert.Empty(t, rep.Warnings)
	assert.NotNil(t, rep.Errors)
	assert.NotNil(t, rep.Warnings)
}

func TestCheck_MissingIdentityIsAnError(t *testing.T) {
	r := plausible()
	r.Vehicle.Make = nil
	r.Vehicle.Model = strp("   ")

	rep := checker().Check(r)
	assert.False(t, rep.IsValid)
	assert.Equal(t, []string{"vehicle.make is missing", "vehicle.model is missing"}, rep.Errors)
}

func TestCheck_EmptyResult(t *testing.T) {
	rep := checker().Check(entity.StructuredResult{})
	assert.False(t, rep.IsValid)
	assert.Len(t, rep.Errors, 2)
	require.Len(t, rep.Warnings, 1)
	assert.Contains(t, rep.Warnings[0], "confidence_score 0")
}

func TestCheck_Warnings(t *testing.T) {
	cases := []struct {
		name string
		mutate func(r *entity.StructuredResult)
		warn string
	}{
		{"year too old", func(r *entity.StructuredResult) { r.Vehicle.Year = intp(1985) }, "vehicle.year 1985"},
		{"year in the future", func(r *entity.StructuredResult) { r.Vehicle.Year = intp(2028) }, "vehicle.year 2028"},
		{"registration too old", func(r *entity.StructuredResult) { r.Vehicle.FirstRegistration = strp("03/1985") }, "first_registration year 1985"},
		{"registration unreadable", func(r *entity.StructuredResult) { r.Vehicle.FirstRegistration = strp("bald") }, "not a recognizable date"},
		{"mileage", func(r *entity.StructuredResult) { r.Vehicle.Mileage = intp(1_000_001) }, "vehicle.mileage 1000001"},
		{"negative mileage", func(r *entity.StructuredResult) { r.Vehicle.Mileage = intp(-1) }, "is negative"},
		{"power too low", func(r *entity.StructuredResult) { r.Vehicle.PowerPS, r.Vehicle.PowerKW = intp(15), nil }, "vehicle.power_ps 15"},
		{"power too high", func(r *entity.StructuredResult) { r.Vehicle.PowerPS, r.Vehicle.PowerKW = intp(2001), nil }, "vehicle.power_ps 2001"},
		{"power units disagree", func(r *entity.StructuredResult) { r.Vehicle.PowerKW = intp(150) }, "does not match power_ps"},
		{"price too low", func(r *entity.StructuredResult) { r.Commercial.Price = floatp(499) }, "commercial.price 499.00"},
		{"price too high", func(r *entity.StructuredResult) { r.Commercial.Price = floatp(5_000_001) }, "commercial.price 5000001.00"},
		{"rate too low", func(r *entity.StructuredResult) { r.Commercial.MonthlyRate = floatp(9) }, "commercial.monthly_rate 9.00"},
		{"rate too high", func(r *entity.StructuredResult) { r.Commercial.MonthlyRate = floatp(50_001) }, "commercial.monthly_rate 50001.00"},
		{"down payment above price", func(r *entity.StructuredResult) { r.Commercial.DownPayment = floatp(30000) }, "down_payment"},
		{"duration", func(r *entity.StructuredResult) { r.Commercial.DurationMonths = intp(240) }, "duration_months 240"},
		{"low confidence", func(r *entity.StructuredResult) { r.Metadata.ConfidenceScore = 29 }, "confidence_score 29 below 30"},
		{"new with mileage", func(r *entity.StructuredResult) { r.Vehicle.Condition = strp("Neu") }, "condition is new"},
		{"email", func(r *entity.StructuredResult) { r.Dealer.Email = strp("info.autohaus.de") }, "dealer.email"},
		{"extraction error", func(r *entity.StructuredResult) { r.Metadata.Error = strp("boom") }, "metadata.error: boom"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := plausible()
			tc.mutate(&r)

			rep := checker().Check(r)
			assert.True(t, rep.IsValid, "warnings never invalidate")
			require.Len(t, rep.Warnings, 1, "%v", rep.Warnings)
			assert.Contains(t, rep.Warnings[0], tc.warn)
		})
	}
}

func TestCheck_Boundaries(t *testing.T) {
	r := plausible()
	r.Vehicle.Year = intp(2027)
	r.Vehicle.FirstRegistration = strp("1990")
	r.Vehicle.Mileage = intp(1_000_000)
	r.Vehicle.PowerPS, r.Vehicle.PowerKW = intp(20), nil
	r.Commercial.Price = floatp(500)
	r.Commercial.MonthlyRate = floatp(50_000)
	r.Metadata.ConfidenceScore = 30

	rep := checker().Check(r)
	assert.True(t, rep.IsValid)
	assert.Empty(t, rep.Warnings)
}

func TestCheck_DoesNotMutate(t *testing.T) {
	r := plausible()
	r.Vehicle.Make = nil
	r.Commercial.Price = floatp(1)
	before, err := json.Marshal(r)
	require.NoError(t, err)

	_ = checker().Check(r)

	after, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestCheck_UsesCurrentDate(t *testing.T) {
	r := plausible()
	r.Vehicle.Year = intp(time.Now().Year() + 1)
	assert.Empty(t, Check(r).Warnings)
}

func TestRegistrationYear(t *testing.T) {
	for in, want := range map[string]int{
		"03/2022":     2022,
		"2022-03":     2022,
		"03.2019":     2019,
		"1998":        1998,
		" EZ 07/2021": 2021,
	} {
		got, ok := RegistrationYear(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "neu", "12/22", "31999"} {
		_, ok := RegistrationYear(in)
		assert.False(t, ok, in)
	}
}
