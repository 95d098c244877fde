// Package validate runs plausibility checks over extracted offers. It is pure:
// no I/O and no mutation of its input.
package validate

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/madelhuette/carvitra-sub001/constants"
	"github.com/madelhuette/carvitra-sub001/internal/entity"
)

// kW to PS
const psPerKW = 1.35962

type Limits struct {
	MinYear       int
	MaxMileage    int
	MinPowerPS    int
	MaxPowerPS    int
	MinPrice      float64
	MaxPrice      float64
	MinRate       float64
	MaxRate       float64
	MaxDuration   int
	LowConfidence int
}

func DefaultLimits() Limits {
	return Limits{
		MinYear:       constants.MinPlausibleYear,
		MaxMileage:    constants.MaxPlausibleMileage,
		MinPowerPS:    constants.MinPlausiblePowerPS,
		MaxPowerPS:    constants.MaxPlausiblePowerPS,
		MinPrice:      constants.MinPlausiblePrice,
		MaxPrice:      constants.MaxPlausiblePrice,
		MinRate:       constants.MinPlausibleRate,
		MaxRate:       constants.MaxPlausibleRate,
		MaxDuration:   120,
		LowConfidence: constants.LowConfidence,
	}
}

type Checker struct {
	limits Limits
	now    func() time.Time
}

func NewChecker(limits Limits, now func() time.Time) *Checker {
	if now == nil {
		now = time.Now
	}
	return &Checker{limits: limits, now: now}
}

// Check validates r against the default limits and the current date.
func Check(r entity.StructuredResult) entity.ValidationReport {
	return NewChecker(DefaultLimits(), nil).Check(r)
}

// Check classifies implausible values of r into errors and warnings.
func (c *Checker) Check(r entity.StructuredResult) entity.ValidationReport {
	rep := entity.ValidationReport{Warnings: []string{}, Errors: []string{}}
	warn := func(format string, args ...any) { rep.Warnings = append(rep.Warnings, fmt.Sprintf(format, args...)) }
	fail := func(format string, args ...any) { rep.Errors = append(rep.Errors, fmt.Sprintf(format, args...)) }

	v, com := r.Vehicle, r.Commercial
	l := c.limits

	if blank(v.Make) {
		fail("vehicle.make is missing")
	}
	if blank(v.Model) {
		fail("vehicle.model is missing")
	}

	maxYear := c.now().Year() + 1
	if v.Year != nil && (*v.Year < l.MinYear || *v.Year > maxYear) {
		warn("vehicle.year %d outside plausible range [%d, %d]", *v.Year, l.MinYear, maxYear)
	}
	if v.FirstRegistration != nil {
		if y, ok := RegistrationYear(*v.FirstRegistration); !ok {
			warn("vehicle.first_registration %q is not a recognizable date", *v.FirstRegistration)
		} else if y < l.MinYear || y > maxYear {
			warn("vehicle.first_registration year %d outside plausible range [%d, %d]", y, l.MinYear, maxYear)
		}
	}

	if v.Mileage != nil {
		switch {
		case *v.Mileage < 0:
			warn("vehicle.mileage %d is negative", *v.Mileage)
		case *v.Mileage > l.MaxMileage:
			warn("vehicle.mileage %d km above %d km", *v.Mileage, l.MaxMileage)
		}
		if isNew(v.Condition) && *v.Mileage > 1000 {
			warn("vehicle.condition is new but mileage is %d km", *v.Mileage)
		}
	}

	if v.PowerPS != nil && (*v.PowerPS < l.MinPowerPS || *v.PowerPS > l.MaxPowerPS) {
		warn("vehicle.power_ps %d outside plausible range [%d, %d]", *v.PowerPS, l.MinPowerPS, l.MaxPowerPS)
	}
	if v.PowerKW != nil {
		ps := int(math.Round(float64(*v.PowerKW) * psPerKW))
		if ps < l.MinPowerPS || ps > l.MaxPowerPS {
			warn("vehicle.power_kw %d outside plausible range", *v.PowerKW)
		}
		if v.PowerPS != nil && *v.PowerPS > 0 && math.Abs(float64(ps-*v.PowerPS)) > 0.1*float64(*v.PowerPS) {
			warn("vehicle.power_kw %d does not match power_ps %d", *v.PowerKW, *v.PowerPS)
		}
	}

	if com.Price != nil && (*com.Price < l.MinPrice || *com.Price > l.MaxPrice) {
		warn("commercial.price %.2f outside plausible range [%.0f, %.0f]", *com.Price, l.MinPrice, l.MaxPrice)
	}
	if com.MonthlyRate != nil && (*com.MonthlyRate < l.MinRate || *com.MonthlyRate > l.MaxRate) {
		warn("commercial.monthly_rate %.2f outside plausible range [%.0f, %.0f]", *com.MonthlyRate, l.MinRate, l.MaxRate)
	}
	if com.DownPayment != nil && com.Price != nil && *com.DownPayment > *com.Price {
		warn("commercial.down_payment %.2f exceeds price %.2f", *com.DownPayment, *com.Price)
	}
	if com.DurationMonths != nil && (*com.DurationMonths < 1 || *com.DurationMonths > l.MaxDuration) {
		warn("commercial.duration_months %d outside plausible range [1, %d]", *com.DurationMonths, l.MaxDuration)
	}
	if com.InterestRate != nil && (*com.InterestRate < 0 || *com.InterestRate > 30) {
		warn("commercial.interest_rate %.2f outside plausible range [0, 30]", *com.InterestRate)
	}

	if r.Dealer.Email != nil && !strings.Contains(*r.Dealer.Email, "@") {
		warn("dealer.email %q is not an email address", *r.Dealer.Email)
	}

	if r.Metadata.ConfidenceScore < l.LowConfidence {
		warn("metadata.confidence_score %d below %d", r.Metadata.ConfidenceScore, l.LowConfidence)
	}
	if r.Metadata.Error != nil {
		warn("metadata.error: %s", *r.Metadata.Error)
	}

	rep.IsValid = len(rep.Errors) == 0
	return rep
}

var reYear = regexp.MustCompile(`(?:^|\D)((?:19|20)\d{2})(?:\D|$)`)

// RegistrationYear extracts the year of a first-registration value such as
// "03/2022", "2022-03", "03.2022" or "2022".
func RegistrationYear(s string) (int, bool) {
	m := reYear.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	y, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return y, true
}

func blank(s *string) bool { return s == nil || strings.TrimSpace(*s) == "" }

func isNew(condition *string) bool {
	if condition == nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(*condition)) {
	case "new", "neu", "neuwagen":
		return true
	}
	return false
}
