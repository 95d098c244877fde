package llm

import (
	"fmt"
	"strings"
)

// JSON types used by offer fields.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
)

// ConfidenceKey is the top-level key the model reports its confidence under.
const ConfidenceKey = "confidence_score"

// Field describes one extractable leaf of an offer, addressed by its dotted path.
type Field struct {
	Path        string
	Type        string
	Description string
}

// Group returns the top-level group of the field ("vehicle" for "vehicle.make").
func (f Field) Group() string {
	g, _, _ := strings.Cut(f.Path, ".")
	return g
}

// decimalFields hold small quantities where "3.990" means 3.99, never 3990.
var decimalFields = map[string]struct{}{
	"vehicle.consumption_l_100km": {},
	"commercial.interest_rate":    {},
}

// Decimal reports whether a single dot in the field's value is always a decimal point.
func (f Field) Decimal() bool {
	_, ok := decimalFields[f.Path]
	return ok
}

// Key returns the leaf key of the field ("make" for "vehicle.make").
func (f Field) Key() string {
	_, k, _ := strings.Cut(f.Path, ".")
	return k
}

// OfferGroups lists the top-level groups in prompt order.
var OfferGroups = []string{"vehicle", "commercial", "dealer", "features"}

// OfferFields mirrors the json tags of entity.StructuredResult.
var OfferFields = []Field{
	{"vehicle.make", TypeString, "manufacturer / brand, e.g. BMW, Volkswagen"},
	{"vehicle.model", TypeString, "model name without the brand, e.g. 320d Touring, Golf"},
	{"vehicle.variant", TypeString, "trim line or equipment variant, e.g. M Sport, Life"},
	{"vehicle.body_type", TypeString, "body type, e.g. Limousine, Kombi, SUV"},
	{"vehicle.condition", TypeString, "new, used, demonstrator or annual car (Neuwagen, Gebrauchtwagen, Vorführwagen, Jahreswagen)"},
	{"vehicle.first_registration", TypeString, "first registration (EZ) as MM/YYYY"},
	{"vehicle.year", TypeInteger, "model or construction year, four digits"},
	{"vehicle.mileage", TypeInteger, "odometer reading in km"},
	{"vehicle.power_ps", TypeInteger, "engine power in PS"},
	{"vehicle.power_kw", TypeInteger, "engine power in kW"},
	{"vehicle.fuel_type", TypeString, "fuel type as written, e.g. Diesel, Benzin, Elektro, Hybrid"},
	{"vehicle.transmission", TypeString, "transmission as written, e.g. Automatik, Schaltgetriebe"},
	{"vehicle.color", TypeString, "exterior color"},
	{"vehicle.doors", TypeInteger, "number of doors"},
	{"vehicle.seats", TypeInteger, "number of seats"},
	{"vehicle.consumption_l_100km", TypeNumber, "combined consumption in l/100km"},
	{"vehicle.co2_g_km", TypeInteger, "combined CO2 emissions in g/km"},

	{"commercial.offer_type", TypeString, "purchase, leasing or financing (Kauf, Leasing, Finanzierung)"},
	{"commercial.price", TypeNumber, "purchase price in EUR"},
	{"commercial.list_price", TypeNumber, "list price (UVP) in EUR"},
	{"commercial.monthly_rate", TypeNumber, "monthly leasing or financing rate in EUR"},
	{"commercial.down_payment", TypeNumber, "down payment (Anzahlung, Sonderzahlung) in EUR"},
	{"commercial.final_payment", TypeNumber, "final installment (Schlussrate) in EUR"},
	{"commercial.duration_months", TypeInteger, "contract duration (Laufzeit) in months"},
	{"commercial.annual_mileage", TypeInteger, "included annual mileage (Jahresfahrleistung) in km"},
	{"commercial.interest_rate", TypeNumber, "effective annual interest rate in percent"},
	{"commercial.transfer_cost", TypeNumber, "transfer and registration costs (Überführung, Zulassung) in EUR"},
	{"commercial.currency", TypeString, "ISO 4217 currency code, usually EUR"},
	{"commercial.vat_deductible", TypeBoolean, "whether VAT is shown separately (MwSt. ausweisbar)"},

	{"dealer.name", TypeString, "dealership name"},
	{"dealer.contact_person", TypeString, "named contact person"},
	{"dealer.phone", TypeString, "phone number as written"},
	{"dealer.email", TypeString, "email address"},
	{"dealer.street", TypeString, "street and house number"},
	{"dealer.postal_code", TypeString, "postal code"},
	{"dealer.city", TypeString, "city"},
	{"dealer.website", TypeString, "website URL"},

	{"features.navigation", TypeBoolean, "navigation system"},
	{"features.air_conditioning", TypeBoolean, "air conditioning or climate control"},
	{"features.heated_seats", TypeBoolean, "heated seats"},
	{"features.parking_sensors", TypeBoolean, "parking sensors (PDC)"},
	{"features.rear_camera", TypeBoolean, "rear view camera"},
	{"features.cruise_control", TypeBoolean, "cruise control (Tempomat)"},
	{"features.leather_seats", TypeBoolean, "leather upholstery"},
	{"features.sunroof", TypeBoolean, "sunroof or panoramic roof"},
	{"features.tow_bar", TypeBoolean, "tow bar (AHK)"},
	{"features.led_headlights", TypeBoolean, "LED or matrix headlights"},
	{"features.all_wheel_drive", TypeBoolean, "all-wheel drive (xDrive, 4MOTION, quattro, 4MATIC)"},
	{"features.bluetooth", TypeBoolean, "bluetooth hands-free"},
}

var fieldsByPath = func() map[string]Field {
	m := make(map[string]Field, len(OfferFields))
	for _, f := range OfferFields {
		m[f.Path] = f
	}
	return m
}()

// LookupField returns the field registered under a dotted path.
func LookupField(path string) (Field, bool) {
	f, ok := fieldsByPath[strings.TrimSpace(path)]
	return f, ok
}

// OfferSchema returns the JSON-Schema of a model reply as a generic map. Every
// leaf is optional; unknown keys are rejected.
func OfferSchema() map[string]any {
	groups := make(map[string]map[string]any, len(OfferGroups))
	for _, g := range OfferGroups {
		groups[g] = map[string]any{}
	}
	for _, f := range OfferFields {
		groups[f.Group()][f.Key()] = map[string]any{"type": f.Type, "description": f.Description}
	}

	props := map[string]any{
		ConfidenceKey: map[string]any{"type": TypeNumber},
	}
	for g, p := range groups {
		props[g] = map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties":           p,
		}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}

// DescribeSchema renders the field list for a prompt, one field per line.
func DescribeSchema() string {
	var b strings.Builder
	for _, g := range OfferGroups {
		fmt.Fprintf(&b, "%s:\n", g)
		for _, f := range OfferFields {
			if f.Group() != g {
				continue
			}
			fmt.Fprintf(&b, "  %s (%s): %s\n", f.Key(), f.Type, f.Description)
		}
	}
	fmt.Fprintf(&b, "%s (number 0-100): your confidence that the extraction is correct and complete\n", ConfidenceKey)
	return b.String()
}
