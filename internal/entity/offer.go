package entity

import "time"

// Vehicle holds the vehicle attributes of an offer.
type Vehicle struct {
	Make              *string  `json:"make,omitempty"`
	Model             *string  `json:"model,omitempty"`
	Variant           *string  `json:"variant,omitempty"`
	BodyType          *string  `json:"body_type,omitempty"`
	Condition         *string  `json:"condition,omitempty"`
	FirstRegistration *string  `json:"first_registration,omitempty"`
	Year              *int     `json:"year,omitempty"`
	Mileage           *int     `json:"mileage,omitempty"`
	PowerPS           *int     `json:"power_ps,omitempty"`
	PowerKW           *int     `json:"power_kw,omitempty"`
	FuelType          *string  `json:"fuel_type,omitempty"`
	Transmission      *string  `json:"transmission,omitempty"`
	Color             *string  `json:"color,omitempty"`
	Doors             *int     `json:"doors,omitempty"`
	Seats             *int     `json:"seats,omitempty"`
	Consumption       *float64 `json:"consumption_l_100km,omitempty"`
	CO2Emissions      *int     `json:"co2_g_km,omitempty"`
}

// Commercial holds the price and financing terms.
type Commercial struct {
	OfferType      *string  `json:"offer_type,omitempty"`
	Price          *float64 `json:"price,omitempty"`
	ListPrice      *float64 `json:"list_price,omitempty"`
	MonthlyRate    *float64 `json:"monthly_rate,omitempty"`
	DownPayment    *float64 `json:"down_payment,omitempty"`
	FinalPayment   *float64 `json:"final_payment,omitempty"`
	DurationMonths *int     `json:"duration_months,omitempty"`
	AnnualMileage  *int     `json:"annual_mileage,omitempty"`
	InterestRate   *float64 `json:"interest_rate,omitempty"`
	TransferCost   *float64 `json:"transfer_cost,omitempty"`
	Currency       *string  `json:"currency,omitempty"`
	VATDeductible  *bool    `json:"vat_deductible,omitempty"`
}

// Dealer holds the contact attributes of the offering dealer.
type Dealer struct {
	Name          *string `json:"name,omitempty"`
	ContactPerson *string `json:"contact_person,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	Email         *string `json:"email,omitempty"`
	Street        *string `json:"street,omitempty"`
	PostalCode    *string `json:"postal_code,omitempty"`
	City          *string `json:"city,omitempty"`
	Website       *string `json:"website,omitempty"`
}

// Features holds equipment flags.
type Features struct {
	Navigation      *bool `json:"navigation,omitempty"`
	AirConditioning *bool `json:"air_conditioning,omitempty"`
	HeatedSeats     *bool `json:"heated_seats,omitempty"`
	ParkingSensors  *bool `json:"parking_sensors,omitempty"`
	RearCamera      *bool `json:"rear_camera,omitempty"`
	CruiseControl   *bool `json:"cruise_control,omitempty"`
	LeatherSeats    *bool `json:"leather_seats,omitempty"`
	Sunroof         *bool `json:"sunroof,omitempty"`
	TowBar          *bool `json:"tow_bar,omitempty"`
	LEDHeadlights   *bool `json:"led_headlights,omitempty"`
	AllWheelDrive   *bool `json:"all_wheel_drive,omitempty"`
	Bluetooth       *bool `json:"bluetooth,omitempty"`
}

// Metadata describes how a StructuredResult was produced. A ConfidenceScore of
// 0 means no field of the result should be trusted.
type Metadata struct {
	ConfidenceScore     int       `json:"confidence_score"`
	ExtractionTimestamp time.Time `json:"extraction_timestamp"`
	ModelIdentifier     string    `json:"model_identifier,omitempty"`
	TokensConsumed      *int      `json:"tokens_consumed,omitempty"`
	Error               *string   `json:"error,omitempty"`
}

// StructuredResult is the normalized offer extracted from a document.
type StructuredResult struct {
	Vehicle    Vehicle    `json:"vehicle"`
	Commercial Commercial `json:"commercial"`
	Dealer     Dealer     `json:"dealer"`
	Features   Features   `json:"features"`
	Metadata   Metadata   `json:"metadata"`
}

// FailedResult is the zero-confidence shape returned for every expected
// extraction failure.
func FailedResult(reason, model string, at time.Time) StructuredResult {
	return StructuredResult{
		Metadata: Metadata{
			ConfidenceScore:     0,
			ExtractionTimestamp: at,
			ModelIdentifier:     model,
			Error:               &reason,
		},
	}
}

// Trusted reports whether any field of the result may be used.
func (r StructuredResult) Trusted() bool { return r.Metadata.ConfidenceScore > 0 }
