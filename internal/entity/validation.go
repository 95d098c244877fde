package entity

// ValidationReport classifies implausible values of a StructuredResult.
// Errors block downstream trust; warnings are informational.
type ValidationReport struct {
	IsValid  bool     `json:"is_valid"`
	Warnings []string `json:"warnings"`
	Errors   []string `json:"errors"`
}
