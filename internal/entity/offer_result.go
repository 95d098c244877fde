package entity

import "time"

// OfferResult is the outcome of running one document through the pipeline.
type OfferResult struct {
	JobID    string                        `json:"job_id"`
	Source   string                        `json:"source,omitempty"`
	Text     ExtractedText                 `json:"text"`
	Result   StructuredResult              `json:"result"`
	Report   ValidationReport              `json:"report"`
	Mappings map[string]FieldMappingResult `json:"mappings,omitempty"`
	Resolved []string                      `json:"resolved_fields,omitempty"`
	Accepted bool                          `json:"accepted"`
	Elapsed  time.Duration                 `json:"elapsed_ns"`
}
