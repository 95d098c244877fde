package entity

import "time"

// DocumentMeta is the container metadata of an offer PDF.
type DocumentMeta struct {
	PageCount  int        `json:"page_count"`
	Title      string     `json:"title,omitempty"`
	Author     string     `json:"author,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
}

// Document is an uploaded offer. Either URL or Data must be set; it is never
// mutated once extraction begins.
type Document struct {
	Name string
	URL  string
	Data []byte
	Meta DocumentMeta
}

// HasReference reports whether the document can be fetched by the conversion service.
func (d Document) HasReference() bool { return d.URL != "" }
