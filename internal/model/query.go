package model

import "strings"

// Query is a lead search: an industry in a location, with optional paging
// over the merged results.
type Query struct {
	Industry string `json:"industry"`
	Location string `json:"location"`
	Offset   int    `json:"offset,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// Valid reports whether both search terms are present.
func (q Query) Valid() bool {
	return strings.TrimSpace(q.Industry) != "" && strings.TrimSpace(q.Location) != ""
}

// String renders the query for logs and run records.
func (q Query) String() string {
	return strings.TrimSpace(q.Industry) + " in " + strings.TrimSpace(q.Location)
}

// Page applies offset and limit to a slice of leads. A zero limit means
// no cap.
func (q Query) Page(leads []LeadRecord) []LeadRecord {
	if q.Offset > 0 {
		if q.Offset >= len(leads) {
			return []LeadRecord{}
		}
		leads = leads[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(leads) {
		leads = leads[:q.Limit]
	}
	return leads
}

// CompanyQuery identifies a single company for enrichment.
type CompanyQuery struct {
	CompanyName string `json:"company_name"`
	Domain      string `json:"domain,omitempty"`
}
