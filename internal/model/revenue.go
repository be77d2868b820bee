package model

import "strings"

// RevenueResult is the outcome of a revenue lookup. On success the first
// four fields are set; on failure Error and AttemptedVariants are.
type RevenueResult struct {
	Company           string   `json:"company"`
	EstimatedRevenue  string   `json:"estimated_revenue,omitempty"`
	MatchedVariant    string   `json:"matched_variant,omitempty"`
	URL               string   `json:"url,omitempty"`
	Error             string   `json:"error,omitempty"`
	AttemptedVariants []string `json:"attempted_variants,omitempty"`
}

// Failed reports whether the lookup ended without a revenue figure.
func (r RevenueResult) Failed() bool {
	return r.Error != ""
}

// RevenueFields returns the revenue CSV header.
func RevenueFields() []string {
	return []string{"company", "estimated_revenue", "matched_variant", "url", "error", "attempted_variants"}
}

// Row returns the CSV row for the result.
func (r RevenueResult) Row() []string {
	return []string{
		r.Company,
		r.EstimatedRevenue,
		r.MatchedVariant,
		r.URL,
		r.Error,
		strings.Join(r.AttemptedVariants, "|"),
	}
}
