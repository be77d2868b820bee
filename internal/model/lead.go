package model

import "strings"

// NA marks a field the sources could not supply. Every LeadRecord field is
// either a real value or NA, never empty.
const NA = "NA"

// Lead field names, in CSV column order.
const (
	FieldCompany  = "company"
	FieldIndustry = "industry"
	FieldStreet   = "street"
	FieldCity     = "city"
	FieldState    = "state"
	FieldPhone    = "phone"
	FieldWebsite  = "website"
	FieldRating   = "rating"
	FieldRevenue  = "revenue"
	FieldSource   = "source"
)

var leadFields = []string{
	FieldCompany, FieldIndustry, FieldStreet, FieldCity, FieldState,
	FieldPhone, FieldWebsite, FieldRating, FieldRevenue, FieldSource,
}

// RawRecord is what a source scraper yields. Any field may be empty; the
// parser turns it into a LeadRecord.
type RawRecord struct {
	Company  string `json:"company"`
	Industry string `json:"industry"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	Website  string `json:"website"`
	Rating   string `json:"rating"`
	Revenue  string `json:"revenue"`
	Source   string `json:"source"`
	URL      string `json:"url,omitempty"`
}

// LeadRecord is a normalized business lead.
type LeadRecord struct {
	Company  string `json:"company"`
	Industry string `json:"industry"`
	Street   string `json:"street"`
	City     string `json:"city"`
	State    string `json:"state"`
	Phone    string `json:"phone"`
	Website  string `json:"website"`
	Rating   string `json:"rating"`
	Revenue  string `json:"revenue"`
	Source   string `json:"source"`
}

// NewLeadRecord returns a record with every field set to NA.
func NewLeadRecord() LeadRecord {
	var r LeadRecord
	r.Fill()
	return r
}

// LeadFields returns the lead column names in declared order.
func LeadFields() []string {
	out := make([]string, len(leadFields))
	copy(out, leadFields)
	return out
}

// Fill trims every field and replaces empty ones with NA.
func (r *LeadRecord) Fill() {
	for _, p := range r.ptrs() {
		*p = orNA(*p)
	}
}

// Row returns field values in LeadFields order.
func (r LeadRecord) Row() []string {
	ptrs := r.ptrs()
	row := make([]string, len(ptrs))
	for i, p := range ptrs {
		row[i] = *p
	}
	return row
}

// Get returns a field value by column name.
func (r LeadRecord) Get(field string) (string, bool) {
	p := r.field(field)
	if p == nil {
		return "", false
	}
	return *p, true
}

// Set assigns a field by column name. Unknown names are ignored.
func (r *LeadRecord) Set(field, value string) bool {
	p := r.field(field)
	if p == nil {
		return false
	}
	*p = orNA(value)
	return true
}

// IsNA reports whether the named field is missing.
func (r LeadRecord) IsNA(field string) bool {
	v, ok := r.Get(field)
	return !ok || v == NA
}

// Address joins the street, city and state that are present.
func (r LeadRecord) Address() string {
	var parts []string
	for _, v := range []string{r.Street, r.City, r.State} {
		if v != NA && v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

func (r *LeadRecord) ptrs() []*string {
	return []*string{
		&r.Company, &r.Industry, &r.Street, &r.City, &r.State,
		&r.Phone, &r.Website, &r.Rating, &r.Revenue, &r.Source,
	}
}

func (r *LeadRecord) field(name string) *string {
	for i, f := range leadFields {
		if f == name {
			return r.ptrs()[i]
		}
	}
	return nil
}

func orNA(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return NA
	}
	return v
}
