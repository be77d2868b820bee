package parse

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/normalize"
)

// Record converts a scraped record into a LeadRecord. This is the only
// place raw source output becomes a lead: addresses are split, phones
// formatted, and every missing field set to NA.
func (p *Parser) Record(raw model.RawRecord) model.LeadRecord {
	addr := p.Address(raw.Address)
	rec := model.LeadRecord{
		Company:  normalize.CollapseSpace(clean(raw.Company)),
		Industry: normalize.CollapseSpace(clean(raw.Industry)),
		Street:   addr.Street,
		City:     addr.City,
		State:    addr.State,
		Phone:    Phone(strings.TrimSpace(raw.Phone)),
		Website:  website(raw.Website),
		Rating:   strings.TrimSpace(raw.Rating),
		Revenue:  normalize.CollapseSpace(clean(raw.Revenue)),
		Source:   raw.Source,
	}
	rec.Fill()
	return rec
}

// Records converts a batch of raw records.
func (p *Parser) Records(raws []model.RawRecord) []model.LeadRecord {
	out := make([]model.LeadRecord, 0, len(raws))
	for _, r := range raws {
		out = append(out, p.Record(r))
	}
	return out
}

// website drops tracking query strings and a trailing slash.
func website(raw string) string {
	w := strings.TrimSpace(raw)
	if i := strings.IndexAny(w, "?#"); i >= 0 {
		w = w[:i]
	}
	return strings.TrimRight(w, "/")
}

// clean applies compatibility normalization so full-width and ligature
// characters compare equal to their plain forms.
func clean(s string) string {
	return norm.NFKC.String(s)
}

func orNA(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return model.NA
	}
	return s
}
