package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/leadgen/internal/model"
)

func TestRecord(t *testing.T) {
	p := NewParser(nil)

	got := p.Record(model.RawRecord{
		Company: "  Acme  Plumbing ",
		Address: "Address: 12 Main St, Austin, TX 78701",
		Phone:   "512 555 0100",
		Website: "https://acme.example/?utm_source=yp",
		Source:  "yellowpages",
	})

	assert.Equal(t, model.LeadRecord{
		Company:  "Acme Plumbing",
		Industry: model.NA,
		Street:   "12 Main St",
		City:     "Austin",
		State:    "TX",
		Phone:    "(512)-555-0100",
		Website:  "https://acme.example",
		Rating:   model.NA,
		Revenue:  model.NA,
		Source:   "yellowpages",
	}, got)
}

func TestRecordsAllMissing(t *testing.T) {
	got := NewParser(nil).Records([]model.RawRecord{{}})
	assert.Len(t, got, 1)
	assert.Equal(t, model.NewLeadRecord(), got[0])
}
