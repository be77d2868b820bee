// Package merge deduplicates leads from several sources into one list.
package merge

import (
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/normalize"
)

// Key returns the merge identity of a lead: company plus street, city and
// state, case-folded and trimmed.
func Key(rec model.LeadRecord) string {
	return normalize.Key(rec.Company, rec.Address())
}

// Merger accumulates leads incrementally. The first lead seen under a key
// keeps its position and its values; later duplicates only fill fields
// that are still NA. A Merger is not safe for concurrent use.
type Merger struct {
	index map[string]int
	leads []model.LeadRecord
}

// NewMerger returns an empty Merger.
func NewMerger() *Merger {
	return &Merger{index: make(map[string]int)}
}

// Add merges rec. It returns the lead's position and whether it is new.
// Leads without a company name are dropped and reported at index -1.
func (m *Merger) Add(rec model.LeadRecord) (int, bool) {
	rec.Fill()
	if rec.Company == model.NA {
		return -1, false
	}

	k := Key(rec)
	if i, ok := m.index[k]; ok {
		backfill(&m.leads[i], rec)
		return i, false
	}
	m.index[k] = len(m.leads)
	m.leads = append(m.leads, rec)
	return len(m.leads) - 1, true
}

// Len returns the number of distinct leads.
func (m *Merger) Len() int { return len(m.leads) }

// Lead returns the current value of the lead at position i.
func (m *Merger) Lead(i int) model.LeadRecord { return m.leads[i] }

// Leads returns a copy of the merged leads in first-seen order.
func (m *Merger) Leads() []model.LeadRecord {
	out := make([]model.LeadRecord, len(m.leads))
	copy(out, m.leads)
	return out
}

// Merge combines lead lists given in priority order. Merging an already
// merged list returns it unchanged.
func Merge(sources ...[]model.LeadRecord) []model.LeadRecord {
	m := NewMerger()
	for _, src := range sources {
		for _, rec := range src {
			m.Add(rec)
		}
	}
	return m.Leads()
}

func backfill(dst *model.LeadRecord, src model.LeadRecord) {
	for _, f := range model.LeadFields() {
		if !dst.IsNA(f) || src.IsNA(f) {
			continue
		}
		v, _ := src.Get(f)
		dst.Set(f, v)
	}
}
