package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLeadRecordAllNA(t *testing.T) {
	t.Parallel()

	r := NewLeadRecord()
	for _, v := range r.Row() {
		assert.Equal(t, NA, v)
	}
	assert.Len(t, r.Row(), len(LeadFields()))
}

func TestLeadRecordFill(t *testing.T) {
	t.Parallel()

	r := LeadRecord{Company: "  Acme Plumbing ", Phone: "   "}
	r.Fill()

	assert.Equal(t, "Acme Plumbing", r.Company)
	assert.Equal(t, NA, r.Phone)
	assert.Equal(t, NA, r.Industry)
	assert.True(t, r.IsNA(FieldPhone))
	assert.False(t, r.IsNA(FieldCompany))
}

func TestLeadRecordGetSet(t *testing.T) {
	t.Parallel()

	r := NewLeadRecord()
	assert.True(t, r.Set(FieldCity, "Austin"))
	assert.False(t, r.Set("zipcode", "78701"))

	v, ok := r.Get(FieldCity)
	assert.True(t, ok)
	assert.Equal(t, "Austin", v)

	_, ok = r.Get("zipcode")
	assert.False(t, ok)
	assert.True(t, r.IsNA("zipcode"))

	r.Set(FieldCity, "")
	assert.Equal(t, NA, r.City)
}

func TestLeadRecordRowOrder(t *testing.T) {
	t.Parallel()

	r := LeadRecord{
		Company: "Acme", Industry: "Plumbing", Street: "1 Main St", City: "Austin", State: "TX",
		Phone: "(512)-555-0100", Website: "acme.com", Rating: "4.5", Revenue: "$1.2M", Source: "yelp",
	}
	assert.Equal(t, []string{
		"Acme", "Plumbing", "1 Main St", "Austin", "TX",
		"(512)-555-0100", "acme.com", "4.5", "$1.2M", "yelp",
	}, r.Row())
	assert.Equal(t, "1 Main St, Austin, TX", r.Address())
}

func TestLeadFieldsIsCopy(t *testing.T) {
	t.Parallel()

	f := LeadFields()
	f[0] = "mutated"
	assert.Equal(t, FieldCompany, LeadFields()[0])
}

func TestQueryPage(t *testing.T) {
	t.Parallel()

	leads := make([]LeadRecord, 5)
	for i := range leads {
		leads[i] = NewLeadRecord()
		leads[i].Company = string(rune('A' + i))
	}

	tests := []struct {
		name  string
		q     Query
		first string
		n     int
	}{
		{name: "no paging", q: Query{}, first: "A", n: 5},
		{name: "offset", q: Query{Offset: 2}, first: "C", n: 3},
		{name: "limit", q: Query{Limit: 2}, first: "A", n: 2},
		{name: "both", q: Query{Offset: 1, Limit: 3}, first: "B", n: 3},
		{name: "offset past end", q: Query{Offset: 9}, n: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.q.Page(leads)
			assert.Len(t, got, tt.n)
			if tt.n > 0 {
				assert.Equal(t, tt.first, got[0].Company)
			}
		})
	}
}

func TestQueryValid(t *testing.T) {
	t.Parallel()

	assert.True(t, Query{Industry: "plumbers", Location: "Austin, TX"}.Valid())
	assert.False(t, Query{Industry: "plumbers", Location: "  "}.Valid())
	assert.Equal(t, "plumbers in Austin, TX", Query{Industry: " plumbers", Location: "Austin, TX "}.String())
}

func TestRevenueResultRow(t *testing.T) {
	t.Parallel()

	ok := RevenueResult{Company: "Acme", EstimatedRevenue: "$12.5M", MatchedVariant: "Acme", URL: "https://growjo.com/company/Acme"}
	assert.False(t, ok.Failed())
	assert.Equal(t, []string{"Acme", "$12.5M", "Acme", "https://growjo.com/company/Acme", "", ""}, ok.Row())

	bad := RevenueResult{Company: "A&B", Error: "not found", AttemptedVariants: []string{"A&B", "AandB"}}
	assert.True(t, bad.Failed())
	assert.Equal(t, "A&B|AandB", bad.Row()[5])
	assert.Len(t, RevenueFields(), len(bad.Row()))
}
