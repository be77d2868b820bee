package revenue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"millions", "Acme Corp\nEstimated Revenue: $12.5M\nEmployees 80", "$12.5M", true},
		{"annual", "estimated annual revenue is $ 3.2 b per year", "$3.2B", true},
		{"thousands with comma", "Estimated Revenue $950,000.", "$950,000", true},
		{"markdown", "| Estimated Revenue | **$41M** |", "$41M", true},
		{"missing", "Company not found", "", false},
		{"no amount", "Estimated Revenue: unknown", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"$12.5M", 12_500_000, true},
		{"3 billion", 3_000_000_000, true},
		{"1,250,000", 1_250_000, true},
		{"$500K", 500_000, true},
		{"$999", 999, true},
		{"NA", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Parse(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		amount   int64
		expected string
	}{
		{1_500_000_000, "$1.5B"},
		{22_000_000, "$22.0M"},
		{500_000, "$500K"},
		{999, "$999"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, Format(tt.amount))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "$12.5M", Normalize("12,500,000"))
	assert.Equal(t, "$1.2B", Normalize("$1.2b"))
	assert.Equal(t, "about 10M", Normalize(" about 10M "))
}
