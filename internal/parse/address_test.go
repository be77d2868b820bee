package parse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen/internal/model"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Address
	}{
		{
			name:     "three parts with zip",
			input:    "123 Main St, Austin, TX 78701",
			expected: Address{Street: "123 Main St", City: "Austin", State: "TX"},
		},
		{
			name:     "suite kept in street",
			input:    "500 W 2nd St, Suite 19, Austin, TX 78701",
			expected: Address{Street: "500 W 2nd St, Suite 19", City: "Austin", State: "TX"},
		},
		{
			name:     "full state name",
			input:    "1 Ocean Dr, Miami Beach, Florida 33139",
			expected: Address{Street: "1 Ocean Dr", City: "Miami Beach", State: "FL"},
		},
		{
			name:     "two parts city state",
			input:    "Denver, CO 80202",
			expected: Address{Street: model.NA, City: "Denver", State: "CO"},
		},
		{
			name:     "two parts with street glued to city",
			input:    "742 Evergreen Ter Salt Lake City, UT 84101",
			expected: Address{Street: "742 Evergreen Ter", City: "Salt Lake City", State: "UT"},
		},
		{
			name:     "no commas longest city wins",
			input:    "900 Center St West Valley City UT 84119",
			expected: Address{Street: "900 Center St", City: "West Valley City", State: "UT"},
		},
		{
			name:     "no commas multi-word state",
			input:    "350 5th Ave New York New York 10118",
			expected: Address{Street: "350 5th Ave", City: "New York", State: "NY"},
		},
		{
			name:     "no commas unknown city",
			input:    "12 Elm St Smallville KS",
			expected: Address{Street: "12 Elm St Smallville", City: model.NA, State: "KS"},
		},
		{
			name:     "street suffix is not a state",
			input:    "12 Oak Ct",
			expected: Address{Street: "12 Oak Ct", City: model.NA, State: model.NA},
		},
		{
			name:     "source label stripped",
			input:    "Address: 45 Pine Rd, Boise, ID",
			expected: Address{Street: "45 Pine Rd", City: "Boise", State: "ID"},
		},
		{
			name:     "unknown region kept as written",
			input:    "10 King St, Toronto, ON M5V",
			expected: Address{Street: "10 King St", City: "Toronto", State: "ON M5V"},
		},
		{
			name:     "empty",
			input:    "  ",
			expected: Address{Street: model.NA, City: model.NA, State: model.NA},
		},
		{
			name:     "NA passthrough",
			input:    "NA",
			expected: Address{Street: model.NA, City: model.NA, State: model.NA},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseAddress(tt.input))
		})
	}
}

func TestLoadGazetteer(t *testing.T) {
	g, err := LoadGazetteer(strings.NewReader(`
states:
  - code: tx
    name: Texas
    cities: [Round Rock, Austin]
`))
	require.NoError(t, err)

	code, ok := g.StateCode("texas")
	assert.True(t, ok)
	assert.Equal(t, "TX", code)

	city, ok := g.City("TX", "round rock")
	assert.True(t, ok)
	assert.Equal(t, "Round Rock", city)

	p := NewParser(g)
	assert.Equal(t, Address{Street: "1 Main St", City: "Round Rock", State: "TX"}, p.Address("1 Main St Round Rock TX"))
}

func TestLoadGazetteerErrors(t *testing.T) {
	_, err := LoadGazetteer(strings.NewReader("states: []"))
	assert.Error(t, err)

	_, err = LoadGazetteer(strings.NewReader("states:\n  - name: Nowhere\n"))
	assert.Error(t, err)

	_, err = LoadGazetteer(strings.NewReader("{not yaml"))
	assert.Error(t, err)
}

func TestDefaultGazetteerCoversAllStates(t *testing.T) {
	g := DefaultGazetteer()
	for _, code := range []string{"AL", "CA", "DC", "NY", "TX", "WY"} {
		_, ok := g.StateCode(code)
		assert.True(t, ok, code)
	}
}
