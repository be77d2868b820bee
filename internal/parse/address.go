// Package parse turns raw scraped values into normalized lead fields.
package parse

import (
	"regexp"
	"strings"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/normalize"
)

// Address is a parsed postal address. Missing parts are model.NA.
type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
}

var zipToken = regexp.MustCompile(`^\d{5}(?:-\d{4})?$`)

// Parser splits addresses using a Gazetteer.
type Parser struct {
	gaz *Gazetteer
}

// NewParser creates a Parser. A nil gazetteer uses the embedded dataset.
func NewParser(g *Gazetteer) *Parser {
	if g == nil {
		g = DefaultGazetteer()
	}
	return &Parser{gaz: g}
}

// ParseAddress parses raw with the embedded dataset.
func ParseAddress(raw string) Address {
	return NewParser(nil).Address(raw)
}

// Address parses a free-form US address. Comma-separated input is split
// positionally (street..., city, state zip); anything else is resolved
// right to left against the gazetteer, state first, then the longest
// known city name before it.
func (p *Parser) Address(raw string) Address {
	s := normalize.CollapseSpace(normalize.StripAddressMarkers(clean(raw)))
	if s == "" || strings.EqualFold(s, model.NA) {
		return Address{Street: model.NA, City: model.NA, State: model.NA}
	}

	var parts []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}

	var a Address
	switch {
	case len(parts) >= 3:
		n := len(parts)
		a.Street = strings.Join(parts[:n-2], ", ")
		a.City = parts[n-2]
		a.State = p.stateOf(parts[n-1])
	case len(parts) == 2:
		a.State = p.stateOf(parts[1])
		a.City = parts[0]
		if startsWithDigit(parts[0]) {
			if street, city, ok := p.splitCity(strings.Fields(parts[0]), a.State); ok {
				a.Street, a.City = street, city
			}
		}
	default:
		a = p.resolve(strings.Fields(s))
	}

	a.Street = orNA(a.Street)
	a.City = orNA(a.City)
	a.State = orNA(a.State)
	return a
}

// resolve handles addresses without commas.
func (p *Parser) resolve(tokens []string) Address {
	end := len(tokens)
	for end > 0 && zipToken.MatchString(tokens[end-1]) {
		end--
	}

	state, n := p.trailingState(tokens[:end])
	if state == "" {
		return Address{Street: strings.Join(tokens, " ")}
	}
	end -= n

	street, city, ok := p.splitCity(tokens[:end], state)
	if !ok {
		return Address{Street: strings.Join(tokens[:end], " "), State: state}
	}
	return Address{Street: street, City: city, State: state}
}

// trailingState finds a state code or name at the end of tokens and
// returns it with the number of tokens it spans.
func (p *Parser) trailingState(tokens []string) (string, int) {
	for n := min(p.gaz.maxStateWords, len(tokens)); n >= 1; n-- {
		cand := strings.Join(tokens[len(tokens)-n:], " ")
		cand = strings.TrimRight(cand, ".")
		// "Ct", "Me" and friends are street suffixes, not states
		if len(cand) == 2 && cand != strings.ToUpper(cand) {
			continue
		}
		if code, ok := p.gaz.StateCode(cand); ok {
			return code, n
		}
	}
	return "", 0
}

// splitCity matches the longest known city at the end of tokens.
func (p *Parser) splitCity(tokens []string, state string) (street, city string, ok bool) {
	for n := min(p.gaz.maxCityWords, len(tokens)); n >= 1; n-- {
		cand := strings.Join(tokens[len(tokens)-n:], " ")
		if c, found := p.gaz.City(state, cand); found {
			return strings.Join(tokens[:len(tokens)-n], " "), c, true
		}
	}
	return "", "", false
}

// stateOf extracts the state from a "TX 78701" style segment, mapping full
// names to codes and keeping unknown values as written.
func (p *Parser) stateOf(seg string) string {
	tokens := strings.Fields(seg)
	end := len(tokens)
	for end > 0 && zipToken.MatchString(tokens[end-1]) {
		end--
	}
	if end == 0 {
		return ""
	}
	if code, _ := p.trailingState(tokens[:end]); code != "" {
		return code
	}
	return strings.Join(tokens[:end], " ")
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}
