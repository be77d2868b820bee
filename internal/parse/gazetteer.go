package parse

import (
	_ "embed"
	"io"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed data/us_places.yaml
var defaultPlaces []byte

type placesFile struct {
	States []struct {
		Code   string   `yaml:"code"`
		Name   string   `yaml:"name"`
		Cities []string `yaml:"cities"`
	} `yaml:"states"`
}

// Gazetteer is the reference table of states and their cities used to
// split addresses that carry no commas.
type Gazetteer struct {
	// state lookups keyed by upper-cased code or full name
	states map[string]string
	// code -> lower-cased city -> canonical spelling
	cities map[string]map[string]string
	// longest state name and city name, in words
	maxStateWords int
	maxCityWords  int
}

// LoadGazetteer reads a places YAML document.
func LoadGazetteer(r io.Reader) (*Gazetteer, error) {
	var f placesFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, eris.Wrap(err, "parse: decode places")
	}
	if len(f.States) == 0 {
		return nil, eris.New("parse: places file has no states")
	}

	g := &Gazetteer{
		states: make(map[string]string),
		cities: make(map[string]map[string]string),
	}
	for _, s := range f.States {
		code := strings.ToUpper(strings.TrimSpace(s.Code))
		if code == "" {
			return nil, eris.Errorf("parse: state %q has no code", s.Name)
		}
		g.states[code] = code
		if name := strings.TrimSpace(s.Name); name != "" {
			g.states[strings.ToUpper(name)] = code
			g.maxStateWords = max(g.maxStateWords, len(strings.Fields(name)))
		}
		set := g.cities[code]
		if set == nil {
			set = make(map[string]string, len(s.Cities))
			g.cities[code] = set
		}
		for _, c := range s.Cities {
			c = strings.TrimSpace(c)
			set[strings.ToLower(c)] = c
			g.maxCityWords = max(g.maxCityWords, len(strings.Fields(c)))
		}
	}
	return g, nil
}

var (
	defaultOnce sync.Once
	defaultGaz  *Gazetteer
)

// DefaultGazetteer returns the embedded US dataset.
func DefaultGazetteer() *Gazetteer {
	defaultOnce.Do(func() {
		g, err := LoadGazetteer(strings.NewReader(string(defaultPlaces)))
		if err != nil {
			panic(err)
		}
		defaultGaz = g
	})
	return defaultGaz
}

// StateCode resolves a state code or full name to its two-letter code.
func (g *Gazetteer) StateCode(s string) (string, bool) {
	code, ok := g.states[strings.ToUpper(strings.TrimSpace(s))]
	return code, ok
}

// City returns the canonical spelling of city if it is known in state.
func (g *Gazetteer) City(state, city string) (string, bool) {
	c, ok := g.cities[state][strings.ToLower(strings.TrimSpace(city))]
	return c, ok
}
