package source

import (
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/config"
	"github.com/sells-group/leadgen/internal/fetcher"
	"github.com/sells-group/leadgen/pkg/apollo"
	"github.com/sells-group/leadgen/pkg/jina"
)

// Priority is the fixed merge order of lead sources.
var Priority = []string{"yellowpages", "yelp", "maps", "linkedin", "apollo"}

// Deps holds the shared clients sources are built from. Nil clients
// disable the sources that need them.
type Deps struct {
	Fetcher fetcher.Fetcher
	Jina    jina.Client
	Apollo  apollo.Client
}

// Build returns the enabled sources in priority order. names overrides
// cfg.Sources.Enabled when non-empty.
func Build(cfg *config.Config, deps Deps, names ...string) ([]Source, error) {
	if len(names) == 0 {
		names = cfg.Sources.Enabled
	}
	enabled := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if !slices.Contains(Priority, n) {
			return nil, eris.Errorf("source: unknown source %q", n)
		}
		enabled[n] = true
	}

	maxPages := cfg.Sources.MaxPages
	var out []Source
	for _, name := range Priority {
		if !enabled[name] {
			continue
		}
		switch name {
		case "yellowpages":
			if deps.Fetcher == nil {
				return nil, eris.New("source: yellowpages needs a fetcher")
			}
			out = append(out, NewYellowPages(cfg.YellowPages.BaseURL, deps.Fetcher, maxPages))
		case "yelp":
			out = append(out, NewYelp(YelpOptions{
				BaseURL:   cfg.Yelp.BaseURL,
				UserAgent: cfg.Fetch.UserAgent,
				Timeout:   time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
				Delay:     time.Duration(cfg.Yelp.DelayMS) * time.Millisecond,
				PageSize:  cfg.Yelp.PageSize,
				MaxPages:  maxPages,
			}))
		case "maps":
			out = append(out, NewMaps(MapsOptions{
				BaseURL:      cfg.Maps.BaseURL,
				Headless:     cfg.Maps.Headless,
				ChromePath:   cfg.Maps.ChromePath,
				UserAgent:    cfg.Fetch.UserAgent,
				MaxResults:   cfg.Maps.MaxResults,
				WaitTimeout:  time.Duration(cfg.Maps.WaitTimeoutSec) * time.Second,
				PlaceTimeout: time.Duration(cfg.Maps.PlaceTimeoutSec) * time.Second,
			}))
		case "linkedin":
			if deps.Jina == nil {
				zap.L().Warn("source: linkedin disabled, no jina key")
				continue
			}
			out = append(out, NewLinkedIn(deps.Jina, cfg.LinkedIn.SiteFilter, cfg.LinkedIn.MaxResults, maxPages))
		case "apollo":
			if deps.Apollo == nil {
				zap.L().Warn("source: apollo disabled, no api key")
				continue
			}
			out = append(out, NewApollo(deps.Apollo, cfg.Apollo.PerPage, maxPages))
		}
	}
	return out, nil
}
