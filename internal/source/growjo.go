package source

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/fetcher"
	"github.com/sells-group/leadgen/internal/matchcache"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/normalize"
	"github.com/sells-group/leadgen/internal/revenue"
	"github.com/sells-group/leadgen/pkg/jina"
)

// GrowjoSource is the match cache namespace for the revenue estimator.
const GrowjoSource = "growjo"

// ErrNotResolved is the failure reported when no variant leads to a
// revenue page.
var ErrNotResolved = eris.New("company not found on growjo")

var notFoundMarkers = []string{
	"company not found",
	"page not found",
	"no company found",
	"could not find",
	"doesn't exist",
}

// Searcher finds the estimator's canonical name for a company.
type Searcher interface {
	TopMatch(ctx context.Context, company string) (string, bool, error)
}

// resolveState is a step of the cache-assisted fuzzy resolution.
type resolveState int

const (
	stateDirectLookup resolveState = iota
	stateFallbackSearch
	stateCacheRetry
	stateResolved
	stateFailed
)

func (s resolveState) String() string {
	return [...]string{"direct_lookup", "fallback_search", "cache_retry", "resolved", "failed"}[s]
}

// maxResolveDepth bounds how many times a search result may be fed back
// into direct lookup.
const maxResolveDepth = 1

// Growjo resolves company revenue estimates from growjo.com.
type Growjo struct {
	baseURL string
	fetch   fetcher.Fetcher
	reader  jina.Client
	search  Searcher
	cache   matchcache.Cache
}

// GrowjoOption configures the resolver.
type GrowjoOption func(*Growjo)

// WithReader sets a reader used when the estimator blocks direct fetches.
func WithReader(r jina.Client) GrowjoOption {
	return func(g *Growjo) { g.reader = r }
}

// WithSearcher sets the fallback name search.
func WithSearcher(s Searcher) GrowjoOption {
	return func(g *Growjo) { g.search = s }
}

// NewGrowjo creates the revenue resolver.
func NewGrowjo(baseURL string, f fetcher.Fetcher, cache matchcache.Cache, opts ...GrowjoOption) *Growjo {
	if baseURL == "" {
		baseURL = "https://growjo.com"
	}
	g := &Growjo{baseURL: strings.TrimSuffix(baseURL, "/"), fetch: f, cache: cache}
	for _, o := range opts {
		o(g)
	}
	return g
}

// resolution carries the state of one Resolve call.
type resolution struct {
	company   string
	depth     int
	attempted []string
	tried     map[string]struct{}
	result    model.RevenueResult
	err       error
}

// Resolve looks up the estimated revenue of company.
//
// Direct lookup tries the variants of a previously cached match, then the
// variants of the name. If nothing validates at depth 0 a fallback search
// runs, its top hit is cached, and direct lookup is retried once from the
// cache. Total failure is reported in the result, never as an error.
func (g *Growjo) Resolve(ctx context.Context, company string) model.RevenueResult {
	company = strings.TrimSpace(company)
	r := &resolution{company: company, tried: make(map[string]struct{})}

	state := stateDirectLookup
	for state != stateResolved && state != stateFailed {
		if err := ctx.Err(); err != nil {
			r.err = err
			state = stateFailed
			break
		}
		next := g.step(ctx, r, state)
		zap.L().Debug("growjo: transition",
			zap.String("company", company),
			zap.Stringer("from", state),
			zap.Stringer("to", next),
			zap.Int("depth", r.depth),
		)
		state = next
	}

	if state == stateResolved {
		return r.result
	}
	msg := ErrNotResolved.Error()
	if r.err != nil {
		msg = r.err.Error()
	}
	return model.RevenueResult{Company: company, Error: msg, AttemptedVariants: r.attempted}
}

func (g *Growjo) step(ctx context.Context, r *resolution, state resolveState) resolveState {
	switch state {
	case stateDirectLookup:
		if g.tryCandidates(ctx, r, append(g.cachedVariants(ctx, r.company), normalize.Variants(r.company)...)) {
			return stateResolved
		}
		if r.depth < maxResolveDepth {
			return stateFallbackSearch
		}
		return stateFailed

	case stateFallbackSearch:
		if g.search == nil {
			return stateFailed
		}
		top, ok, err := g.search.TopMatch(ctx, r.company)
		if err != nil {
			zap.L().Warn("growjo: fallback search failed", zap.String("company", r.company), zap.Error(err))
			return stateFailed
		}
		if !ok || top == "" {
			return stateFailed
		}
		if g.cache != nil {
			if err := g.cache.Set(ctx, GrowjoSource, r.company, top); err != nil {
				zap.L().Warn("growjo: cache set failed", zap.String("company", r.company), zap.Error(err))
			}
		}
		r.depth++
		return stateCacheRetry

	case stateCacheRetry:
		if g.tryCandidates(ctx, r, g.cachedVariants(ctx, r.company)) {
			return stateResolved
		}
		return stateFailed
	}
	return stateFailed
}

// cachedVariants returns the variants of the cached match for company.
func (g *Growjo) cachedVariants(ctx context.Context, company string) []string {
	if g.cache == nil {
		return nil
	}
	matched, ok, err := g.cache.Get(ctx, GrowjoSource, company)
	if err != nil {
		zap.L().Warn("growjo: cache get failed", zap.String("company", company), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	return normalize.Variants(matched)
}

// tryCandidates looks up each untried, non-empty candidate in order and
// stops at the first valid page.
func (g *Growjo) tryCandidates(ctx context.Context, r *resolution, candidates []string) bool {
	for _, v := range candidates {
		if v == "" {
			continue
		}
		if _, done := r.tried[v]; done {
			continue
		}
		r.tried[v] = struct{}{}
		r.attempted = append(r.attempted, v)

		pageURL := g.companyURL(v)
		est, ok, err := g.lookup(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				r.err = ctx.Err()
				return false
			}
			zap.L().Debug("growjo: lookup failed", zap.String("variant", v), zap.Error(err))
			continue
		}
		if ok {
			r.result = model.RevenueResult{
				Company:          r.company,
				EstimatedRevenue: est,
				MatchedVariant:   v,
				URL:              pageURL,
			}
			return true
		}
	}
	return false
}

func (g *Growjo) companyURL(variant string) string {
	return g.baseURL + "/company/" + url.PathEscape(strings.ReplaceAll(variant, " ", "_"))
}

// lookup fetches a company page and validates it: a page counts only when
// it has no not-found marker and does carry a revenue figure.
func (g *Growjo) lookup(ctx context.Context, pageURL string) (string, bool, error) {
	body, err := g.pageText(ctx, pageURL)
	if err != nil {
		return "", false, err
	}
	lower := strings.ToLower(body)
	for _, m := range notFoundMarkers {
		if strings.Contains(lower, m) {
			return "", false, nil
		}
	}
	est, ok := revenue.Extract(body)
	return est, ok, nil
}

func (g *Growjo) pageText(ctx context.Context, pageURL string) (string, error) {
	page, err := g.fetch.Get(ctx, pageURL)
	if err != nil {
		if errors.Is(err, fetcher.ErrBlocked) && g.reader != nil {
			resp, rerr := g.reader.Read(ctx, pageURL)
			if rerr != nil {
				return "", eris.Wrap(rerr, "growjo: reader fallback")
			}
			return resp.Data.Content, nil
		}
		return "", err
	}
	if page.Status == http.StatusNotFound {
		return "", nil
	}
	if !page.OK() {
		return "", eris.Errorf("growjo: status %d", page.Status)
	}
	doc, err := page.Document()
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()
	return doc.Find("body").Text(), nil
}

// JinaSearcher finds estimator company pages with a site-restricted search.
type JinaSearcher struct {
	Client jina.Client
	Site   string
}

// TopMatch implements Searcher. The canonical name is taken from the first
// company page URL in the results.
func (s JinaSearcher) TopMatch(ctx context.Context, company string) (string, bool, error) {
	site := s.Site
	if site == "" {
		site = "growjo.com/company"
	}
	resp, err := s.Client.Search(ctx, company, jina.WithSiteFilter(site))
	if err != nil {
		return "", false, err
	}
	for _, hit := range resp.Data {
		if name, ok := companyFromURL(hit.URL); ok {
			return name, true, nil
		}
	}
	return "", false, nil
}

func companyFromURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	rest, ok := strings.CutPrefix(u.Path, "/company/")
	if !ok || rest == "" {
		return "", false
	}
	rest, _, _ = strings.Cut(rest, "/")
	name, err := url.PathUnescape(rest)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(strings.ReplaceAll(name, "_", " ")), name != ""
}
