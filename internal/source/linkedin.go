package source

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/resilience"
	"github.com/sells-group/leadgen/pkg/jina"
)

// LinkedIn finds company pages on the professional network through a
// site-restricted web search.
type LinkedIn struct {
	search     jina.Client
	siteFilter string
	maxResults int
	pager      Paginator
}

// NewLinkedIn creates the professional-network source.
func NewLinkedIn(search jina.Client, siteFilter string, maxResults, maxPages int) *LinkedIn {
	if siteFilter == "" {
		siteFilter = "linkedin.com/company"
	}
	if maxResults <= 0 {
		maxResults = 50
	}
	return &LinkedIn{
		search:     search,
		siteFilter: siteFilter,
		maxResults: maxResults,
		pager:      Paginator{Source: "linkedin", MaxPages: maxPages},
	}
}

// Name implements Source.
func (l *LinkedIn) Name() string { return "linkedin" }

// Kind implements Source.
func (l *LinkedIn) Kind() Kind { return KindHTTP }

var (
	titleSuffixRe = regexp.MustCompile(`(?i)\s*[|\-–]\s*linkedin.*$`)
	websiteRe     = regexp.MustCompile(`(?i)website:?\s*(https?://[^\s)|,]+)`)
	hqRe          = regexp.MustCompile(`(?i)headquarters:?\s*([^\n|·]+)`)
	industryRe    = regexp.MustCompile(`(?i)industry:?\s*([^\n|·]+)`)
	phoneTextRe   = regexp.MustCompile(`(?i)phone:?\s*(\+?[\d()\-.\s]{10,20}\d)`)
)

// Stream implements Source.
func (l *LinkedIn) Stream(ctx context.Context, q model.Query) (<-chan model.RawRecord, <-chan error) {
	return produce(ctx, l.Name(), func(ctx context.Context, emit emitFunc) error {
		seen := make(map[string]struct{})
		return l.pager.Run(ctx, func(ctx context.Context, n int) (bool, error) {
			resp, err := l.search.Search(ctx, q.Industry+" "+q.Location,
				jina.WithSiteFilter(l.siteFilter), jina.WithPage(n))
			if err != nil {
				var se *jina.StatusError
				if errors.As(err, &se) && !resilience.TransientStatus(se.Code) {
					return false, err
				}
				return false, resilience.Transient(err, 0)
			}

			added := 0
			for _, hit := range resp.Data {
				if !isCompanyPage(hit.URL) {
					continue
				}
				if _, dup := seen[hit.URL]; dup {
					continue
				}
				seen[hit.URL] = struct{}{}

				rec, ok := parseLinkedInHit(hit, q.Industry)
				if !ok {
					continue
				}
				if !emit(rec) {
					return false, ctx.Err()
				}
				added++
				if len(seen) >= l.maxResults {
					return false, nil
				}
			}
			return added > 0, nil
		})
	})
}

func isCompanyPage(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.HasSuffix(u.Hostname(), "linkedin.com") && strings.HasPrefix(u.Path, "/company/")
}

func parseLinkedInHit(hit jina.SearchResult, industry string) (model.RawRecord, bool) {
	name := strings.TrimSpace(titleSuffixRe.ReplaceAllString(hit.Title, ""))
	if name == "" {
		return model.RawRecord{}, false
	}
	body := hit.Description + "\n" + hit.Content

	rec := model.RawRecord{Company: name, Industry: industry, URL: hit.URL}
	if m := websiteRe.FindStringSubmatch(body); m != nil {
		rec.Website = m[1]
	}
	if m := hqRe.FindStringSubmatch(body); m != nil {
		rec.Address = strings.TrimSpace(m[1])
	}
	if m := industryRe.FindStringSubmatch(body); m != nil {
		rec.Industry = strings.TrimSpace(m[1])
	}
	if m := phoneTextRe.FindStringSubmatch(body); m != nil {
		rec.Phone = strings.TrimSpace(m[1])
	}
	return rec, true
}
