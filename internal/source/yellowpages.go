package source

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/fetcher"
	"github.com/sells-group/leadgen/internal/model"
)

// YellowPages scrapes the yellowpages.com business directory.
type YellowPages struct {
	baseURL string
	fetch   fetcher.Fetcher
	pager   Paginator
}

// NewYellowPages creates the directory source.
func NewYellowPages(baseURL string, f fetcher.Fetcher, maxPages int) *YellowPages {
	if baseURL == "" {
		baseURL = "https://www.yellowpages.com"
	}
	return &YellowPages{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		fetch:   f,
		pager:   Paginator{Source: "yellowpages", MaxPages: maxPages},
	}
}

// Name implements Source.
func (y *YellowPages) Name() string { return "yellowpages" }

// Kind implements Source.
func (y *YellowPages) Kind() Kind { return KindHTTP }

// Stream implements Source.
func (y *YellowPages) Stream(ctx context.Context, q model.Query) (<-chan model.RawRecord, <-chan error) {
	return produce(ctx, y.Name(), func(ctx context.Context, emit emitFunc) error {
		return y.pager.Run(ctx, func(ctx context.Context, n int) (bool, error) {
			page, err := y.fetch.Get(ctx, y.searchURL(q, n))
			if err != nil {
				return false, err
			}
			if page.Status == http.StatusNotFound {
				return false, nil
			}
			if !page.OK() {
				return false, eris.Errorf("yellowpages: status %d", page.Status)
			}
			doc, err := page.Document()
			if err != nil {
				return false, err
			}

			recs, next := parseYellowPages(doc, y.baseURL, q.Industry)
			for _, r := range recs {
				if !emit(r) {
					return false, ctx.Err()
				}
			}
			return next && len(recs) > 0, nil
		})
	})
}

func (y *YellowPages) searchURL(q model.Query, page int) string {
	v := url.Values{}
	v.Set("search_terms", q.Industry)
	v.Set("geo_location_terms", q.Location)
	if page > 1 {
		v.Set("page", strconv.Itoa(page))
	}
	return y.baseURL + "/search?" + v.Encode()
}

var ratingWords = map[string]float64{"one": 1, "two": 2, "three": 3, "four": 4, "five": 5}

// parseYellowPages extracts listings from one results page. Organic
// listings live in div.result; ads repeat them, so only the organic
// container is read when present.
func parseYellowPages(doc *goquery.Document, baseURL, industry string) ([]model.RawRecord, bool) {
	results := doc.Find("div.search-results.organic div.result")
	if results.Length() == 0 {
		results = doc.Find("div.result")
	}

	var recs []model.RawRecord
	results.Each(func(_ int, s *goquery.Selection) {
		name := text(s.Find("a.business-name").First())
		if name == "" {
			return
		}

		var cats []string
		s.Find("div.categories a").Each(func(_ int, a *goquery.Selection) {
			if c := text(a); c != "" {
				cats = append(cats, c)
			}
		})
		category := strings.Join(cats, ", ")
		if category == "" {
			category = industry
		}

		addr := joinNonEmpty(", ", text(s.Find("div.street-address").First()), text(s.Find("div.locality").First()))
		if addr == "" {
			addr = text(s.Find("div.adr, p.adr").First())
		}

		href, _ := s.Find("a.business-name").First().Attr("href")
		website, _ := s.Find("a.track-visit-website").First().Attr("href")

		recs = append(recs, model.RawRecord{
			Company:  name,
			Industry: category,
			Address:  addr,
			Phone:    text(s.Find("div.phones").First()),
			Website:  website,
			Rating:   ypRating(s.Find("div.result-rating").First()),
			URL:      resolve(baseURL, href),
		})
	})

	return recs, doc.Find("a.next").Length() > 0
}

// ypRating reads the star count from class names like "result-rating four half".
func ypRating(s *goquery.Selection) string {
	cls, ok := s.Attr("class")
	if !ok {
		return ""
	}
	var stars float64
	for _, c := range strings.Fields(cls) {
		if v, ok := ratingWords[c]; ok {
			stars = v
		}
	}
	if stars == 0 {
		return ""
	}
	if s.HasClass("half") {
		stars += 0.5
	}
	return strconv.FormatFloat(stars, 'f', 1, 64)
}

func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

func resolve(base, href string) string {
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}
