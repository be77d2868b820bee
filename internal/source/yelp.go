package source

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/fetcher"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/resilience"
)

// YelpOptions configures the review-site source.
type YelpOptions struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// Delay spaces consecutive page requests.
	Delay    time.Duration
	PageSize int
	MaxPages int
}

// Yelp scrapes yelp.com search results with a colly collector.
type Yelp struct {
	opts  YelpOptions
	pager Paginator
}

// NewYelp creates the review-site source.
func NewYelp(opts YelpOptions) *Yelp {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://www.yelp.com"
	}
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Yelp{opts: opts, pager: Paginator{Source: "yelp", MaxPages: opts.MaxPages}}
}

// Name implements Source.
func (y *Yelp) Name() string { return "yelp" }

// Kind implements Source.
func (y *Yelp) Kind() Kind { return KindHTTP }

var starRe = regexp.MustCompile(`([\d.]+)\s*star`)

// Stream implements Source.
func (y *Yelp) Stream(ctx context.Context, q model.Query) (<-chan model.RawRecord, <-chan error) {
	return produce(ctx, y.Name(), func(ctx context.Context, emit emitFunc) error {
		c := y.collector(ctx)

		var (
			recs   []model.RawRecord
			next   bool
			status int
			body   []byte
			header http.Header
		)
		c.OnHTML(`[data-testid="serp-ia-card"]`, func(e *colly.HTMLElement) {
			if r, ok := parseYelpCard(e.DOM, q.Industry); ok {
				r.URL = e.Request.AbsoluteURL(r.URL)
				recs = append(recs, r)
			}
		})
		c.OnHTML(`a.next-link, a[aria-label="Next"]`, func(*colly.HTMLElement) {
			next = true
		})
		c.OnResponse(func(r *colly.Response) {
			status, body = r.StatusCode, r.Body
			if r.Headers != nil {
				header = *r.Headers
			}
		})
		c.OnError(func(r *colly.Response, _ error) {
			status, body = r.StatusCode, r.Body
			if r.Headers != nil {
				header = *r.Headers
			}
		})

		return y.pager.Run(ctx, func(ctx context.Context, n int) (bool, error) {
			recs, next, status, body, header = nil, false, 0, nil, nil

			err := c.Visit(y.searchURL(q, n))
			if block := fetcher.DetectBlock(status, header, body); status != 0 && block != fetcher.BlockNone {
				return false, eris.Wrapf(fetcher.ErrBlocked, "yelp: %s", block)
			}
			if err != nil {
				switch {
				case status == http.StatusNotFound:
					return false, nil
				case resilience.TransientStatus(status) || status == 0 && resilience.IsTransient(err):
					return false, resilience.Transient(eris.Wrap(err, "yelp: visit"), status)
				default:
					return false, eris.Wrapf(err, "yelp: visit (status %d)", status)
				}
			}

			for _, r := range recs {
				if !emit(r) {
					return false, ctx.Err()
				}
			}
			return next && len(recs) > 0, nil
		})
	})
}

func (y *Yelp) collector(ctx context.Context) *colly.Collector {
	opts := []colly.CollectorOption{colly.AllowURLRevisit()}
	if y.opts.UserAgent != "" {
		opts = append(opts, colly.UserAgent(y.opts.UserAgent))
	}
	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(y.opts.Timeout)
	if y.opts.Delay > 0 {
		_ = c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 1, Delay: y.opts.Delay})
	}
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	return c
}

func (y *Yelp) searchURL(q model.Query, page int) string {
	v := url.Values{}
	v.Set("find_desc", q.Industry)
	v.Set("find_loc", q.Location)
	if page > 1 {
		v.Set("start", strconv.Itoa((page-1)*y.opts.PageSize))
	}
	return y.opts.BaseURL + "/search?" + v.Encode()
}

// parseYelpCard reads one search result card. Sponsored cards carry no
// business link and are skipped.
func parseYelpCard(s *goquery.Selection, industry string) (model.RawRecord, bool) {
	link := s.Find(`h3 a[href^="/biz/"], a[href^="/biz/"]`).First()
	name := text(link)
	if name == "" {
		return model.RawRecord{}, false
	}
	href, _ := link.Attr("href")

	var cats []string
	s.Find(`a[href*="cflt="]`).Each(func(_ int, a *goquery.Selection) {
		if c := text(a); c != "" {
			cats = append(cats, c)
		}
	})
	category := strings.Join(cats, ", ")
	if category == "" {
		category = industry
	}

	var rating string
	if label, ok := s.Find(`[aria-label*="star rating"]`).First().Attr("aria-label"); ok {
		if m := starRe.FindStringSubmatch(label); m != nil {
			rating = m[1]
		}
	}

	website := ""
	s.Find(`a[href*="biz_redir"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		h, _ := a.Attr("href")
		if u, err := url.Parse(h); err == nil && u.Query().Get("url") != "" {
			website = u.Query().Get("url")
			return false
		}
		return true
	})

	return model.RawRecord{
		Company:  name,
		Industry: category,
		Address:  text(s.Find(`address, [data-testid="address"]`).First()),
		Phone:    text(s.Find(`[data-testid="phone"]`).First()),
		Website:  website,
		Rating:   rating,
		URL:      href,
	}, true
}
