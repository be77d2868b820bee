package source

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/resilience"
)

// MapsOptions configures the browser-driven maps source.
type MapsOptions struct {
	BaseURL    string
	Headless   bool
	ChromePath string
	UserAgent  string
	MaxResults int
	// WaitTimeout bounds each selector wait; PlaceTimeout bounds one place page.
	WaitTimeout  time.Duration
	PlaceTimeout time.Duration
}

// Maps scrapes Google Maps search results through a headless browser.
// It must run on the serial executor: one browser session at a time.
type Maps struct {
	opts MapsOptions
}

// NewMaps creates the maps source.
func NewMaps(opts MapsOptions) *Maps {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://www.google.com"
	}
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	if opts.MaxResults <= 0 {
		opts.MaxResults = 40
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 10 * time.Second
	}
	if opts.PlaceTimeout <= 0 {
		opts.PlaceTimeout = 45 * time.Second
	}
	return &Maps{opts: opts}
}

// Name implements Source.
func (m *Maps) Name() string { return "maps" }

// Kind implements Source.
func (m *Maps) Kind() Kind { return KindBrowser }

var feedSelectors = []string{
	`div[role="feed"] a[href*="/maps/place/"]`,
	`a.hfpxzc`,
	`a[href*="/maps/place/"]`,
}

var consentSelectors = []string{
	`button[aria-label="Accept all"]`,
	`button[aria-label="I agree"]`,
	`form[action*="consent"] button`,
}

// Stream implements Source.
func (m *Maps) Stream(ctx context.Context, q model.Query) (<-chan model.RawRecord, <-chan error) {
	return produce(ctx, m.Name(), func(ctx context.Context, emit emitFunc) error {
		bctx, cancel := m.browser(ctx)
		defer cancel()

		searchURL := m.opts.BaseURL + "/maps/search/" + url.PathEscape(q.Industry+" "+q.Location)
		if err := chromedp.Run(bctx,
			chromedp.Navigate(searchURL),
			chromedp.WaitReady("body", chromedp.ByQuery),
		); err != nil {
			return eris.Wrap(err, "maps: open search")
		}
		m.acceptConsent(bctx)

		places, err := m.collectPlaces(bctx)
		if err != nil {
			return err
		}

		for i, placeURL := range places {
			rec, err := m.place(bctx, placeURL)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				zap.L().Debug("maps: place skipped",
					zap.Int("index", i),
					zap.String("url", placeURL),
					zap.Error(err),
				)
				continue
			}
			if rec.Industry == "" {
				rec.Industry = q.Industry
			}
			if !emit(rec) {
				return ctx.Err()
			}
			if err := resilience.Sleep(ctx, resilience.Between(500*time.Millisecond, 1500*time.Millisecond)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (m *Maps) browser(parent context.Context) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", m.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-notifications", true),
	)
	if m.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(m.opts.UserAgent))
	}
	if m.opts.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(m.opts.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)
	return ctx, func() {
		cancel()
		allocCancel()
	}
}

// acceptConsent clicks a cookie dialog if one shows up. Absence is normal.
func (m *Maps) acceptConsent(ctx context.Context) {
	for _, sel := range consentSelectors {
		wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := chromedp.Run(wctx, chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible))
		cancel()
		if err == nil {
			_ = resilience.Sleep(ctx, time.Second)
			return
		}
	}
}

// collectPlaces scrolls the result feed until MaxResults place links are
// seen or three scrolls in a row add nothing.
func (m *Maps) collectPlaces(ctx context.Context) ([]string, error) {
	var selector string
	for _, sel := range feedSelectors {
		wctx, cancel := context.WithTimeout(ctx, m.opts.WaitTimeout)
		err := chromedp.Run(wctx, chromedp.WaitVisible(sel, chromedp.ByQuery))
		cancel()
		if err == nil {
			selector = sel
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if selector == "" {
		// no feed: zero results or a single place page
		return nil, nil
	}

	seen := make(map[string]struct{})
	var places []string
	stale := 0
	for stale < 3 && len(places) < m.opts.MaxResults {
		var hrefs []string
		script := fmt.Sprintf(`Array.from(document.querySelectorAll(%q)).map(a => a.href).filter(h => h && h.includes("/maps/place/"))`, selector)
		if err := chromedp.Run(ctx, chromedp.Evaluate(script, &hrefs)); err != nil {
			return places, eris.Wrap(err, "maps: collect results")
		}

		before := len(places)
		for _, h := range hrefs {
			if _, ok := seen[h]; ok {
				continue
			}
			seen[h] = struct{}{}
			places = append(places, h)
		}
		if len(places) == before {
			stale++
		} else {
			stale = 0
		}

		var scrolled bool
		_ = chromedp.Run(ctx, chromedp.Evaluate(`(function() {
			var feed = document.querySelector('div[role="feed"]');
			if (!feed) { return false; }
			feed.scrollTop = feed.scrollHeight;
			return true;
		})()`, &scrolled))
		if !scrolled {
			break
		}
		if err := resilience.Sleep(ctx, 1500*time.Millisecond); err != nil {
			return places, err
		}
	}

	if len(places) > m.opts.MaxResults {
		places = places[:m.opts.MaxResults]
	}
	return places, nil
}

func (m *Maps) place(ctx context.Context, placeURL string) (model.RawRecord, error) {
	pctx, cancel := context.WithTimeout(ctx, m.opts.PlaceTimeout)
	defer cancel()

	var html string
	if err := chromedp.Run(pctx,
		chromedp.Navigate(placeURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return model.RawRecord{}, eris.Wrap(err, "maps: open place")
	}

	wctx, wcancel := context.WithTimeout(pctx, m.opts.WaitTimeout)
	_ = chromedp.Run(wctx, chromedp.WaitVisible(`h1`, chromedp.ByQuery))
	wcancel()

	if err := chromedp.Run(pctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return model.RawRecord{}, eris.Wrap(err, "maps: read place html")
	}

	rec, ok := parsePlaceHTML(html)
	if !ok {
		return model.RawRecord{}, eris.New("maps: place page has no name")
	}
	rec.URL = placeURL
	return rec, nil
}

var (
	mapsRatingRe = regexp.MustCompile(`^\s*(\d(?:[.,]\d)?)`)
	itemPrefixRe = regexp.MustCompile(`(?i)^(address|phone|website):\s*`)
)

// parsePlaceHTML extracts a listing from a place page's outer HTML.
func parsePlaceHTML(html string) (model.RawRecord, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return model.RawRecord{}, false
	}

	name := firstText(doc, "h1.DUwDvf", "h1.fontHeadlineLarge", "h1")
	if name == "" {
		return model.RawRecord{}, false
	}

	rec := model.RawRecord{
		Company:  name,
		Industry: firstText(doc, `button[jsaction*="category"]`, "button.DkEaL"),
		Address:  itemValue(doc, `button[data-item-id="address"]`, `[data-item-id="address"]`),
		Phone:    itemValue(doc, `button[data-item-id^="phone"]`, `[data-item-id^="phone:tel"]`),
	}

	if href, ok := doc.Find(`a[data-item-id="authority"]`).First().Attr("href"); ok {
		rec.Website = href
	}

	if label, ok := doc.Find(`span[aria-label$="stars"], span[role="img"][aria-label*="stars"]`).First().Attr("aria-label"); ok {
		if m := mapsRatingRe.FindStringSubmatch(label); m != nil {
			rec.Rating = strings.Replace(m[1], ",", ".", 1)
		}
	}
	if rec.Rating == "" {
		if m := mapsRatingRe.FindStringSubmatch(firstText(doc, "div.F7nice span")); m != nil {
			rec.Rating = strings.Replace(m[1], ",", ".", 1)
		}
	}
	return rec, true
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if t := text(doc.Find(sel).First()); t != "" {
			return t
		}
	}
	return ""
}

// itemValue reads a place detail button. The aria-label carries the
// cleanest value ("Address: 1 Main St, ..."); visible text is the fallback.
func itemValue(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		if label, ok := s.Attr("aria-label"); ok {
			if v := strings.TrimSpace(itemPrefixRe.ReplaceAllString(label, "")); v != "" {
				return v
			}
		}
		if t := text(s); t != "" {
			return t
		}
	}
	return ""
}
