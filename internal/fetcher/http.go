// Package fetcher retrieves source pages politely: one adaptive rate
// limiter and one breaker per host, retries for transient failures, and
// anti-bot detection. It also streams input CSV files.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadgen/internal/resilience"
)

// ErrBlocked is returned when a host answers with an anti-bot page or its
// breaker is open after repeated blocks.
var ErrBlocked = eris.New("fetcher: blocked by host")

// Fetcher retrieves a page.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (*Page, error)
}

// Page is a fetched document. Non-2xx statuses other than transient ones
// are returned as pages, not errors; callers decide what a 404 means.
type Page struct {
	URL    string
	Status int
	Body   []byte
}

// OK reports a 2xx status.
func (p *Page) OK() bool { return p.Status >= 200 && p.Status < 300 }

// Document parses the body as HTML.
func (p *Page) Document() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse %s", p.URL)
	}
	return doc, nil
}

// Options configures an HTTPFetcher.
type Options struct {
	UserAgent string
	// Timeout bounds a single request attempt.
	Timeout time.Duration
	// Rate and Burst seed each host's adaptive limiter.
	Rate  rate.Limit
	Burst int
	// Attempts per Get, including the first, and the initial backoff
	// between them.
	Attempts int
	Backoff  time.Duration
	// MaxBody truncates larger bodies.
	MaxBody int64
	// BlockThreshold consecutive blocks open a host's breaker for
	// BlockCooldown.
	BlockThreshold int
	BlockCooldown  time.Duration
	Client         *http.Client
}

type host struct {
	limiter *AdaptiveLimiter
	breaker *resilience.Breaker
}

// HTTPFetcher implements Fetcher over net/http.
type HTTPFetcher struct {
	client *http.Client
	opts   Options
	policy resilience.Policy

	mu    sync.Mutex
	hosts map[string]*host
}

// New creates an HTTPFetcher. Zero options get conservative defaults.
func New(opts Options) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Rate <= 0 {
		opts.Rate = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 2
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = 4 << 20
	}
	if opts.BlockThreshold <= 0 {
		opts.BlockThreshold = 3
	}
	if opts.BlockCooldown <= 0 {
		opts.BlockCooldown = 5 * time.Minute
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "leadgen/1.0"
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	p := resilience.DefaultPolicy()
	p.Attempts = opts.Attempts
	p.Base = opts.Backoff

	return &HTTPFetcher{client: client, opts: opts, policy: p, hosts: make(map[string]*host)}
}

func (f *HTTPFetcher) hostFor(h string) *host {
	f.mu.Lock()
	defer f.mu.Unlock()
	hs, ok := f.hosts[h]
	if !ok {
		hs = &host{
			limiter: NewAdaptiveLimiter(f.opts.Rate, f.opts.Burst),
			breaker: resilience.NewBreaker(f.opts.BlockThreshold, f.opts.BlockCooldown),
		}
		f.hosts[h] = hs
	}
	return hs
}

// Get fetches rawURL. Transient failures are retried; the returned error
// is transient (resilience.IsTransient) when retries ran out, and wraps
// ErrBlocked when the host served an anti-bot page.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, eris.Errorf("fetcher: invalid url %q", rawURL)
	}
	hs := f.hostFor(u.Host)
	if err := hs.breaker.Allow(); err != nil {
		return nil, eris.Wrapf(ErrBlocked, "fetcher: %s breaker open", u.Host)
	}

	policy := f.policy
	policy.OnRetry = resilience.LogRetries("fetcher", u.Host)

	page, err := resilience.Retry(ctx, policy, func(ctx context.Context) (*Page, error) {
		return f.attempt(ctx, hs, rawURL)
	})
	if err != nil {
		if errors.Is(err, ErrBlocked) {
			hs.breaker.Failure()
		}
		return nil, err
	}
	hs.breaker.Success()
	return page, nil
}

func (f *HTTPFetcher) attempt(ctx context.Context, hs *host, rawURL string) (*Page, error) {
	if err := hs.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetcher: rate limiter wait")
	}

	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, resilience.Transient(eris.Wrapf(err, "fetcher: timeout %s", rawURL), 0)
		}
		return nil, eris.Wrapf(err, "fetcher: get %s", rawURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBody))
	if err != nil {
		return nil, resilience.Transient(eris.Wrapf(err, "fetcher: read %s", rawURL), resp.StatusCode)
	}

	if block := DetectBlock(resp.StatusCode, resp.Header, body); block != BlockNone {
		zap.L().Warn("fetcher: blocked",
			zap.String("url", rawURL),
			zap.String("block", string(block)),
			zap.Int("status", resp.StatusCode),
		)
		return nil, eris.Wrapf(ErrBlocked, "fetcher: %s on %s", block, rawURL)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		hs.limiter.OnRateLimit()
	}
	if resilience.TransientStatus(resp.StatusCode) {
		return nil, resilience.Transient(fmt.Errorf("fetcher: http %d from %s", resp.StatusCode, rawURL), resp.StatusCode)
	}

	hs.limiter.OnSuccess()
	return &Page{URL: rawURL, Status: resp.StatusCode, Body: body}, nil
}
