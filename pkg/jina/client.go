// Package jina is a client for the Jina AI reader (r.jina.ai) and search
// (s.jina.ai) APIs.
package jina

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Client is the Jina reader and search API.
type Client interface {
	// Read fetches targetURL through the reader and returns it as markdown.
	Read(ctx context.Context, targetURL string) (*ReadResponse, error)
	// Search runs a web search.
	Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error)
}

// ReadResponse is the reader API response.
type ReadResponse struct {
	Code int      `json:"code"`
	Data ReadData `json:"data"`
}

// ReadData is the page content returned by the reader.
type ReadData struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// SearchResponse is the search API response.
type SearchResponse struct {
	Code int            `json:"code"`
	Data []SearchResult `json:"data"`
}

// SearchResult is one search hit.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// StatusError is a non-200 API response.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("jina: %s status %d", e.Op, e.Code)
}

// SearchOption configures a search.
type SearchOption func(url.Values)

// WithSiteFilter restricts results to a domain or domain path, such as
// "linkedin.com/company".
func WithSiteFilter(site string) SearchOption {
	return func(v url.Values) { v.Set("site", site) }
}

// WithPage requests a later page of results (1-based).
func WithPage(page int) SearchOption {
	return func(v url.Values) {
		if page > 1 {
			v.Set("page", strconv.Itoa(page))
		}
	}
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the reader base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithSearchBaseURL overrides the search base URL.
func WithSearchBaseURL(u string) Option {
	return func(c *httpClient) { c.searchBaseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithBackoff sets the initial retry delay.
func WithBackoff(d time.Duration) Option {
	return func(c *httpClient) { c.backoff = d }
}

type httpClient struct {
	apiKey        string
	baseURL       string
	searchBaseURL string
	backoff       time.Duration
	http          *http.Client
}

// NewClient creates a Jina client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:        apiKey,
		baseURL:       "https://r.jina.ai",
		searchBaseURL: "https://s.jina.ai",
		backoff:       time.Second,
		http:          &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Read(ctx context.Context, targetURL string) (*ReadResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "jina: create read request")
	}
	req.Header.Set("X-Return-Format", "markdown")

	var out ReadResponse
	status, err := c.do(req, &out)
	if err != nil {
		return nil, eris.Wrap(err, "jina: read")
	}
	if status != http.StatusOK {
		return nil, &StatusError{Op: "read", Code: status}
	}
	return &out, nil
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	q := url.Values{}
	for _, opt := range opts {
		opt(q)
	}
	reqURL := c.searchBaseURL + "/" + url.PathEscape(query)
	if len(q) > 0 {
		reqURL += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "jina: create search request")
	}

	var out SearchResponse
	status, err := c.do(req, &out)
	if err != nil {
		return nil, eris.Wrap(err, "jina: search")
	}
	switch status {
	case http.StatusOK:
		return &out, nil
	case http.StatusUnprocessableEntity:
		// no results for the query
		return &SearchResponse{Code: status}, nil
	default:
		return nil, &StatusError{Op: "search", Code: status}
	}
}

// do sends req with up to three attempts on 429/5xx and network errors,
// decoding a 200 body into out.
func (c *httpClient) do(req *http.Request, out any) (int, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	const attempts = 3
	delay := c.backoff
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		status, err := c.once(req, out)
		if err == nil && !retryable(status) {
			return status, nil
		}
		if err == nil {
			err = &StatusError{Op: req.Method, Code: status}
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		select {
		case <-req.Context().Done():
			return 0, req.Context().Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return 0, lastErr
}

func (c *httpClient) once(req *http.Request, out any) (int, error) {
	resp, err := c.http.Do(req.Clone(req.Context()))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, eris.Wrap(err, "decode response")
	}
	return resp.StatusCode, nil
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable:
		return true
	}
	return false
}
