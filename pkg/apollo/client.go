// Package apollo is a client for the Apollo.io organization API.
package apollo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.apollo.io/api/v1"

// Client performs Apollo.io organization operations.
type Client interface {
	// EnrichOrganization looks up one organization by its primary domain.
	EnrichOrganization(ctx context.Context, domain string) (*Organization, error)
	// SearchCompanies runs a paginated company search.
	SearchCompanies(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// Organization is an Apollo company profile.
type Organization struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	WebsiteURL           string   `json:"website_url"`
	PrimaryDomain        string   `json:"primary_domain"`
	LinkedInURL          string   `json:"linkedin_url"`
	Phone                string   `json:"phone"`
	Industry             string   `json:"industry"`
	Keywords             []string `json:"keywords"`
	EstimatedEmployees   int      `json:"estimated_num_employees"`
	AnnualRevenue        float64  `json:"annual_revenue"`
	AnnualRevenuePrinted string   `json:"annual_revenue_printed"`
	StreetAddress        string   `json:"street_address"`
	City                 string   `json:"city"`
	State                string   `json:"state"`
	PostalCode           string   `json:"postal_code"`
	FoundedYear          int      `json:"founded_year"`
	PrimaryPhone         *Phone   `json:"primary_phone,omitempty"`
}

// Phone is Apollo's structured phone number.
type Phone struct {
	Number string `json:"number"`
}

// PhoneNumber returns the best available phone for the organization.
func (o *Organization) PhoneNumber() string {
	if o.PrimaryPhone != nil && o.PrimaryPhone.Number != "" {
		return o.PrimaryPhone.Number
	}
	return o.Phone
}

// SearchRequest is a mixed company search.
type SearchRequest struct {
	Keywords  string
	Name      string
	Locations []string
	Page      int
	PerPage   int
}

type searchBody struct {
	Keywords  []string `json:"q_organization_keyword_tags,omitempty"`
	Name      string   `json:"q_organization_name,omitempty"`
	Locations []string `json:"organization_locations,omitempty"`
	Page      int      `json:"page"`
	PerPage   int      `json:"per_page"`
}

// SearchResponse is one page of search results.
type SearchResponse struct {
	Organizations []Organization `json:"organizations"`
	Accounts      []Organization `json:"accounts"`
	Pagination    Pagination     `json:"pagination"`
}

// Companies returns organizations and saved accounts together.
func (r *SearchResponse) Companies() []Organization {
	out := make([]Organization, 0, len(r.Accounts)+len(r.Organizations))
	out = append(out, r.Accounts...)
	return append(out, r.Organizations...)
}

// Pagination describes the result window.
type Pagination struct {
	Page         int `json:"page"`
	PerPage      int `json:"per_page"`
	TotalEntries int `json:"total_entries"`
	TotalPages   int `json:"total_pages"`
}

// HasNext reports whether another page follows.
func (p Pagination) HasNext() bool {
	return p.Page > 0 && p.Page < p.TotalPages
}

// ErrNotFound is returned when Apollo has no organization for a domain.
var ErrNotFound = eris.New("apollo: organization not found")

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new Apollo client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) EnrichOrganization(ctx context.Context, domain string) (*Organization, error) {
	reqURL := c.baseURL + "/organizations/enrich?" + url.Values{"domain": {domain}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "apollo: create enrich request")
	}

	var out struct {
		Organization *Organization `json:"organization"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, eris.Wrap(err, "apollo: enrich organization")
	}
	if out.Organization == nil || out.Organization.Name == "" {
		return nil, ErrNotFound
	}
	return out.Organization, nil
}

func (c *httpClient) SearchCompanies(ctx context.Context, sr SearchRequest) (*SearchResponse, error) {
	body := searchBody{
		Name:      sr.Name,
		Locations: sr.Locations,
		Page:      max(sr.Page, 1),
		PerPage:   sr.PerPage,
	}
	if sr.Keywords != "" {
		body.Keywords = []string{sr.Keywords}
	}
	if body.PerPage <= 0 {
		body.PerPage = 25
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "apollo: marshal search")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mixed_companies/search", bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "apollo: create search request")
	}
	req.Header.Set("Content-Type", "application/json")

	var out SearchResponse
	if err := c.do(req, &out); err != nil {
		return nil, eris.Wrap(err, "apollo: search companies")
	}
	return &out, nil
}

func (c *httpClient) do(req *http.Request, out any) error {
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: string(msg)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// StatusError is a non-200 API response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return "unexpected status " + http.StatusText(e.Code) + ": " + e.Body
}
