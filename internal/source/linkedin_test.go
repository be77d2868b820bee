package source

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/pkg/jina"
)

// fakeJina serves search pages by page number and canned reader content.
type fakeJina struct {
	pages    map[int][]jina.SearchResult
	err      error
	searches int
	sites    []string
	read     map[string]string
}

func (f *fakeJina) Read(_ context.Context, target string) (*jina.ReadResponse, error) {
	if c, ok := f.read[target]; ok {
		return &jina.ReadResponse{Code: 200, Data: jina.ReadData{URL: target, Content: c}}, nil
	}
	return nil, &jina.StatusError{Op: "read", Code: 404}
}

func (f *fakeJina) Search(_ context.Context, _ string, opts ...jina.SearchOption) (*jina.SearchResponse, error) {
	f.searches++
	if f.err != nil {
		return nil, f.err
	}
	v := make(map[string][]string)
	for _, o := range opts {
		o(v)
	}
	page := 1
	if p := v["page"]; len(p) > 0 {
		page, _ = strconv.Atoi(p[0])
	}
	if s := v["site"]; len(s) > 0 {
		f.sites = append(f.sites, s[0])
	}
	return &jina.SearchResponse{Code: 200, Data: f.pages[page]}, nil
}

func TestLinkedIn_Stream(t *testing.T) {
	fj := &fakeJina{pages: map[int][]jina.SearchResult{
		1: {
			{
				Title:       "Acme Plumbing | LinkedIn",
				URL:         "https://www.linkedin.com/company/acme-plumbing",
				Description: "Industry: Construction · Headquarters: Austin, TX · Website: https://acmeplumbing.com",
			},
			{Title: "Jane Doe - Plumber - LinkedIn", URL: "https://www.linkedin.com/in/janedoe"},
			{Title: "Acme Plumbing | LinkedIn", URL: "https://www.linkedin.com/company/acme-plumbing"},
		},
		2: {
			{Title: "Beta Drains - LinkedIn", URL: "https://linkedin.com/company/beta-drains", Content: "Phone: (512) 555-0199"},
		},
	}}

	li := NewLinkedIn(fj, "", 0, 5)
	recs, err := Collect(context.Background(), li, model.Query{Industry: "plumbers", Location: "Austin, TX"})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "Acme Plumbing", recs[0].Company)
	assert.Equal(t, "Construction", recs[0].Industry)
	assert.Equal(t, "Austin, TX", recs[0].Address)
	assert.Equal(t, "https://acmeplumbing.com", recs[0].Website)
	assert.Equal(t, "linkedin", recs[0].Source)

	assert.Equal(t, "Beta Drains", recs[1].Company)
	assert.Equal(t, "plumbers", recs[1].Industry)
	assert.Equal(t, "(512) 555-0199", recs[1].Phone)

	// page 3 is empty, so pagination stops there
	assert.Equal(t, 3, fj.searches)
	assert.Equal(t, "linkedin.com/company", fj.sites[0])
}

func TestLinkedIn_MaxResults(t *testing.T) {
	fj := &fakeJina{pages: map[int][]jina.SearchResult{1: {
		{Title: "A | LinkedIn", URL: "https://www.linkedin.com/company/a"},
		{Title: "B | LinkedIn", URL: "https://www.linkedin.com/company/b"},
		{Title: "C | LinkedIn", URL: "https://www.linkedin.com/company/c"},
	}}}

	recs, err := Collect(context.Background(), NewLinkedIn(fj, "", 2, 5), model.Query{Industry: "x", Location: "y"})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, 1, fj.searches)
}

func TestLinkedIn_AuthFailureIsHard(t *testing.T) {
	fj := &fakeJina{err: &jina.StatusError{Op: "search", Code: 401}}

	_, err := Collect(context.Background(), NewLinkedIn(fj, "", 0, 5), model.Query{Industry: "x", Location: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, 1, fj.searches)
}

func TestLinkedIn_RateLimitYieldsNothing(t *testing.T) {
	fj := &fakeJina{err: &jina.StatusError{Op: "search", Code: 429}}

	recs, err := Collect(context.Background(), NewLinkedIn(fj, "", 0, 5), model.Query{Industry: "x", Location: "y"})
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, 2, fj.searches)
}
