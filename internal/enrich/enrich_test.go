package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/pkg/anthropic"
	"github.com/sells-group/leadgen/pkg/apollo"
	"github.com/sells-group/leadgen/pkg/apollo/mocks"
)

type fakeDeepSeek struct {
	answer string
	err    error
	calls  int
}

func (f *fakeDeepSeek) Chat(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.answer, f.err
}

type fakeAnthropic struct {
	answer string
	err    error
	mu     sync.Mutex
	reqs   []anthropic.MessageRequest
}

func (f *fakeAnthropic) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: f.answer}}}, nil
}

type fakeResolver struct {
	results map[string]model.RevenueResult
	asked   []string
}

func (f *fakeResolver) Resolve(_ context.Context, company string) model.RevenueResult {
	f.asked = append(f.asked, company)
	if r, ok := f.results[company]; ok {
		return r
	}
	return model.RevenueResult{Company: company, Error: "company not found on growjo", AttemptedVariants: []string{company}}
}

func TestEnrich_AllSteps(t *testing.T) {
	ap := mocks.NewMockClient(t)
	ap.On("EnrichOrganization", mock.Anything, "acmeplumbing.com").Return(&apollo.Organization{
		Name:          "Acme Plumbing LLC",
		WebsiteURL:    "https://acmeplumbing.com/",
		StreetAddress: "123 Main St",
		City:          "Austin",
		State:         "TX",
		PostalCode:    "78701",
		PrimaryPhone:  &apollo.Phone{Number: "+1 512-555-0100"},
	}, nil)

	rev := &fakeResolver{results: map[string]model.RevenueResult{
		"Acme Plumbing": {Company: "Acme Plumbing", EstimatedRevenue: "$4.2M", MatchedVariant: "Acme Plumbing", URL: "https://growjo.com/company/Acme_Plumbing"},
	}}
	ds := &fakeDeepSeek{answer: "plumbing services."}

	e := New(ap, rev, NewClassifier(ds, nil, ""), nil)
	out, err := e.Enrich(context.Background(), model.CompanyQuery{CompanyName: "Acme Plumbing", Domain: "acmeplumbing.com"})
	require.NoError(t, err)

	assert.Empty(t, out.Errors)
	assert.Equal(t, "Acme Plumbing", out.Lead.Company)
	assert.Equal(t, "123 Main St", out.Lead.Street)
	assert.Equal(t, "Austin", out.Lead.City)
	assert.Equal(t, "(512)-555-0100", out.Lead.Phone)
	assert.Equal(t, "https://acmeplumbing.com", out.Lead.Website)
	assert.Equal(t, "$4.2M", out.Lead.Revenue)
	assert.Equal(t, "Plumbing Services", out.Lead.Industry)
	assert.Equal(t, "apollo", out.Lead.Source)
	require.NotNil(t, out.Organization)
	require.NotNil(t, out.Revenue)
	assert.Equal(t, []string{"Acme Plumbing"}, rev.asked)
}

func TestEnrich_StepsDegradeIndependently(t *testing.T) {
	ap := mocks.NewMockClient(t)
	ap.On("SearchCompanies", mock.Anything, apollo.SearchRequest{Name: "Nowhere Co", PerPage: 1}).
		Return(nil, errors.New("apollo down"))

	rev := &fakeResolver{}
	cls := NewClassifier(&fakeDeepSeek{err: errors.New("timeout")}, &fakeAnthropic{err: errors.New("overloaded")}, "")

	out, err := New(ap, rev, cls, nil).Enrich(context.Background(), model.CompanyQuery{CompanyName: "Nowhere Co"})
	require.NoError(t, err)

	assert.Equal(t, "Nowhere Co", out.Lead.Company)
	assert.Equal(t, model.NA, out.Lead.Industry)
	assert.Equal(t, model.NA, out.Lead.Revenue)
	require.NotNil(t, out.Revenue)
	assert.True(t, out.Revenue.Failed())

	var steps []string
	for _, se := range out.Errors {
		steps = append(steps, se.Step)
	}
	assert.Equal(t, []string{StepApollo, StepRevenue, StepClassify}, steps)
}

func TestEnrich_ApolloMissByDomain(t *testing.T) {
	ap := mocks.NewMockClient(t)
	ap.On("EnrichOrganization", mock.Anything, "unknown.io").Return(nil, apollo.ErrNotFound)

	out, err := New(ap, nil, nil, nil).Enrich(context.Background(), model.CompanyQuery{CompanyName: "Unknown", Domain: "unknown.io"})
	require.NoError(t, err)
	assert.Empty(t, out.Errors)
	assert.Nil(t, out.Organization)
	assert.Equal(t, "Unknown", out.Lead.Company)
}

func TestEnrich_RequiresNameOrDomain(t *testing.T) {
	_, err := New(nil, nil, nil, nil).Enrich(context.Background(), model.CompanyQuery{})
	assert.Error(t, err)
}

func TestEnrich_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rev := &fakeResolver{}
	out, err := New(nil, rev, nil, nil).Enrich(ctx, model.CompanyQuery{CompanyName: "Acme"})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, out)
	assert.Empty(t, rev.asked)
}

func TestClassifier_FallsBackToAnthropic(t *testing.T) {
	ds := &fakeDeepSeek{err: errors.New("503")}
	an := &fakeAnthropic{answer: `"Commercial Roofing"`}

	label, err := NewClassifier(ds, an, "claude-test").Classify(context.Background(), "Top Roof Inc", "https://toproof.com")
	require.NoError(t, err)
	assert.Equal(t, "Commercial Roofing", label)
	assert.Equal(t, 1, ds.calls)
	require.Len(t, an.reqs, 1)
	assert.Equal(t, "claude-test", an.reqs[0].Model)
	assert.Contains(t, an.reqs[0].Messages[0].Content, "Website: https://toproof.com")
}

func TestClassifier_AnthropicOnly(t *testing.T) {
	an := &fakeAnthropic{answer: "unknown"}
	label, err := NewClassifier(nil, an, "").Classify(context.Background(), "Zzz", model.NA)
	require.NoError(t, err)
	assert.Empty(t, label)
	assert.NotContains(t, an.reqs[0].Messages[0].Content, "Website")
}

func TestClassifier_NoneConfigured(t *testing.T) {
	_, err := NewClassifier(nil, nil, "").Classify(context.Background(), "Acme", "")
	assert.ErrorIs(t, err, ErrNoClassifier)
}

func TestCleanLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Plumbing", "Plumbing"},
		{"  \"HVAC services.\"\nBecause...", "Hvac Services"},
		{"Industry: dental clinics", "Dental Clinics"},
		{"Unknown", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanLabel(tt.in))
		})
	}
}

func TestClassifyMissing(t *testing.T) {
	leads := []model.LeadRecord{
		{Company: "Acme", Industry: model.NA},
		{Company: "Beta", Industry: "Plumbing"},
		{Company: "Gamma", Industry: model.NA},
	}
	an := &fakeAnthropic{answer: "Drain Cleaning"}

	n, err := ClassifyMissing(context.Background(), NewClassifier(nil, an, ""), leads, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "Drain Cleaning", leads[0].Industry)
	assert.Equal(t, "Plumbing", leads[1].Industry)
	assert.Equal(t, "Drain Cleaning", leads[2].Industry)
	assert.Len(t, an.reqs, 2)
}
