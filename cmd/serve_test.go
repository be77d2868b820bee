package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen/internal/config"
	"github.com/sells-group/leadgen/internal/enrich"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/source"
	"github.com/sells-group/leadgen/internal/store"
	"github.com/sells-group/leadgen/internal/stream"
)

func newTestAPI(t *testing.T, st store.Store, sources ...source.Source) (*api, http.Handler) {
	t.Helper()
	resolver := &scriptedResolver{calls: map[string]int{}, never: map[string]bool{"Ghost": true}}
	a := &api{
		ctx:      t.Context(),
		leads:    newService(st, sources...),
		revenue:  resolver,
		enricher: enrich.New(nil, resolver, nil, nil),
		store:    st,
		jobs:     stream.NewRegistry(),
		tick:     10 * time.Millisecond,
	}
	t.Cleanup(a.wait)
	return a, buildRouter(a, nil)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_Health(t *testing.T) {
	_, h := newTestAPI(t, nil)

	rr := doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_ScrapeLeads(t *testing.T) {
	_, h := newTestAPI(t, nil, fakeSource{name: "yellowpages", recs: plumbers()})

	rr := doJSON(t, h, http.MethodPost, "/v1/leads", model.Query{Industry: "plumbers", Location: "Austin, TX", Limit: 1})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp leadsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Leads, 1)
	assert.Equal(t, "Acme Plumbing", resp.Leads[0].Company)
	assert.Equal(t, 2, resp.TotalScraped)
	assert.Equal(t, 2, resp.PerSource["yellowpages"])
}

func TestRouter_ScrapeLeads_BadRequests(t *testing.T) {
	_, h := newTestAPI(t, nil, fakeSource{name: "yellowpages"})

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"industry":`},
		{"missing location", `{"industry":"plumbers"}`},
		{"negative limit", `{"industry":"plumbers","location":"Austin","limit":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/leads", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestRouter_ScrapeLeads_AllSourcesFailed(t *testing.T) {
	_, h := newTestAPI(t, nil, fakeSource{name: "yellowpages", err: errors.New("blocked")})

	rr := doJSON(t, h, http.MethodPost, "/v1/leads", model.Query{Industry: "plumbers", Location: "Austin, TX"})
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	var body struct {
		Error    string                `json:"error"`
		Failures []model.SourceFailure `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "all sources failed")
	require.Len(t, body.Failures, 1)
	assert.Equal(t, "yellowpages", body.Failures[0].Source)
}

func TestRouter_JobLifecycle(t *testing.T) {
	a, h := newTestAPI(t, nil, fakeSource{name: "yellowpages", recs: plumbers()})

	rr := doJSON(t, h, http.MethodPost, "/v1/jobs", model.Query{Industry: "plumbers", Location: "Austin, TX"})
	require.Equal(t, http.StatusAccepted, rr.Code)

	var accepted map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &accepted))
	id := accepted["job_id"]
	require.NotEmpty(t, id)
	assert.Equal(t, "/v1/jobs/"+id+"/events", accepted["events"])

	job, ok := a.jobs.Get(id)
	require.True(t, ok)
	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish")
	}

	rr = doJSON(t, h, http.MethodGet, "/v1/jobs/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var snap model.JobSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.True(t, snap.Complete)
	assert.Equal(t, 2, snap.TotalScraped)
	assert.Equal(t, 2, snap.ProcessedCount)

	rr = doJSON(t, h, http.MethodGet, "/v1/jobs/"+id+"/events", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	body := rr.Body.String()
	initAt := strings.Index(body, "event: init")
	batchAt := strings.Index(body, "event: batch")
	doneAt := strings.Index(body, "event: done")
	require.GreaterOrEqual(t, initAt, 0)
	assert.Greater(t, batchAt, initAt)
	assert.Greater(t, doneAt, batchAt)
	assert.Equal(t, 1, strings.Count(body, "Acme Plumbing"))
}

func TestRouter_JobNotFound(t *testing.T) {
	_, h := newTestAPI(t, nil)

	assert.Equal(t, http.StatusNotFound, doJSON(t, h, http.MethodGet, "/v1/jobs/missing", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, h, http.MethodGet, "/v1/jobs/missing/events", nil).Code)
}

func TestRouter_ListLeads(t *testing.T) {
	st := newTestStore(t)
	_, h := newTestAPI(t, st, fakeSource{name: "yellowpages", recs: plumbers()})

	rr := doJSON(t, h, http.MethodPost, "/v1/leads", model.Query{Industry: "plumbers", Location: "Austin, TX"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/v1/leads?state=tx&limit=1&offset=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Leads []model.LeadRecord `json:"leads"`
		Count int                `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Leads, 1)
	assert.Equal(t, "Beta Drains", body.Leads[0].Company)

	rr = doJSON(t, h, http.MethodGet, "/v1/leads?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_StoreRoutesWithoutStore(t *testing.T) {
	_, h := newTestAPI(t, nil)

	assert.Equal(t, http.StatusServiceUnavailable, doJSON(t, h, http.MethodGet, "/v1/leads", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, doJSON(t, h, http.MethodGet, "/v1/runs/abc", nil).Code)
}

func TestRouter_GetRun(t *testing.T) {
	st := newTestStore(t)
	_, h := newTestAPI(t, st)

	run, err := st.CreateRun(t.Context(), model.Query{Industry: "plumbers", Location: "Austin, TX"})
	require.NoError(t, err)

	rr := doJSON(t, h, http.MethodGet, "/v1/runs/"+run.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var got model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "Austin, TX", got.Query.Location)

	assert.Equal(t, http.StatusNotFound, doJSON(t, h, http.MethodGet, "/v1/runs/missing", nil).Code)
}

func TestRouter_Revenue(t *testing.T) {
	_, h := newTestAPI(t, nil)

	rr := doJSON(t, h, http.MethodPost, "/v1/revenue", map[string]string{"company_name": "Acme"})
	require.Equal(t, http.StatusOK, rr.Code)
	var ok model.RevenueResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ok))
	assert.Equal(t, "$12.5M", ok.EstimatedRevenue)

	rr = doJSON(t, h, http.MethodPost, "/v1/revenue", map[string]string{"company_name": "Ghost"})
	require.Equal(t, http.StatusNotFound, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "company not found on growjo", body["error"])
	assert.Contains(t, body, "attempted_variants")
	assert.NotContains(t, body, "estimated_revenue")

	rr = doJSON(t, h, http.MethodPost, "/v1/revenue", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_Enrich(t *testing.T) {
	_, h := newTestAPI(t, nil)

	rr := doJSON(t, h, http.MethodPost, "/v1/enrich", map[string]string{"company_name": "Acme"})
	require.Equal(t, http.StatusOK, rr.Code)
	var res enrich.Enrichment
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, "Acme", res.Lead.Company)
	assert.Equal(t, "$12.5M", res.Lead.Revenue)
	assert.Empty(t, res.Errors)

	rr = doJSON(t, h, http.MethodPost, "/v1/enrich", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	_, h := newTestAPI(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/v1/leads", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestResolvePort(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg = prev })
	cfg = &config.Config{Server: config.ServerConfig{Port: 8080}}

	assert.Equal(t, 9090, resolvePort(9090))
	assert.Equal(t, 8080, resolvePort(0))
}
