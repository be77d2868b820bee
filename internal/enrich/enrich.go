// Package enrich builds a single-company profile from Apollo, Growjo and
// an industry classifier. Each step degrades on its own; a failed step is
// recorded and the others still run.
package enrich

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/parse"
	"github.com/sells-group/leadgen/internal/source"
	"github.com/sells-group/leadgen/pkg/apollo"
)

// Step names used in Enrichment.Errors.
const (
	StepApollo   = "apollo"
	StepRevenue  = "revenue"
	StepClassify = "classify"
)

// RevenueResolver looks up a company's estimated revenue.
type RevenueResolver interface {
	Resolve(ctx context.Context, company string) model.RevenueResult
}

// StepError records a failed enrichment step.
type StepError struct {
	Step  string `json:"step"`
	Error string `json:"error"`
}

// Enrichment is the profile of one company.
type Enrichment struct {
	Query        model.CompanyQuery   `json:"query"`
	Lead         model.LeadRecord     `json:"lead"`
	Organization *apollo.Organization `json:"organization,omitempty"`
	Revenue      *model.RevenueResult `json:"revenue,omitempty"`
	Errors       []StepError          `json:"errors,omitempty"`
}

func (e *Enrichment) fail(step string, err error) {
	e.Errors = append(e.Errors, StepError{Step: step, Error: err.Error()})
}

// Enricher runs the enrichment steps. Any dependency may be nil, which
// skips its step.
type Enricher struct {
	apollo     apollo.Client
	revenue    RevenueResolver
	classifier Classifier
	parser     *parse.Parser
}

// New creates an Enricher.
func New(ap apollo.Client, rev RevenueResolver, cls Classifier, parser *parse.Parser) *Enricher {
	if parser == nil {
		parser = parse.NewParser(nil)
	}
	return &Enricher{apollo: ap, revenue: rev, classifier: cls, parser: parser}
}

// Enrich profiles the company named by q.
func (e *Enricher) Enrich(ctx context.Context, q model.CompanyQuery) (*Enrichment, error) {
	if q.CompanyName == "" && q.Domain == "" {
		return nil, eris.New("enrich: company name or domain is required")
	}
	log := zap.L().With(zap.String("company", q.CompanyName), zap.String("domain", q.Domain))

	out := &Enrichment{Query: q, Lead: model.NewLeadRecord()}
	out.Lead.Set(model.FieldCompany, q.CompanyName)

	if e.apollo != nil {
		org, err := e.organization(ctx, q)
		switch {
		case err != nil:
			log.Warn("enrich: apollo lookup failed", zap.Error(err))
			out.fail(StepApollo, err)
		case org != nil:
			out.Organization = org
			lead := e.parser.Record(source.OrganizationRecord(*org, ""))
			lead.Source = source.ApolloSource
			if q.CompanyName != "" {
				lead.Company = q.CompanyName
			}
			out.Lead = lead
		}
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	if e.revenue != nil && out.Lead.Company != model.NA {
		res := e.revenue.Resolve(ctx, out.Lead.Company)
		out.Revenue = &res
		if res.Failed() {
			out.fail(StepRevenue, eris.New(res.Error))
		} else if out.Lead.IsNA(model.FieldRevenue) {
			out.Lead.Revenue = res.EstimatedRevenue
		}
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	if e.classifier != nil && out.Lead.IsNA(model.FieldIndustry) && out.Lead.Company != model.NA {
		label, err := e.classifier.Classify(ctx, out.Lead.Company, out.Lead.Website)
		switch {
		case err != nil:
			log.Warn("enrich: classify failed", zap.Error(err))
			out.fail(StepClassify, err)
		case label != "":
			out.Lead.Industry = label
		}
	}
	return out, ctx.Err()
}

// organization looks the company up by domain, or by name when no domain
// is given. A miss returns nil without error.
func (e *Enricher) organization(ctx context.Context, q model.CompanyQuery) (*apollo.Organization, error) {
	if q.Domain != "" {
		org, err := e.apollo.EnrichOrganization(ctx, q.Domain)
		if errors.Is(err, apollo.ErrNotFound) {
			return nil, nil
		}
		return org, err
	}

	resp, err := e.apollo.SearchCompanies(ctx, apollo.SearchRequest{Name: q.CompanyName, PerPage: 1})
	if err != nil {
		return nil, err
	}
	if companies := resp.Companies(); len(companies) > 0 {
		return &companies[0], nil
	}
	return nil, nil
}
