package source

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/resilience"
	"github.com/sells-group/leadgen/internal/revenue"
	"github.com/sells-group/leadgen/pkg/apollo"
)

// ApolloSource names the Apollo.io source on leads.
const ApolloSource = "apollo"

// Apollo pages through Apollo.io's company search.
type Apollo struct {
	client  apollo.Client
	perPage int
	pager   Paginator
}

// NewApollo creates the company-data source.
func NewApollo(client apollo.Client, perPage, maxPages int) *Apollo {
	return &Apollo{
		client:  client,
		perPage: perPage,
		pager:   Paginator{Source: ApolloSource, MaxPages: maxPages},
	}
}

// Name implements Source.
func (a *Apollo) Name() string { return ApolloSource }

// Kind implements Source.
func (a *Apollo) Kind() Kind { return KindHTTP }

// Stream implements Source.
func (a *Apollo) Stream(ctx context.Context, q model.Query) (<-chan model.RawRecord, <-chan error) {
	return produce(ctx, a.Name(), func(ctx context.Context, emit emitFunc) error {
		return a.pager.Run(ctx, func(ctx context.Context, n int) (bool, error) {
			resp, err := a.client.SearchCompanies(ctx, apollo.SearchRequest{
				Keywords:  q.Industry,
				Locations: []string{q.Location},
				Page:      n,
				PerPage:   a.perPage,
			})
			if err != nil {
				var se *apollo.StatusError
				if errors.As(err, &se) && resilience.TransientStatus(se.Code) {
					return false, resilience.Transient(err, se.Code)
				}
				return false, eris.Wrap(err, "apollo: search")
			}

			orgs := resp.Companies()
			for _, o := range orgs {
				if !emit(OrganizationRecord(o, q.Industry)) {
					return false, ctx.Err()
				}
			}
			return len(orgs) > 0 && resp.Pagination.HasNext(), nil
		})
	})
}

// OrganizationRecord maps an Apollo organization to a raw record.
func OrganizationRecord(o apollo.Organization, industry string) model.RawRecord {
	rec := model.RawRecord{
		Company:  o.Name,
		Industry: o.Industry,
		Address:  joinNonEmpty(", ", o.StreetAddress, o.City, strings.TrimSpace(o.State+" "+o.PostalCode)),
		Phone:    o.PhoneNumber(),
		Website:  o.WebsiteURL,
		Revenue:  revenue.Normalize(o.AnnualRevenuePrinted),
		URL:      o.LinkedInURL,
	}
	if rec.Industry == "" {
		rec.Industry = industry
	}
	if rec.Revenue == "" && o.AnnualRevenue > 0 {
		rec.Revenue = revenue.Format(int64(o.AnnualRevenue))
	}
	if rec.Website == "" && o.PrimaryDomain != "" {
		rec.Website = "https://" + o.PrimaryDomain
	}
	return rec
}
