package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/export"
	"github.com/sells-group/leadgen/internal/merge"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/orchestrator"
)

var (
	scrapeIndustry  string
	scrapeLocations []string
	scrapeOffset    int
	scrapeLimit     int
	scrapeSources   []string
	scrapeOutput    string
	scrapeFormat    string
	scrapeClassify  bool
	scrapePersist   bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape and merge leads for an industry in one or more locations",
	Example: `  leadgen scrape --industry plumbers --location "Austin, TX"
  leadgen scrape --industry roofing --location Denver --location Boulder --format xlsx --output roofing.xlsx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		format, err := export.ParseFormat(scrapeFormat, scrapeOutput)
		if err != nil {
			return err
		}
		queries := scrapeQueries(scrapeIndustry, scrapeLocations, scrapeOffset, scrapeLimit)
		if len(queries) == 0 {
			return eris.New("--industry and at least one --location are required")
		}

		env, err := initEnv(ctx, "scrape", scrapePersist)
		if err != nil {
			return err
		}
		defer env.Close()

		scraper, err := env.Scraper(scrapeSources...)
		if err != nil {
			return err
		}
		svc := &leadService{scraper: scraper, store: env.Store, concurrency: cfg.Batch.Concurrency}
		if scrapeClassify {
			if env.Classifier == nil {
				return eris.New("--classify needs a deepseek or anthropic key")
			}
			svc.classifier = env.Classifier
		}

		// CSV is written as locations finish; other formats at the end.
		var out *export.CSVWriter
		if format == export.FormatCSV {
			out, err = openCSV(scrapeOutput, model.LeadFields())
			if err != nil {
				return err
			}
		}

		leads, report, runErr := scrapeBatch(ctx, svc, queries, out, batchOptions("scrape"))
		if out != nil {
			if err := out.Close(); err != nil && runErr == nil {
				runErr = err
			}
		} else if report != nil {
			if err := export.WriteLeads(scrapeOutput, format, leads); err != nil && runErr == nil {
				runErr = err
			}
		}

		if report != nil {
			for _, f := range report.Failed {
				zap.L().Warn("location failed",
					zap.String("query", f.Input.String()),
					zap.Error(f.Err),
				)
			}
			if scrapeOutput != "" && scrapeOutput != "-" {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d leads from %d/%d locations to %s\n",
					len(leads), len(report.Succeeded), len(queries), scrapeOutput)
			}
		}
		return runErr
	},
}

// scrapeQueries builds one query per non-empty location.
func scrapeQueries(industry string, locations []string, offset, limit int) []model.Query {
	var out []model.Query
	for _, loc := range locations {
		q := model.Query{Industry: industry, Location: loc, Offset: offset, Limit: limit}
		if q.Valid() {
			out = append(out, q)
		}
	}
	return out
}

// scrapeBatch runs every query as one batch job and merges the leads
// across queries. Leads new to the batch are written to out as each query
// completes; out may be nil.
func scrapeBatch(ctx context.Context, svc *leadService, queries []model.Query, out *export.CSVWriter, opts orchestrator.Options) ([]model.LeadRecord, *orchestrator.Report[model.Query, *orchestrator.ScrapeResult], error) {
	merger := merge.NewMerger()
	sink := orchestrator.SinkFuncs[model.Query, *orchestrator.ScrapeResult]{
		WriteFunc: func(o orchestrator.Outcome[model.Query, *orchestrator.ScrapeResult]) error {
			if o.Output == nil {
				return nil
			}
			for _, lead := range o.Output.Leads {
				if _, isNew := merger.Add(lead); isNew && out != nil {
					if err := out.Write(lead.Row()); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	if out != nil {
		sink.FlushFunc = out.Flush
	}

	report, err := orchestrator.Run(ctx, queries, func(ctx context.Context, q model.Query) (*orchestrator.ScrapeResult, error) {
		return svc.Scrape(ctx, q, nil)
	}, sink, opts)
	return merger.Leads(), report, err
}

// openCSV creates a CSV file, or writes to stdout for "-".
func openCSV(path string, header []string) (*export.CSVWriter, error) {
	if path == "" || path == "-" {
		return export.NewCSVWriter(os.Stdout, header)
	}
	return export.CreateCSV(path, header)
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeIndustry, "industry", "", "industry or search term (required)")
	scrapeCmd.Flags().StringArrayVar(&scrapeLocations, "location", nil, "location to search; repeat for several")
	scrapeCmd.Flags().IntVar(&scrapeOffset, "offset", 0, "skip this many merged leads per location")
	scrapeCmd.Flags().IntVar(&scrapeLimit, "limit", 0, "keep at most this many merged leads per location (0 = all)")
	scrapeCmd.Flags().StringSliceVar(&scrapeSources, "sources", nil, "sources to run (default from config)")
	scrapeCmd.Flags().StringVarP(&scrapeOutput, "output", "o", "leads.csv", "output file, - for stdout")
	scrapeCmd.Flags().StringVar(&scrapeFormat, "format", "", "csv, json or xlsx (default from the output extension)")
	scrapeCmd.Flags().BoolVar(&scrapeClassify, "classify", false, "classify leads with no industry")
	scrapeCmd.Flags().BoolVar(&scrapePersist, "persist", false, "save leads and runs to the store")
	_ = scrapeCmd.MarkFlagRequired("industry")
	rootCmd.AddCommand(scrapeCmd)
}
