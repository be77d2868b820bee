package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/enrich"
	"github.com/sells-group/leadgen/internal/export"
	"github.com/sells-group/leadgen/internal/fetcher"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/orchestrator"
)

var (
	revenueInput  string
	revenueColumn string
	revenueOutput string
)

var revenueCmd = &cobra.Command{
	Use:   "revenue",
	Short: "Resolve estimated revenue for a list of companies",
	Example: `  leadgen revenue --csv companies.csv --output revenue.csv
  leadgen revenue --csv accounts.xlsx --column "Account Name"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		companies, err := readCompanies(ctx, revenueInput, revenueColumn)
		if err != nil {
			return err
		}
		if len(companies) == 0 {
			return eris.Errorf("no companies in column %q of %s", revenueColumn, revenueInput)
		}

		env, err := initEnv(ctx, "revenue", false)
		if err != nil {
			return err
		}
		defer env.Close()

		out, err := openCSV(revenueOutput, model.RevenueFields())
		if err != nil {
			return err
		}

		report, runErr := revenueBatch(ctx, env.Growjo, companies, out, batchOptions("revenue"))
		if err := out.Close(); err != nil && runErr == nil {
			runErr = err
		}
		if report != nil && revenueOutput != "" && revenueOutput != "-" {
			fmt.Fprintf(cmd.OutOrStdout(), "resolved %d/%d companies (%d retried), results in %s\n",
				len(report.Succeeded), len(companies), report.Retried, revenueOutput)
		}
		return runErr
	},
}

// readCompanies reads the company column from a CSV or XLSX file, keeping
// the first occurrence of each name.
func readCompanies(ctx context.Context, path, column string) ([]string, error) {
	var names []string
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		col, err := fetcher.ReadXLSXColumn(path, column)
		if err != nil {
			return nil, err
		}
		names = col
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "open %s", path)
		}
		defer f.Close()
		col, err := fetcher.ReadColumn(ctx, f, column)
		if err != nil {
			return nil, err
		}
		names = col
	}

	seen := make(map[string]bool, len(names))
	out := names[:0]
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[strings.ToLower(n)] {
			continue
		}
		seen[strings.ToLower(n)] = true
		out = append(out, n)
	}
	return out, nil
}

// revenueBatch resolves every company and writes one row per final
// outcome. A failed lookup is retried once before its failure row is
// written.
func revenueBatch(ctx context.Context, resolver enrich.RevenueResolver, companies []string, out *export.CSVWriter, opts orchestrator.Options) (*orchestrator.Report[string, model.RevenueResult], error) {
	sink := orchestrator.SinkFuncs[string, model.RevenueResult]{
		WriteFunc: func(o orchestrator.Outcome[string, model.RevenueResult]) error {
			res := o.Output
			if res.Company == "" {
				res.Company = o.Input
			}
			if o.Err != nil && res.Error == "" {
				res.Error = o.Err.Error()
			}
			return out.Write(res.Row())
		},
		FlushFunc: out.Flush,
	}

	report, err := orchestrator.Run(ctx, companies, func(ctx context.Context, company string) (model.RevenueResult, error) {
		res := resolver.Resolve(ctx, company)
		if res.Failed() {
			return res, eris.New(res.Error)
		}
		return res, nil
	}, sink, opts)
	if report != nil {
		for _, f := range report.Failed {
			zap.L().Debug("revenue not resolved",
				zap.String("company", f.Input),
				zap.Strings("attempted", f.Output.AttemptedVariants),
			)
		}
	}
	return report, err
}

func init() {
	revenueCmd.Flags().StringVar(&revenueInput, "csv", "", "input CSV or XLSX file (required)")
	revenueCmd.Flags().StringVar(&revenueColumn, "column", "company", "column holding company names")
	revenueCmd.Flags().StringVarP(&revenueOutput, "output", "o", "revenue.csv", "output CSV file, - for stdout")
	_ = revenueCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(revenueCmd)
}
