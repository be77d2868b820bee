package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen/internal/export"
	"github.com/sells-group/leadgen/internal/model"
)

var (
	enrichCompany string
	enrichDomain  string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Profile a single company and print it as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		if enrichCompany == "" && enrichDomain == "" {
			return eris.New("--company or --domain is required")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "enrich", false)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Enricher().Enrich(ctx, model.CompanyQuery{
			CompanyName: enrichCompany,
			Domain:      enrichDomain,
		})
		if err != nil {
			return err
		}
		return export.WriteJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichCompany, "company", "", "company name")
	enrichCmd.Flags().StringVar(&enrichDomain, "domain", "", "company website domain")
	rootCmd.AddCommand(enrichCmd)
}
