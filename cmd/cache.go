package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen/internal/matchcache"
	"github.com/sells-group/leadgen/internal/source"
)

var cacheSource string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and migrate the company-name match cache",
}

var cacheGetCmd = &cobra.Command{
	Use:   "get <company>",
	Short: "Print the cached match for a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := openCache(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		matched, ok, err := c.Get(ctx, cacheSource, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no %s match cached for %q", cacheSource, args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), matched)
		return nil
	},
}

var cacheSetCmd = &cobra.Command{
	Use:   "set <company> <matched>",
	Short: "Record the matched name for a company",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := openCache(ctx)
		if err != nil {
			return err
		}
		defer c.Close()
		return c.Set(ctx, cacheSource, args[0], args[1])
	},
}

var cacheImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load a legacy JSON cache file into the cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := openCache(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		n, err := matchcache.Import(ctx, c, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d entries from %s\n", n, args[0])
		return nil
	},
}

var cacheExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write the cache as a legacy JSON cache file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := openCache(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		n, err := matchcache.Export(ctx, c, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d entries to %s\n", n, args[0])
		return nil
	},
}

// openCache validates the cache settings and opens the cache.
func openCache(ctx context.Context) (matchcache.Cache, error) {
	if err := cfg.Validate("cache"); err != nil {
		return nil, err
	}
	return initCache(ctx)
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&cacheSource, "source", source.GrowjoSource, "cache namespace")
	cacheCmd.AddCommand(cacheGetCmd, cacheSetCmd, cacheImportCmd, cacheExportCmd)
	rootCmd.AddCommand(cacheCmd)
}
