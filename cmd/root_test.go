package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"scrape", "revenue", "enrich", "serve", "cache"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "leadgen", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestScrapeCommand_Flags(t *testing.T) {
	for _, name := range []string{"industry", "location", "offset", "limit", "sources", "output", "format", "classify", "persist"} {
		assert.NotNil(t, scrapeCmd.Flags().Lookup(name), "scrape should have --%s flag", name)
	}
	out := scrapeCmd.Flags().Lookup("output")
	require.NotNil(t, out)
	assert.Equal(t, "leads.csv", out.DefValue)
	assert.Equal(t, "o", out.Shorthand)
}

func TestRevenueCommand_Flags(t *testing.T) {
	col := revenueCmd.Flags().Lookup("column")
	require.NotNil(t, col)
	assert.Equal(t, "company", col.DefValue)
	assert.NotNil(t, revenueCmd.Flags().Lookup("csv"))
	assert.NotNil(t, revenueCmd.Flags().Lookup("output"))
}

func TestEnrichCommand_Flags(t *testing.T) {
	assert.NotNil(t, enrichCmd.Flags().Lookup("company"))
	assert.NotNil(t, enrichCmd.Flags().Lookup("domain"))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestCacheCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range cacheCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"get", "set", "import", "export"} {
		assert.True(t, names[name], "cache should have subcommand %q", name)
	}

	src := cacheCmd.PersistentFlags().Lookup("source")
	require.NotNil(t, src)
	assert.Equal(t, "growjo", src.DefValue)
}
