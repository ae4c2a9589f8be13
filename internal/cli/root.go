package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "metamigrate",
	Short: "Migrate DataHub metadata between environments",
	Long: `metamigrate moves metadata (tags, glossary terms, domains, structured
properties, and schema-field tags/terms) from one DataHub environment to
another. It matches entities across environments by entity type, browse
path and name, rewrites URNs through per-environment mutation rules, and
emits idempotent change proposals against the target.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().String("db", "", "Path to database file (overrides METAMIGRATE_DB_PATH)")
}
