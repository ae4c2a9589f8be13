package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/datahub-tools/metamigrate/internal/cli/appctx"
	"github.com/datahub-tools/metamigrate/internal/datahub"
	"github.com/datahub-tools/metamigrate/internal/entity"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export entities from an environment into an export file",
	Long: `Fetch entities from a configured environment and write them to an
export file suitable for 'metamigrate migrate --input'.

Examples:
  metamigrate export --env dev --output export.json
  metamigrate export --env dev --output export.json --types dataset,tag
`,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runExport),
}

var (
	exportEnv    string
	exportOutput string
	exportTypes  string
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportEnv, "env", "", "Source environment name (required)")
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "Path to write the export file (required)")
	exportCmd.Flags().StringVar(&exportTypes, "types", "", "Comma-separated entity types to export (default: all)")

	exportCmd.MarkFlagRequired("env")
	exportCmd.MarkFlagRequired("output")
}

func runExport(app *appctx.App, cmd *cobra.Command, args []string) error {
	conn, err := app.ResolveConnection(exportEnv)
	if err != nil {
		return err
	}

	var types []string
	if exportTypes != "" {
		for _, t := range strings.Split(exportTypes, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	records, err := datahub.NewClient(conn).FetchEntities(ctx, types)
	if err != nil {
		return fmt.Errorf("failed to export from %s: %w", exportEnv, err)
	}

	data, err := json.MarshalIndent(entity.ExportFile{Entities: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	if dir := filepath.Dir(exportOutput); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(exportOutput, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d entities from %s to %s\n", len(records), exportEnv, exportOutput)
	return nil
}
