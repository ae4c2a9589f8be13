package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/datahub-tools/metamigrate/internal/cli/appctx"
	"github.com/datahub-tools/metamigrate/internal/datahub"
	"github.com/datahub-tools/metamigrate/internal/entity"
	"github.com/datahub-tools/metamigrate/internal/migrate"
	"github.com/datahub-tools/metamigrate/internal/mutation"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run a metadata migration against a target environment",
	Long: `Run a metadata migration from an export file into a target environment.

The run matches each exported entity against the target's live entities,
generates one upsert proposal per supported metadata aspect, and either
writes the proposals to the output directory (--dry-run) or submits them.

Per-entity problems (no match, a failed submission) are recorded in the
report and do not abort the run; the exit code is non-zero only when the
run could not start at all.

Examples:
  metamigrate migrate --input export.json --target-env prod --dry-run
  metamigrate migrate --input export.json --target-env prod --mutations-file rules.json
`,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runMigrate),
}

var (
	migrateInput     string
	migrateTargetEnv string
	migrateMutations string
	migrateOutputDir string
	migrateDryRun    bool
	migrateVerbose   bool
)

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().StringVar(&migrateInput, "input", "", "Path to the export file (required)")
	migrateCmd.Flags().StringVar(&migrateTargetEnv, "target-env", "", "Target environment name (required)")
	migrateCmd.Flags().StringVar(&migrateMutations, "mutations-file", "", "Path to the mutation rules file")
	migrateCmd.Flags().StringVar(&migrateOutputDir, "output-dir", "", "Directory for dry-run artifacts (default from config)")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "Match and generate proposals without submitting anything")
	migrateCmd.Flags().BoolVar(&migrateVerbose, "verbose", false, "Include payload diffs in the summary")

	migrateCmd.MarkFlagRequired("input")
	migrateCmd.MarkFlagRequired("target-env")
}

func runMigrate(app *appctx.App, cmd *cobra.Command, args []string) error {
	sources, err := entity.LoadExport(migrateInput)
	if err != nil {
		return err
	}

	rules, err := loadRules(migrateMutations)
	if err != nil {
		return err
	}

	conn, err := app.ResolveConnection(migrateTargetEnv)
	if err != nil {
		return err
	}

	outputDir := migrateOutputDir
	if outputDir == "" {
		outputDir = app.Config.OutputDir
	}

	// Interrupts cancel between entities; an entity whose submission has
	// started is finished first.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver := migrate.New(datahub.NewClient(conn), rules)
	report, err := driver.Run(ctx, sources, migrate.Options{
		TargetEnv: migrateTargetEnv,
		DryRun:    migrateDryRun,
		OutputDir: outputDir,
		Verbose:   migrateVerbose,
	})

	if report != nil {
		if recordErr := app.Store.Runs.Record(report); recordErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to record run: %v\n", recordErr)
		}
		fmt.Fprint(cmd.OutOrStdout(), report.Summary(migrateVerbose))
		if migrateDryRun && report.State == migrate.StateDryRunDone {
			fmt.Fprintf(cmd.OutOrStdout(), "\nArtifacts written to %s\n", outputDir)
		}
	}
	return err
}

// loadRules loads the mutation rules file, or an empty rule set when no
// file was given.
func loadRules(path string) (*mutation.RuleSet, error) {
	if path == "" {
		return &mutation.RuleSet{}, nil
	}
	return mutation.Load(path)
}
