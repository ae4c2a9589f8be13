package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/datahub-tools/metamigrate/internal/cli/appctx"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List past migration runs",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runRuns),
}

var runsLimit int

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to show")
}

func runRuns(app *appctx.App, cmd *cobra.Command, args []string) error {
	runs, err := app.Store.Runs.List(runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No migration runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTARGET\tMODE\tSTATE\tMATCHED\tUNMATCHED\tOK\tFAILED\tSTARTED")
	for _, r := range runs {
		mode := "live"
		if r.DryRun {
			mode = "dry-run"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.ID, r.TargetEnv, mode, r.State,
			r.Matched, r.Unmatched, r.ProposalsSucceeded, r.ProposalsFailed, r.StartedAt)
	}
	return w.Flush()
}
