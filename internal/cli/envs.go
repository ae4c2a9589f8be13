package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/datahub-tools/metamigrate/internal/cli/appctx"
)

var envsCmd = &cobra.Command{
	Use:   "envs",
	Short: "Manage DataHub environment connections",
}

var envsSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Add or update an environment's connection settings",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runEnvsSet),
}

var envsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured environments",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runEnvsList),
}

var envsRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Remove an environment",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runEnvsRm),
}

var (
	envsSetServer string
	envsSetToken  string
)

func init() {
	rootCmd.AddCommand(envsCmd)
	envsCmd.AddCommand(envsSetCmd)
	envsCmd.AddCommand(envsListCmd)
	envsCmd.AddCommand(envsRmCmd)

	envsSetCmd.Flags().StringVar(&envsSetServer, "server", "", "DataHub server base URL (required)")
	envsSetCmd.Flags().StringVar(&envsSetToken, "token", "", "Personal access token")
	envsSetCmd.MarkFlagRequired("server")
}

func runEnvsSet(app *appctx.App, cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := app.Store.Environments.Set(name, envsSetServer, envsSetToken); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Environment %s -> %s\n", name, envsSetServer)
	return nil
}

func runEnvsList(app *appctx.App, cmd *cobra.Command, args []string) error {
	envs, err := app.Store.Environments.List()
	if err != nil {
		return err
	}
	if len(envs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No environments configured")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSERVER\tTOKEN\tUPDATED")
	for _, env := range envs {
		token := "-"
		if env.Token != "" {
			token = "set"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", env.Name, env.Server, token, env.UpdatedAt)
	}
	return w.Flush()
}

func runEnvsRm(app *appctx.App, cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := app.Store.Environments.Delete(name); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed environment %s\n", name)
	return nil
}
