package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"BoardWriter/internal/config"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List the latest runs recorded in the run ledger",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

var runsLimit int

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 10, "number of runs to show")
}

func runRuns(cmd *cobra.Command, args []string) error {
	application, err := newApplication(cmd, config.NeedLedger)
	if err != nil {
		return err
	}
	defer application.Close()

	runs, err := application.Runs(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCOMMAND\tSTATUS\tSTARTED\tERROR")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Run.ID, r.Run.Command, r.Status, r.Run.StartedAt.Format(time.RFC3339), r.Error)
	}
	return w.Flush()
}
