package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"BoardWriter/internal/config"
)

var replayCmd = &cobra.Command{
	Use:   "replay <run-id>",
	Short: "Resume a failed run from the run ledger",
	Long: `Load a run from the run ledger and continue every card that was not
published yet from its last recorded stage. Requires DATABASE_DRIVER and
DATABASE_DSN.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	application, err := newApplication(cmd, config.NeedBoard, config.NeedDoneList, config.NeedWriter, config.NeedLedger)
	if err != nil {
		return err
	}
	defer application.Close()

	report, err := application.Replay(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d card(s) published, %d already done\n", report.RunID, report.Published, report.Skipped)
	return nil
}
