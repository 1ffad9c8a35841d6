package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"BoardWriter/internal/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process every card of the to-do list once",
	Args:  cobra.NoArgs,
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	application, err := newApplication(cmd, config.NeedBoard, config.NeedDoneList, config.NeedWriter)
	if err != nil {
		return err
	}
	defer application.Close()

	report, err := application.Run(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d card(s) published\n", report.RunID, report.Published)
	return nil
}
