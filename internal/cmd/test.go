package cmd

import (
	"github.com/spf13/cobra"

	"BoardWriter/internal/config"
)

var testCmd = &cobra.Command{
	Use:   "test <iterations> <model>",
	Short: "Time article drafting with a given model",
	Long: `Draft an article for every card of the to-do list <iterations> times
using <model>, without writing to the board, and print the time and size of
each draft.`,
	Args: cobra.ExactArgs(2),
	RunE: runTest,
}

func init() {
	rootCmd.AddCommand(testCmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	iterations, err := parseIterations(args[0])
	if err != nil {
		return err
	}

	application, err := newApplication(cmd, config.NeedBoard, config.NeedWriter)
	if err != nil {
		return err
	}
	defer application.Close()

	return application.Test(cmd.Context(), iterations, args[1], cmd.OutOrStdout())
}
