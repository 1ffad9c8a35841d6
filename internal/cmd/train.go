package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"BoardWriter/internal/config"
	xerrors "BoardWriter/internal/errors"
)

var trainCmd = &cobra.Command{
	Use:   "train <iterations> <file>",
	Short: "Draft every card repeatedly and save the drafts for review",
	Long: `Draft an article for every card of the to-do list <iterations> times
without writing to the board, then save all drafts to <file> as YAML.`,
	Args: cobra.ExactArgs(2),
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	iterations, err := parseIterations(args[0])
	if err != nil {
		return err
	}

	application, err := newApplication(cmd, config.NeedBoard, config.NeedWriter)
	if err != nil {
		return err
	}
	defer application.Close()

	drafts, err := application.Train(cmd.Context(), iterations, args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d draft(s) written to %s\n", len(drafts), args[1])
	return nil
}

func parseIterations(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, xerrors.Newf(xerrors.CodeConfig, "iterations must be a positive integer, got %q", raw)
	}
	return n, nil
}
