package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"BoardWriter/internal/app"
	"BoardWriter/internal/config"
	"BoardWriter/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "boardwriter",
	Short: "Research, write and publish articles for Trello cards",
	Long: `BoardWriter reads the cards of a Trello "to do" list, researches each
card title with a web search, drafts an article with a language model and
posts it back as a card comment before moving the card to the "done" list.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = cmd.Usage()
		return errors.New("a subcommand is required: run, train, replay or test")
	},
}

var (
	configPath string
	// appDeps lets tests swap the remote adapters.
	appDeps app.Deps
	// logOutput overrides stdout for logs; nil means stdout.
	logOutput io.Writer
)

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (.yaml or .toml, default $BOARDWRITER_CONFIG)")
}

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	var logger *slog.Logger
	if logOutput != nil {
		logger = logging.NewWithWriter(logOutput, cfg.Logging.Level, cfg.Logging.Format)
	} else {
		logger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	return cfg, logger, nil
}

func newApplication(cmd *cobra.Command, reqs ...config.Requirement) (*app.Application, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(cmd.Context(), cfg, logger, appDeps, reqs...)
}
