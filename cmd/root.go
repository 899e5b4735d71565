// cmd/root.go
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vexaline/browsebench/internal/config"
	"github.com/vexaline/browsebench/internal/observability"
)

var (
	cfgFile string

	// cfg and logger are built once in the root PersistentPreRunE and handed
	// to subcommands; there is no process-wide logger state.
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:     "browsebench",
	Short:   "browsebench drives browsing agents through benchmark tasks and scores the outcome.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		logger, err = observability.New(cfg.Logger)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		logger.Debug("Starting browsebench.", zap.String("version", Version))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		observability.Sync(logger)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.Error("Command failed.", zap.Error(err))
			observability.Sync(logger)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
