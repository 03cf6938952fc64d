// Package cmd provides the CLI commands for vmlauncher
package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ls-1801/VMLauncher/internal/config"
	"github.com/ls-1801/VMLauncher/internal/ui"
	"github.com/ls-1801/VMLauncher/pkg/nodeconfig"
	"github.com/ls-1801/VMLauncher/pkg/observability"
)

// errRunFailed is returned after a failed run's report has been printed
var errRunFailed = errors.New("fleet run did not succeed")

var (
	cfg        *config.Config
	uiInstance *ui.UI
	logger     *slog.Logger

	// Global flags
	configFile string
	debug      bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "vmlauncher",
	Short: "Launch and supervise a NebulaStream benchmark fleet",
	Long: `vmlauncher starts one coordinator and a set of workers described by a
topology file, gives every node its own address, MAC and worker id, renders
each node's configuration and keeps the fleet running until interrupted.

A first Ctrl-C tears the fleet down gracefully, workers before the
coordinator. A second one kills whatever is still running.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize UI
		uiInstance = ui.NewUIWithWriter(cmd.OutOrStdout())

		// Load configuration
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if debug {
			cfg.Log.Level = "debug"
		}

		logger, err = observability.NewLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		slog.SetDefault(logger)

		return nil
	},
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errRunFailed) {
			u := uiInstance
			if u == nil {
				u = ui.NewUIWithWriter(rootCmd.ErrOrStderr())
			}
			u.Failure(err)
		}
		return 1
	}
	return 0
}

func init() {
	rootCmd.Version = "0.1.0"

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default $HOME/.vmlauncher/config.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

// loadTemplate returns the configured node template or the built-in one
func loadTemplate() (*nodeconfig.Template, error) {
	if cfg.Run.Template == "" {
		return nodeconfig.DefaultTemplate(), nil
	}
	return nodeconfig.ParseTemplateFile(cfg.Run.Template)
}
