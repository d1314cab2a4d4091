// Command paimy is the task assistant's command line: it answers chat
// messages, sends morning briefings, manages the people directory and
// serves the tool catalog over MCP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/paimy-ai/paimy/internal/app"
	"github.com/paimy-ai/paimy/internal/config"
	apperrors "github.com/paimy-ai/paimy/internal/errors"
	"github.com/paimy-ai/paimy/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "paimy",
	Short:         "Paimy - a chat assistant for Notion tasks",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		if logger, err = logging.New(cfg.Logging, verbose); err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "Config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(briefingCmd)
	rootCmd.AddCommand(refreshProjectsCmd)
	rootCmd.AddCommand(peopleCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", apperrors.FormatUserMessage(err))
		os.Exit(1)
	}
}

// openApp builds the application, optionally validating the config first.
func openApp(validate bool) (*app.App, error) {
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return app.New(cfg, logger)
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
