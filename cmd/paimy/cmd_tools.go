package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paimy-ai/paimy/internal/config"
	"github.com/paimy-ai/paimy/internal/mcpserver"
	"github.com/paimy-ai/paimy/internal/tools"
	"github.com/paimy-ai/paimy/internal/tools/executor"
)

var version = "dev"

var (
	toolsFormat string
	mcpAs       string
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tool catalog in a model provider's format",
	Args:  cobra.NoArgs,
	RunE:  runTools,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the tool catalog over MCP on stdin/stdout",
	Long: `Exposes the task tools to an MCP client. Every call runs on behalf of
the person given with --as, the same way a chat message from them would.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Default().Save(configPath); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "wrote", configPath)
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the loaded configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	},
}

func init() {
	toolsCmd.Flags().StringVar(&toolsFormat, "format", "anthropic", "Catalog format: anthropic or openai")
	mcpCmd.Flags().StringVar(&mcpAs, "as", "", "Chat user id the calls run as (required)")
	_ = mcpCmd.MarkFlagRequired("as")
	configCmd.AddCommand(configInitCmd, configCheckCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	// The catalog is only printed, so the tools need no live store.
	registry := tools.NewTaskRegistry(&executor.Env{})

	var catalog []map[string]interface{}
	switch toolsFormat {
	case "anthropic":
		catalog = registry.ToAnthropicFormat()
	case "openai":
		catalog = registry.ToOpenAIFormat()
	default:
		return fmt.Errorf("unknown format %q (want anthropic or openai)", toolsFormat)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(catalog)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	requester, err := a.Requester(ctx, mcpAs, "")
	if err != nil {
		return err
	}
	server := mcpserver.New(a.Tools, mcpserver.Config{
		Name:      "paimy",
		Version:   version,
		Requester: requester,
		Logger:    logger.Named("mcp"),
	})
	return mcpserver.Serve(ctx, server)
}
