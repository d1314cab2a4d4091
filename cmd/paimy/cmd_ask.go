package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/paimy-ai/paimy/internal/app"
	"github.com/paimy-ai/paimy/internal/memory"
	"github.com/paimy-ai/paimy/pkg/protocol"
)

var askFlags struct {
	thread  string
	channel string
	user    string
	name    string
	url     string
	json    bool
}

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Handle one chat message and print the answer",
	Long: `Runs one conversation turn. The thread key selects the conversation
context, so follow-up questions in the same thread can refer to "that task".

Example:
  paimy ask --user U024BE7LH --thread C1:1700000000.0001 "내일 마감인 업무 알려줘"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askFlags.thread, "thread", "", "Thread key (default: cli:<user>)")
	askCmd.Flags().StringVar(&askFlags.channel, "channel", "cli", "Channel id")
	askCmd.Flags().StringVar(&askFlags.user, "user", "", "Chat user id of the requester (required)")
	askCmd.Flags().StringVar(&askFlags.name, "name", "", "Display name of the requester")
	askCmd.Flags().StringVar(&askFlags.url, "url", "", "Permalink of the message, recorded on created tasks")
	askCmd.Flags().BoolVar(&askFlags.json, "json", false, "Print the turn as JSON")
	_ = askCmd.MarkFlagRequired("user")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	thread := askFlags.thread
	if thread == "" {
		thread = "cli:" + askFlags.user
	}

	out, err := a.Ask(ctx, app.AskInput{
		Thread:      memory.ThreadKey{Thread: thread, Channel: askFlags.channel, User: askFlags.user},
		DisplayName: askFlags.name,
		MessageURL:  askFlags.url,
		Message:     strings.Join(args, " "),
	})
	if err != nil {
		return err
	}

	if !askFlags.json {
		fmt.Fprintln(cmd.OutOrStdout(), out.Response)
		return nil
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(protocol.TurnResponse{
		Response:   out.Response,
		ToolsUsed:  out.ToolsUsed,
		Rounds:     out.Rounds,
		TokensUsed: out.TokensUsed,
		DurationMs: out.Duration.Milliseconds(),
	})
}
