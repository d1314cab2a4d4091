package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/paimy-ai/paimy/internal/sweep"
)

var (
	briefingDryRun bool
	briefingUsage  bool
)

var briefingCmd = &cobra.Command{
	Use:   "briefing",
	Short: "Send today's morning briefing to everyone in the directory",
	Long: `Builds each person's briefing (due today, in progress this week, overdue)
and delivers it once per day. Without a chat connection the briefings are
written to stdout. --dry-run renders them without recording delivery.`,
	Args: cobra.NoArgs,
	RunE: runBriefing,
}

var refreshProjectsCmd = &cobra.Command{
	Use:   "refresh-projects",
	Short: "Reload the project list from Notion",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		projects, err := a.Projects.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tPM\tDEADLINE")
		for _, p := range projects {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Status, p.Owner, p.Deadline)
		}
		return w.Flush()
	},
}

func init() {
	briefingCmd.Flags().BoolVar(&briefingDryRun, "dry-run", false, "Render briefings without delivering them")
	briefingCmd.Flags().BoolVar(&briefingUsage, "usage", false, "Print model usage after the run")
}

func runBriefing(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	report, err := a.Sweeper(sweep.NewWriterNotifier(out)).Run(ctx, sweep.Options{DryRun: briefingDryRun})
	if err != nil {
		return err
	}

	if briefingDryRun {
		for _, d := range report.Deliveries {
			if d.Status == sweep.StatusPreviewed {
				fmt.Fprintf(out, "── preview for %s (%s)\n%s\n\n", d.Person.Name(), d.Person.ChatID, d.Text)
			}
		}
	}

	fmt.Fprintf(out, "%s: sent %d, previewed %d, already sent %d, nothing due %d, unlinked %d, failed %d\n",
		report.Day,
		report.Count(sweep.StatusSent),
		report.Count(sweep.StatusPreviewed),
		report.Count(sweep.StatusDuplicate),
		report.Count(sweep.StatusEmpty),
		report.Count(sweep.StatusUnlinked),
		report.Count(sweep.StatusFailed))
	for _, d := range report.Failures() {
		fmt.Fprintf(out, "  %s: %v\n", d.Person.ChatID, d.Err)
	}

	if briefingUsage {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(a.Usage.Today())
	}
	return nil
}
