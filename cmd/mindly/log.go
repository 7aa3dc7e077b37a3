package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/comigor/mindly-go/internal/chatlog"
)

var (
	exportFormat  string
	exportOutput  string
	pushWithTable bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Operator commands for the interaction log (require --admin)",
}

var logStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show interaction statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.agent.LogStats(a.operator())
		if err != nil {
			return err
		}
		printStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

var logExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the interaction log (json, yaml, md)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		var w io.Writer = cmd.OutOrStdout()
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			w = f
		}
		if err := a.agent.ExportLog(a.operator(), exportFormat, w); err != nil {
			return err
		}
		if exportOutput != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), "Exported log to "+exportOutput)
		}
		return nil
	},
}

var logPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload the interaction log to the gist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		op := a.operator()
		res, err := a.agent.PushLog(cmd.Context(), op)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Log uploaded: %s\n", res.URL)
		if pushWithTable {
			res, err = a.agent.PushSessions(cmd.Context(), op)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Sessions uploaded: %s\n", res.URL)
		}
		if a.cfg.Paste.DocumentID == "" && res.ID != "" {
			fmt.Fprintln(cmd.OutOrStdout(), noticeStyle.Render("Set GIST_ID="+res.ID+" to keep updating this gist."))
		}
		return nil
	},
}

var logPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Replace the local interaction log with the gist copy",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.agent.PullLog(cmd.Context(), a.operator())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Loaded %d entries from the gist\n", n)
		return nil
	},
}

func init() {
	logExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Export format: json, yaml, md")
	logExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to file instead of stdout")
	logPushCmd.Flags().BoolVar(&pushWithTable, "sessions", false, "Also upload the session table")

	logCmd.AddCommand(logStatsCmd, logExportCmd, logPushCmd, logPullCmd)
}

func printStats(out io.Writer, s chatlog.Stats) {
	fmt.Fprintln(out, headerStyle.Render("📊 Interaction log"))
	fmt.Fprintf(out, "Total interactions: %s\n", countStyle.Render(fmt.Sprint(s.Total)))
	last := "—"
	if !s.Last.IsZero() {
		last = s.Last.Format("2006-01-02 15:04")
	}
	fmt.Fprintf(out, "Last update:        %s\n", dateStyle.Render(last))
	for _, c := range s.Breakdown() {
		fmt.Fprintf(out, "  %-20s %d\n", c.Label, c.Count)
	}
}
