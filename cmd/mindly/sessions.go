package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/comigor/mindly-go/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored conversations",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.agent.Sessions()
		if err != nil {
			return fmt.Errorf("failed to load sessions: %w", err)
		}
		printSessions(cmd.OutOrStdout(), recs)
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a stored conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.agent.Session(args[0])
		if err != nil {
			return err
		}
		printConversation(cmd.OutOrStdout(), rec, markdownRenderer())
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a stored session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.agent.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Deleted session "+idStyle.Render(args[0]))
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsDeleteCmd)
}

func printSessions(out io.Writer, recs []session.Record) {
	if len(recs) == 0 {
		fmt.Fprintln(out, headerStyle.Render("📋 No sessions found"))
		return
	}
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("📋 Found %d session(s)", len(recs))))
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Title")+"\t"+titleStyle.Render("Messages")+"\t"+titleStyle.Render("Saved")+"\t")
	for _, r := range recs {
		title := r.Title
		if title == "" {
			title = "Untitled"
		}
		_, _ = fmt.Fprintln(w, idStyle.Render(r.ID)+"\t"+title+"\t"+countStyle.Render(strconv.Itoa(r.Messages))+"\t"+dateStyle.Render(r.Timestamp.Format("2006-01-02 15:04"))+"\t")
	}
	_ = w.Flush()
}

func printConversation(out io.Writer, rec session.Record, render func(string) string) {
	title := rec.Title
	if title == "" {
		title = "Untitled"
	}
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%s · %s", rec.ID, title)))
	fmt.Fprintln(out, dateStyle.Render(fmt.Sprintf("%d mensajes · %s", rec.Messages, rec.Timestamp.Format("2006-01-02 15:04"))))
	fmt.Fprintln(out, strings.Repeat("─", 40))
	for _, t := range rec.History {
		switch t.Role {
		case session.RoleUser:
			fmt.Fprintln(out, userStyle.Render("Tú")+" › "+t.Content)
		default:
			fmt.Fprint(out, render(t.Content))
		}
	}
}
