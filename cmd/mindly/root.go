package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/comigor/mindly-go/internal/agent"
	"github.com/comigor/mindly-go/internal/chatlog"
	"github.com/comigor/mindly-go/internal/config"
	"github.com/comigor/mindly-go/internal/gateway"
	"github.com/comigor/mindly-go/internal/history"
	"github.com/comigor/mindly-go/internal/llm"
	"github.com/comigor/mindly-go/internal/logger"
	"github.com/comigor/mindly-go/internal/paste"
	"github.com/comigor/mindly-go/internal/prompt"
	"github.com/comigor/mindly-go/internal/session"
)

var (
	verbose    bool
	adminMode  bool
	configPath string
	version    = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "mindly",
	Short: "Empathetic psychology chat assistant",
	Long: `Mindly relays your messages to a language model tuned for clear,
trustworthy information about psychology and emotional wellbeing.

Conversations are kept as sessions in a local JSON file and every exchange
is logged with a coarse intent label. Operators can mirror both files to a
GitHub Gist.

Quick Start:
  mindly                         # start chatting (same as "mindly chat")
  mindly chat --name Ana         # personalise the conversation
  mindly sessions list           # list stored sessions
  mindly --admin log stats       # interaction statistics`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			if err := os.Setenv("CONFIG_PATH", configPath); err != nil {
				return err
			}
		}
		if verbose {
			logger.SetLevel("debug")
		}
		return nil
	},
	RunE: runChat,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+describe(err)))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&adminMode, "admin", false, "Enable operator commands and technical error detail")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (default ./config.yaml)")
	addChatFlags(rootCmd)

	rootCmd.AddCommand(chatCmd, sessionsCmd, logCmd)
}

// app wires every component from the loaded configuration.
type app struct {
	cfg     *config.Config
	agent   *agent.Agent
	journal *history.Journal
}

// newApp loads the configuration and wires the agent. Commands that never
// reach the model pass chatting=false and skip the credential check and
// MCP prompt discovery.
func newApp(ctx context.Context, chatting bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if !verbose && cfg.Log.Level != "" {
		logger.SetLevel(cfg.Log.Level)
	}

	prompts := prompt.NewBuilder()
	if chatting {
		if err := cfg.RequireAPIKey(); err != nil {
			return nil, err
		}
		prompts = prompt.NewBuilder(prompt.DiscoverMCPPrompts(ctx, cfg.MCPServers)...)
	}
	gw := gateway.New(llm.NewClient(cfg.LLM), *cfg, prompts)
	journal := history.Open(cfg.Storage.JournalPath)

	deps := agent.Deps{
		Gateway: gw,
		Store:   session.NewStore(cfg.Storage.SessionsPath),
		Log:     chatlog.NewRecorder(cfg.Storage.LogPath),
		Journal: journal,
	}
	if cfg.Paste.Enabled() {
		deps.Paste = paste.New(cfg.Paste)
	}
	return &app{
		cfg:     cfg,
		agent:   agent.New(deps, cfg.Chat),
		journal: journal,
	}, nil
}

func (a *app) Close() {
	if err := a.journal.Close(); err != nil {
		logger.L.Warnw("journal close failed", "error", err)
	}
}

// operator returns a session context carrying the --admin flag for one-shot
// commands.
func (a *app) operator() *agent.SessionContext {
	return a.agent.NewSession(agent.SessionOptions{Admin: adminMode})
}

// describe turns an error into a one-line message. Raw paste payloads are
// only shown in admin mode.
func describe(err error) string {
	var apiErr *paste.APIError
	switch {
	case errors.Is(err, agent.ErrNotAdmin):
		return "this command requires --admin"
	case errors.Is(err, agent.ErrPasteDisabled):
		return "paste service not configured (set GITHUB_TOKEN or paste.token)"
	case errors.Is(err, paste.ErrNoDocument):
		return "no gist yet: push first or set GIST_ID"
	case errors.As(err, &apiErr):
		if adminMode && apiErr.Payload != "" {
			return fmt.Sprintf("%s: %s", apiErr.Error(), apiErr.Payload)
		}
		return apiErr.Error()
	default:
		return err.Error()
	}
}
