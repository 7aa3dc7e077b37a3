package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/comigor/mindly-go/internal/agent"
	"github.com/comigor/mindly-go/internal/logger"
	"github.com/comigor/mindly-go/internal/prompt"
	"github.com/comigor/mindly-go/internal/scheduler"
)

var (
	chatProfile string
	chatName    string
	chatResume  string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Start an interactive conversation.

Commands inside the chat:
  /new    save the current conversation and start a fresh one
  /save   save the current conversation now
  /quit   save and leave (also Ctrl-D)

Ctrl-C while a reply is pending cancels that reply only.`,
	RunE: runChat,
}

func addChatFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&chatProfile, "profile", "p", "", "Conversation profile: empathetic, professional, casual, brief")
	cmd.Flags().StringVarP(&chatName, "name", "n", "", "Your name, used to personalise replies")
	cmd.Flags().StringVarP(&chatResume, "resume", "r", "", "Resume a stored session by id")
}

func init() {
	addChatFlags(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	name := chatProfile
	if name == "" {
		name = a.cfg.Chat.DefaultProfile
	}
	profile, ok := prompt.Parse(name)
	if !ok {
		logger.L.Warnw("unknown profile; using default", "profile", name, "default", profile.String())
	}
	opts := agent.SessionOptions{Profile: profile, UserName: chatName, Admin: adminMode}

	if a.cfg.Paste.Enabled() && a.cfg.Paste.SyncSchedule != "" {
		s, err := scheduler.New(a.cfg.Paste.SyncSchedule, a.agent.Mirror)
		if err != nil {
			return err
		}
		s.Start()
		defer s.Stop()
	}

	r := &repl{
		agent:  a.agent,
		opts:   opts,
		in:     bufio.NewScanner(cmd.InOrStdin()),
		out:    cmd.OutOrStdout(),
		render: markdownRenderer(),
	}
	if chatResume != "" {
		sc, err := a.agent.Resume(chatResume, opts)
		if err != nil {
			return err
		}
		r.sc = sc
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	go func() {
		for range sigs {
			if !r.interrupt() {
				r.finish()
				os.Exit(130)
			}
		}
	}()

	return r.run(ctx)
}

// repl drives one terminal conversation.
type repl struct {
	agent  *agent.Agent
	sc     *agent.SessionContext
	opts   agent.SessionOptions
	in     *bufio.Scanner
	out    io.Writer
	render func(string) string

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (r *repl) run(ctx context.Context) error {
	if r.sc == nil {
		r.start()
	} else {
		fmt.Fprintln(r.out, headerStyle.Render(fmt.Sprintf("Sesión %s reanudada (%d mensajes)", r.sc.ID, r.sc.Conversation.Len())))
	}

	for {
		fmt.Fprint(r.out, userStyle.Render("Tú")+" › ")
		if !r.in.Scan() {
			break
		}
		raw := r.in.Text()
		switch strings.TrimSpace(raw) {
		case "":
			fmt.Fprintln(r.out, noticeStyle.Render("Escribe un mensaje para continuar."))
			continue
		case "/quit", "/exit":
			r.finish()
			return nil
		case "/save":
			r.save()
			continue
		case "/new":
			r.save()
			r.start()
			continue
		case "/help":
			fmt.Fprintln(r.out, "Comandos: /new, /save, /quit")
			continue
		}
		r.turn(ctx, raw)
	}
	if err := r.in.Err(); err != nil {
		return err
	}
	r.finish()
	return nil
}

func (r *repl) start() {
	r.sc = r.agent.NewSession(r.opts)
	fmt.Fprint(r.out, r.render(prompt.Welcome(r.opts.UserName)))
}

func (r *repl) turn(ctx context.Context, text string) {
	turnCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
		cancel()
	}()

	reply, err := r.agent.Process(turnCtx, r.sc, text)
	if err != nil {
		fmt.Fprintln(r.out, noticeStyle.Render(err.Error()))
		return
	}
	if reply.Truncated {
		fmt.Fprintln(r.out, noticeStyle.Render("⚠️ Tu mensaje era muy largo y se envió recortado."))
	}
	if reply.Canceled {
		fmt.Fprintln(r.out, noticeStyle.Render(reply.Text))
	} else {
		fmt.Fprint(r.out, r.render(reply.Text))
		if reply.Failure != nil && r.sc.Admin {
			fmt.Fprintln(r.out, errorStyle.Render(reply.Failure.Error()))
		}
	}
	for _, w := range reply.Warnings {
		fmt.Fprintln(r.out, noticeStyle.Render("⚠️ "+w.Error()))
	}
}

// interrupt cancels the pending reply. It reports false when none was pending.
func (r *repl) interrupt() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return false
	}
	r.cancel()
	return true
}

func (r *repl) save() {
	if r.sc == nil || r.sc.Conversation.Len() == 0 {
		return
	}
	rec, err := r.agent.Save(r.sc)
	if err != nil {
		fmt.Fprintln(r.out, errorStyle.Render("No se pudo guardar la sesión: "+err.Error()))
		return
	}
	fmt.Fprintln(r.out, dateStyle.Render(fmt.Sprintf("Sesión %s guardada (%d mensajes)", rec.ID, rec.Messages)))
}

func (r *repl) finish() {
	r.save()
	fmt.Fprintln(r.out, "¡Cuídate! 💙")
}
