// Package agent runs one conversation turn end to end: classify, complete,
// record, persist. It owns the per-session state that used to live in
// process-wide globals.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/qmuntal/stateless"

	"github.com/comigor/mindly-go/internal/chatlog"
	"github.com/comigor/mindly-go/internal/config"
	"github.com/comigor/mindly-go/internal/gateway"
	"github.com/comigor/mindly-go/internal/history"
	"github.com/comigor/mindly-go/internal/intent"
	"github.com/comigor/mindly-go/internal/logger"
	"github.com/comigor/mindly-go/internal/prompt"
	"github.com/comigor/mindly-go/internal/session"
)

var (
	ErrEmptyInput     = errors.New("empty message")
	ErrTurnInFlight   = errors.New("a turn is already in progress for this session")
	ErrUnknownSession = errors.New("unknown session")
	ErrNotAdmin       = errors.New("admin mode required")
	ErrPasteDisabled  = errors.New("paste service not configured")
)

// Turn FSM states and triggers.
const (
	StateIdle               = "Idle"
	StateAwaitingCompletion = "AwaitingCompletion"
	StateRecording          = "Recording"

	TriggerSubmit    = "Submit"
	TriggerCompleted = "Completed"
	TriggerRecorded  = "Recorded"
)

// Completer is the gateway seen by the agent.
type Completer interface {
	Complete(ctx context.Context, in gateway.Input) (string, error)
}

// Deps are the collaborators of an Agent. Journal and Paste are optional.
type Deps struct {
	Gateway Completer
	Store   *session.Store
	Log     *chatlog.Recorder
	Journal *history.Journal
	Paste   Paster
}

// Agent processes turns for any number of sessions. Each session is strictly
// sequential; different sessions may be processed concurrently.
type Agent struct {
	gateway Completer
	store   *session.Store
	log     *chatlog.Recorder
	journal *history.Journal
	paste   Paster
	cfg     config.ChatConfig
}

// New creates a new agent.
func New(deps Deps, cfg config.ChatConfig) *Agent {
	return &Agent{
		gateway: deps.Gateway,
		store:   deps.Store,
		log:     deps.Log,
		journal: deps.Journal,
		paste:   deps.Paste,
		cfg:     cfg,
	}
}

// SessionOptions select how a session talks to its user.
type SessionOptions struct {
	Profile  prompt.Profile
	UserName string
	Admin    bool
}

// SessionContext is the state of one conversation.
type SessionContext struct {
	ID           string
	Profile      prompt.Profile
	UserName     string
	Admin        bool
	Conversation *session.Conversation

	mu  sync.Mutex
	fsm *stateless.StateMachine
}

func newSessionContext(id string, turns []session.Turn, opts SessionOptions) *SessionContext {
	fsm := stateless.NewStateMachine(StateIdle)
	fsm.Configure(StateIdle).
		Permit(TriggerSubmit, StateAwaitingCompletion)
	fsm.Configure(StateAwaitingCompletion).
		Permit(TriggerCompleted, StateRecording)
	fsm.Configure(StateRecording).
		Permit(TriggerRecorded, StateIdle)

	return &SessionContext{
		ID:           id,
		Profile:      opts.Profile,
		UserName:     strings.TrimSpace(opts.UserName),
		Admin:        opts.Admin,
		Conversation: session.NewConversation(turns),
		fsm:          fsm,
	}
}

// State returns the current turn state.
func (sc *SessionContext) State() string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return fmt.Sprint(sc.fsm.MustState())
}

func (sc *SessionContext) fire(trigger string) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.fsm.Fire(trigger)
}

// NewSession starts an empty conversation with a fresh id. Nothing is persisted.
func (a *Agent) NewSession(opts SessionOptions) *SessionContext {
	sc := newSessionContext(session.NewID(), nil, opts)
	logger.L.Debugw("new session", "session", sc.ID, "profile", sc.Profile.String())
	return sc
}

// Resume loads a stored session and replays journaled turns written after
// its last save.
func (a *Agent) Resume(id string, opts SessionOptions) (*SessionContext, error) {
	rec, stored, err := a.store.Get(id)
	if err != nil {
		return nil, fmt.Errorf("resume %s: %w", id, err)
	}
	saved := rec.History
	turns := saved
	if a.journal != nil {
		turns = history.Recover(saved, a.journal.Entries(id))
	}
	if !stored && len(turns) == 0 {
		return nil, fmt.Errorf("resume %s: %w", id, ErrUnknownSession)
	}
	if len(turns) > len(saved) {
		logger.L.Infow("recovered unsaved turns from journal", "session", id, "recovered", len(turns)-len(saved))
	}
	return newSessionContext(id, turns, opts), nil
}

// Reply is the outcome of one turn.
type Reply struct {
	Text      string
	Intent    intent.Label
	Truncated bool
	Canceled  bool
	// Warnings are persistence problems; the in-memory turn was kept.
	Warnings []error
	// Failure carries the technical detail of a failed completion. Text is
	// then the apology shown to the user.
	Failure *gateway.Error
}

// Process runs one turn. Only ErrEmptyInput and ErrTurnInFlight are returned
// as errors; every other problem is folded into the Reply.
func (a *Agent) Process(ctx context.Context, sc *SessionContext, text string) (Reply, error) {
	if strings.TrimSpace(text) == "" {
		return Reply{}, ErrEmptyInput
	}
	if err := sc.fire(TriggerSubmit); err != nil {
		return Reply{}, ErrTurnInFlight
	}

	var reply Reply
	send := text
	if limit := a.cfg.MaxPromptLength; limit > 0 && utf8.RuneCountInString(text) > limit {
		send = string([]rune(text)[:limit])
		reply.Truncated = true
	}

	prior := sc.Conversation.Turns()
	a.appendTurn(sc, session.UserTurn(text))

	out, err := a.gateway.Complete(ctx, gateway.Input{
		Message:  send,
		History:  prior,
		Profile:  sc.Profile,
		UserName: sc.UserName,
	})
	_ = sc.fire(TriggerCompleted)

	reply.Text = out
	if err != nil {
		var gerr *gateway.Error
		if !errors.As(err, &gerr) {
			gerr = &gateway.Error{Kind: gateway.KindNetworkError, Err: err}
		}
		if gerr.Kind == gateway.KindCanceled || errors.Is(ctx.Err(), context.Canceled) {
			gerr.Kind = gateway.KindCanceled
			reply.Canceled = true
			reply.Text = gateway.KindCanceled.Apology()
		}
		reply.Failure = gerr
	}
	a.appendTurn(sc, session.AssistantTurn(reply.Text))

	if every := a.cfg.AutosaveEvery; every > 0 && sc.Conversation.Len()%every == 0 {
		if _, err := a.save(sc); err != nil {
			reply.Warnings = append(reply.Warnings, fmt.Errorf("autosave: %w", err))
		}
	}

	reply.Intent = intent.Classify(text)
	if !reply.Canceled {
		if _, err := a.log.Record(text, reply.Text, reply.Intent); err != nil {
			reply.Warnings = append(reply.Warnings, fmt.Errorf("log: %w", err))
		}
	}
	_ = sc.fire(TriggerRecorded)

	for _, w := range reply.Warnings {
		logger.L.Warnw("turn persisted partially", "session", sc.ID, "error", w)
	}
	logger.L.Infow("turn processed", "session", sc.ID, "intent", reply.Intent, "truncated", reply.Truncated, "canceled", reply.Canceled, "failed", reply.Failure != nil)
	return reply, nil
}

func (a *Agent) appendTurn(sc *SessionContext, t session.Turn) {
	pos := sc.Conversation.Len()
	sc.Conversation.Append(t)
	if a.journal != nil {
		a.journal.Append(sc.ID, pos, t)
	}
}

// Save persists the session now.
func (a *Agent) Save(sc *SessionContext) (session.Record, error) {
	return a.save(sc)
}

func (a *Agent) save(sc *SessionContext) (session.Record, error) {
	rec, err := a.store.Save(sc.ID, sc.Conversation.Turns(), "")
	if err != nil {
		return session.Record{}, err
	}
	if a.journal != nil {
		// everything journaled so far is now in the table
		a.journal.Forget(sc.ID)
	}
	logger.L.Debugw("session saved", "session", sc.ID, "messages", rec.Messages)
	return rec, nil
}

// Delete removes a stored session and its journal.
func (a *Agent) Delete(id string) error {
	if err := a.store.Delete(id); err != nil {
		return err
	}
	if a.journal != nil {
		a.journal.Forget(id)
	}
	logger.L.Infow("session deleted", "session", id)
	return nil
}

// Sessions lists stored sessions in table order.
func (a *Agent) Sessions() ([]session.Record, error) {
	return a.store.List()
}

// Session returns one stored session.
func (a *Agent) Session(id string) (session.Record, error) {
	rec, ok, err := a.store.Get(id)
	if err != nil {
		return session.Record{}, err
	}
	if !ok {
		return session.Record{}, fmt.Errorf("session %s: %w", id, ErrUnknownSession)
	}
	return rec, nil
}
