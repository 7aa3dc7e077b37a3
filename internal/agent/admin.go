package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/comigor/mindly-go/internal/chatlog"
	"github.com/comigor/mindly-go/internal/logger"
	"github.com/comigor/mindly-go/internal/paste"
)

// File names used in the paste document.
const (
	LogFileName      = "chat_log.json"
	SessionsFileName = "chat_sessions.json"
)

// Paster mirrors documents to the paste service.
type Paster interface {
	Upload(ctx context.Context, filename, content string) (paste.Result, error)
	Fetch(ctx context.Context, filename string) (string, error)
}

// Admin checks are a convenience gate for operator commands, not a security
// boundary.
func requireAdmin(sc *SessionContext) error {
	if sc == nil || !sc.Admin {
		return ErrNotAdmin
	}
	return nil
}

// LogStats summarises the interaction log.
func (a *Agent) LogStats(sc *SessionContext) (chatlog.Stats, error) {
	if err := requireAdmin(sc); err != nil {
		return chatlog.Stats{}, err
	}
	entries, err := a.log.LoadAll()
	if err != nil {
		return chatlog.Stats{}, err
	}
	return chatlog.Summarize(entries), nil
}

// ExportLog writes the interaction log to w in format (json, yaml or md).
func (a *Agent) ExportLog(sc *SessionContext, format string, w io.Writer) error {
	if err := requireAdmin(sc); err != nil {
		return err
	}
	exp, err := chatlog.NewExporter(format)
	if err != nil {
		return err
	}
	entries, err := a.log.LoadAll()
	if err != nil {
		return err
	}
	return exp.Export(entries, w)
}

// PushLog uploads the interaction log to the paste service.
func (a *Agent) PushLog(ctx context.Context, sc *SessionContext) (paste.Result, error) {
	if err := requireAdmin(sc); err != nil {
		return paste.Result{}, err
	}
	return a.pushLog(ctx)
}

// PushSessions uploads the session table to the paste service.
func (a *Agent) PushSessions(ctx context.Context, sc *SessionContext) (paste.Result, error) {
	if err := requireAdmin(sc); err != nil {
		return paste.Result{}, err
	}
	return a.pushSessions(ctx)
}

// PullLog replaces the local interaction log with the mirrored copy and
// returns the number of entries loaded.
func (a *Agent) PullLog(ctx context.Context, sc *SessionContext) (int, error) {
	if err := requireAdmin(sc); err != nil {
		return 0, err
	}
	if a.paste == nil {
		return 0, ErrPasteDisabled
	}
	raw, err := a.paste.Fetch(ctx, LogFileName)
	if err != nil {
		return 0, err
	}
	var entries []chatlog.Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return 0, fmt.Errorf("pull log: decode mirrored copy: %w", err)
	}
	if err := a.log.Replace(entries); err != nil {
		return 0, err
	}
	logger.L.Infow("log pulled from paste service", "entries", len(entries))
	return len(entries), nil
}

// Mirror pushes both documents. It is the scheduled job and carries no admin check.
func (a *Agent) Mirror(ctx context.Context) error {
	if _, err := a.pushLog(ctx); err != nil {
		return fmt.Errorf("mirror log: %w", err)
	}
	if _, err := a.pushSessions(ctx); err != nil {
		return fmt.Errorf("mirror sessions: %w", err)
	}
	return nil
}

func (a *Agent) pushLog(ctx context.Context) (paste.Result, error) {
	if a.paste == nil {
		return paste.Result{}, ErrPasteDisabled
	}
	data, err := a.log.Snapshot()
	if err != nil {
		return paste.Result{}, err
	}
	res, err := a.paste.Upload(ctx, LogFileName, string(data))
	if err != nil {
		return paste.Result{}, err
	}
	logger.L.Infow("log pushed to paste service", "id", res.ID)
	return res, nil
}

func (a *Agent) pushSessions(ctx context.Context) (paste.Result, error) {
	if a.paste == nil {
		return paste.Result{}, ErrPasteDisabled
	}
	data, err := a.store.Snapshot()
	if err != nil {
		return paste.Result{}, err
	}
	res, err := a.paste.Upload(ctx, SessionsFileName, string(data))
	if err != nil {
		return paste.Result{}, err
	}
	logger.L.Infow("sessions pushed to paste service", "id", res.ID)
	return res, nil
}
