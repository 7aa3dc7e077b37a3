// Package history journals every turn to SQLite as it happens, so turns
// appended between two session saves can be recovered after a crash.
// The database is opened lazily and created on first use. If opening the DB
// or executing queries fails, the journal falls back to in-memory storage.
package history

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/mindly-go/internal/logger"
	"github.com/comigor/mindly-go/internal/session"
)

// Entry is a single journaled turn. Position is the turn's index in the
// session history.
type Entry struct {
	SessionID string
	Position  int
	Role      session.Role
	Content   string
	CreatedAt time.Time
}

// Journal is an append-only log of turns keyed by session id.
type Journal struct {
	path string

	mu       sync.Mutex
	fallback []Entry // in-memory fallback

	dbOnce  sync.Once
	db      *sql.DB
	initErr error
}

// Open returns a journal stored at path. Nothing touches the disk until the
// first call.
func Open(path string) *Journal {
	return &Journal{path: path}
}

// initDB lazily opens the SQLite database and creates the turns table if it doesn't exist.
func (j *Journal) initDB() {
	var err error
	j.db, err = sql.Open("sqlite", "file:"+j.path+"?_pragma=busy_timeout(10000)")
	if err != nil {
		j.initErr = err
		logger.L.Warnw("sqlite open failed; using in-memory journal", "error", err)
		return
	}
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS turns (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id TEXT NOT NULL,
        position INTEGER NOT NULL,
        role TEXT NOT NULL,
        content TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );`,
		`CREATE INDEX IF NOT EXISTS turns_session ON turns(session_id, position);`,
	} {
		if _, err = j.db.Exec(stmt); err != nil {
			j.initErr = err
			logger.L.Warnw("sqlite table creation failed; using in-memory journal", "error", err)
			return
		}
	}
	logger.L.Debugw("sqlite turn journal initialized", "path", j.path)
}

func (j *Journal) usable() bool {
	j.dbOnce.Do(j.initDB)
	return j.initErr == nil && j.db != nil
}

// Append journals the turn stored at position. SQLite failures are logged and
// the turn is kept in memory instead.
func (j *Journal) Append(sessionID string, position int, t session.Turn) {
	e := Entry{SessionID: sessionID, Position: position, Role: t.Role, Content: t.Content, CreatedAt: time.Now().UTC()}
	if j.usable() {
		_, err := j.db.Exec(`INSERT INTO turns (session_id, position, role, content, created_at) VALUES (?,?,?,?,?);`,
			e.SessionID, e.Position, string(e.Role), e.Content, e.CreatedAt)
		if err == nil {
			return
		}
		logger.L.Errorw("failed to journal turn in sqlite; falling back to memory", "session", sessionID, "error", err)
	}
	j.mu.Lock()
	j.fallback = append(j.fallback, e)
	j.mu.Unlock()
}

// Entries returns every journaled turn of a session in the order it was written.
func (j *Journal) Entries(sessionID string) []Entry {
	var out []Entry
	if j.usable() {
		rows, err := j.db.Query(`SELECT position, role, content FROM turns WHERE session_id = ? ORDER BY id ASC;`, sessionID)
		if err == nil {
			defer rows.Close()
			for rows.Next() {
				e := Entry{SessionID: sessionID}
				var role string
				if err := rows.Scan(&e.Position, &role, &e.Content); err == nil {
					e.Role = session.Role(role)
					out = append(out, e)
				}
			}
		} else {
			logger.L.Warnw("journal query failed", "session", sessionID, "error", err)
		}
	}
	j.mu.Lock()
	for _, e := range j.fallback {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	j.mu.Unlock()
	return out
}

// Forget drops the journal of a deleted session.
func (j *Journal) Forget(sessionID string) {
	if j.usable() {
		if _, err := j.db.Exec(`DELETE FROM turns WHERE session_id = ?;`, sessionID); err != nil {
			logger.L.Warnw("journal delete failed", "session", sessionID, "error", err)
		}
	}
	j.mu.Lock()
	kept := j.fallback[:0]
	for _, e := range j.fallback {
		if e.SessionID != sessionID {
			kept = append(kept, e)
		}
	}
	j.fallback = kept
	j.mu.Unlock()
}

// Close releases the database handle.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Recover extends the saved history with the contiguous run of journaled
// turns that follow it. A trailing user turn without its reply was in flight
// when the process stopped and is dropped, so the result stays paired.
func Recover(saved []session.Turn, journaled []Entry) []session.Turn {
	byPos := make(map[int]session.Turn, len(journaled))
	for _, e := range journaled {
		byPos[e.Position] = session.Turn{Role: e.Role, Content: e.Content}
	}
	out := append([]session.Turn{}, saved...)
	for {
		t, ok := byPos[len(out)]
		if !ok {
			break
		}
		out = append(out, t)
	}
	if len(out) > len(saved) && len(out)%2 == 1 && out[len(out)-1].Role == session.RoleUser {
		out = out[:len(out)-1]
	}
	return out
}
