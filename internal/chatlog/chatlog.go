// Package chatlog keeps the append-only record of every exchange, with
// timestamps that never go backwards.
package chatlog

import (
	"fmt"
	"sync"
	"time"

	"github.com/comigor/mindly-go/internal/intent"
	"github.com/comigor/mindly-go/internal/jsonfile"
)

// Entry is one logged exchange.
type Entry struct {
	Timestamp jsonfile.Time `json:"timestamp" yaml:"timestamp"`
	User      string        `json:"usuario" yaml:"usuario"`
	Response  string        `json:"respuesta" yaml:"respuesta"`
	Intent    intent.Label  `json:"intencion" yaml:"intencion"`
}

// Recorder appends entries to a JSON array file, rewriting the whole file
// atomically on each record.
type Recorder struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewRecorder(path string) *Recorder {
	return &Recorder{path: path, now: time.Now}
}

func (r *Recorder) Path() string { return r.path }

func (r *Recorder) loadUnlocked() ([]Entry, error) {
	entries := []Entry{}
	if _, err := jsonfile.Decode(r.path, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// Record appends an entry stamped with the current time. When the clock is
// behind the last entry the last timestamp is reused.
func (r *Recorder) Record(userText, response string, label intent.Label) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.loadUnlocked()
	if err != nil {
		return Entry{}, err
	}
	ts := r.now().Truncate(time.Microsecond)
	if n := len(entries); n > 0 && entries[n-1].Timestamp.After(ts) {
		ts = entries[n-1].Timestamp.Time
	}
	e := Entry{
		Timestamp: jsonfile.Time{Time: ts},
		User:      userText,
		Response:  response,
		Intent:    label,
	}
	entries = append(entries, e)
	if err := jsonfile.WriteAtomic(r.path, entries); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// LoadAll returns every entry in file order. A missing file yields none.
func (r *Recorder) LoadAll() ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadUnlocked()
}

// Snapshot returns the serialised log, as mirrored to the paste service.
func (r *Recorder) Snapshot() ([]byte, error) {
	entries, err := r.LoadAll()
	if err != nil {
		return nil, err
	}
	return jsonfile.Encode(entries)
}

// Replace overwrites the local log with entries, typically pulled from the
// paste service. Entries must be in non-decreasing timestamp order.
func (r *Recorder) Replace(entries []Entry) error {
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp.Before(entries[i-1].Timestamp.Time) {
			return fmt.Errorf("replace log: entry %d is older than entry %d", i, i-1)
		}
	}
	if entries == nil {
		entries = []Entry{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return jsonfile.WriteAtomic(r.path, entries)
}
