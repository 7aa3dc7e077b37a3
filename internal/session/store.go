package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/comigor/mindly-go/internal/jsonfile"
)

// Record is a persisted session.
type Record struct {
	ID        string        `json:"-"`
	Timestamp jsonfile.Time `json:"timestamp"`
	Title     string        `json:"titulo,omitempty"`
	Messages  int           `json:"mensajes"`
	History   []Turn        `json:"historia"`
}

// UnmarshalJSON also accepts the "history" key used by some older files.
func (r *Record) UnmarshalJSON(b []byte) error {
	type plain Record
	var aux struct {
		plain
		Legacy []Turn `json:"history"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = Record(aux.plain)
	if r.History == nil && aux.Legacy != nil {
		r.History = aux.Legacy
	}
	if r.Messages == 0 {
		r.Messages = len(r.History)
	}
	return nil
}

// table is the ordered id -> record document.
type table struct {
	ids  []string
	recs map[string]Record
}

func newTable() *table {
	return &table{recs: make(map[string]Record)}
}

func (t *table) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("session table must be a JSON object, got %v", tok)
	}
	t.ids = nil
	t.recs = make(map[string]Record)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, _ := tok.(string)
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			return fmt.Errorf("session %q: %w", id, err)
		}
		rec.ID = id
		if _, dup := t.recs[id]; !dup {
			t.ids = append(t.ids, id)
		}
		t.recs[id] = rec
	}
	_, err = dec.Token()
	return err
}

func (t *table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range t.ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := jsonfile.Encode(t.recs[id])
		if err != nil {
			return nil, err
		}
		buf.Write(bytes.TrimSpace(val))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (t *table) put(rec Record) {
	t.remove(rec.ID)
	t.ids = append(t.ids, rec.ID)
	t.recs[rec.ID] = rec
}

func (t *table) remove(id string) bool {
	if _, ok := t.recs[id]; !ok {
		return false
	}
	delete(t.recs, id)
	for i, v := range t.ids {
		if v == id {
			t.ids = append(t.ids[:i], t.ids[i+1:]...)
			break
		}
	}
	return true
}

// Store persists the session table as a single JSON document. Every mutation
// re-reads the file, applies the change and atomically rewrites the whole table.
type Store struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewStore returns a store backed by path. The file is created on first save.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Path returns the backing file location.
func (s *Store) Path() string { return s.path }

func (s *Store) loadUnlocked() (*table, error) {
	t := newTable()
	if _, err := jsonfile.Decode(s.path, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Save upserts the session, stamping the current time. An empty title is
// derived from the first user turn. An updated session moves to the end of
// the table.
func (s *Store) Save(id string, history []Turn, title string) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("save session: empty id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.loadUnlocked()
	if err != nil {
		return Record{}, err
	}
	if title == "" {
		title = DeriveTitle(history)
	}
	rec := Record{
		ID:        id,
		Timestamp: jsonfile.Time{Time: s.now().Truncate(time.Microsecond)},
		Title:     title,
		Messages:  len(history),
		History:   append([]Turn{}, history...),
	}
	t.put(rec)
	if err := jsonfile.WriteAtomic(s.path, t); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Load returns the stored history, or an empty history when the session is unknown.
func (s *Store) Load(id string) ([]Turn, error) {
	rec, ok, err := s.Get(id)
	if err != nil || !ok {
		return []Turn{}, err
	}
	return rec.History, nil
}

// Get returns the full record for id.
func (s *Store) Get(id string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.loadUnlocked()
	if err != nil {
		return Record{}, false, err
	}
	rec, ok := t.recs[id]
	return rec, ok, nil
}

// Delete removes the session. Deleting an unknown id is a no-op and leaves the file untouched.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.loadUnlocked()
	if err != nil {
		return err
	}
	if !t.remove(id) {
		return nil
	}
	return jsonfile.WriteAtomic(s.path, t)
}

// List returns every record in table order (insertion/update order).
func (s *Store) List() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.loadUnlocked()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(t.ids))
	for _, id := range t.ids {
		out = append(out, t.recs[id])
	}
	return out, nil
}

// Snapshot returns the serialised table, as mirrored to the paste service.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.loadUnlocked()
	if err != nil {
		return nil, err
	}
	return jsonfile.Encode(t)
}
