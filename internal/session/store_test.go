package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func sampleHistory(n int) []Turn {
	var h []Turn
	for i := 0; i < n; i++ {
		h = append(h, UserTurn("pregunta ñ "+string(rune('a'+i))), AssistantTurn("respuesta <"+string(rune('a'+i))+">"))
	}
	return h
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "chat_sessions.json"))
}

func TestStore_MissingFile(t *testing.T) {
	s := newTestStore(t)

	recs, err := s.List()
	require.NoError(t, err)
	require.Empty(t, recs)

	h, err := s.Load("unknown")
	require.NoError(t, err)
	require.Empty(t, h)

	_, err = os.Stat(s.Path())
	require.True(t, os.IsNotExist(err))

	_, err = s.Save("a1b2c3d4", sampleHistory(1), "")
	require.NoError(t, err)
	_, err = os.Stat(s.Path())
	require.NoError(t, err, "first save creates the file")
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	want := sampleHistory(5)

	rec, err := s.Save("a1b2c3d4", want, "")
	require.NoError(t, err)
	require.Equal(t, 10, rec.Messages)

	got, err := s.Load("a1b2c3d4")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_DeleteTwiceIsNoop(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Save("a1b2c3d4", sampleHistory(1), "")
	require.NoError(t, err)

	require.NoError(t, s.Delete("a1b2c3d4"))
	require.NoError(t, s.Delete("a1b2c3d4"))

	recs, err := s.List()
	require.NoError(t, err)
	require.Empty(t, recs)
}

func TestStore_DeleteLeavesOtherSessionIntact(t *testing.T) {
	s := newTestStore(t)
	other := sampleHistory(3)
	_, err := s.Save("a1b2c3d4", sampleHistory(2), "")
	require.NoError(t, err)
	_, err = s.Save("e5f6g7h8", other, "mi título")
	require.NoError(t, err)

	before, ok, err := s.Get("e5f6g7h8")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Delete("a1b2c3d4"))

	after, ok, err := s.Get("e5f6g7h8")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "mi título", after.Title)
	require.True(t, before.Timestamp.Equal(after.Timestamp.Time))
	if diff := cmp.Diff(other, after.History); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}

	// A fresh store over the same file sees the same bytes.
	reloaded, err := NewStore(s.Path()).Load("e5f6g7h8")
	require.NoError(t, err)
	require.Equal(t, other, reloaded)
}

func TestStore_ListOrderFollowsUpdates(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"one", "two", "three"} {
		_, err := s.Save(id, sampleHistory(1), "")
		require.NoError(t, err)
	}
	_, err := s.Save("one", sampleHistory(2), "")
	require.NoError(t, err)

	recs, err := s.List()
	require.NoError(t, err)
	var ids []string
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	require.Equal(t, []string{"two", "three", "one"}, ids)
}

func TestStore_SaveStampsTime(t *testing.T) {
	s := newTestStore(t)
	fixed := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	rec, err := s.Save("x", sampleHistory(1), "")
	require.NoError(t, err)
	require.True(t, rec.Timestamp.Equal(fixed))

	got, ok, err := s.Get("x")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Timestamp.Equal(fixed))
}

func TestStore_ReadsLegacyDocument(t *testing.T) {
	p := filepath.Join(t.TempDir(), "legacy.json")
	legacy := `{
  "zz": {"timestamp": "2024-05-01T10:00:00.123456", "history": [{"role": "user", "content": "hola"}, {"role": "assistant", "content": "hola!"}]},
  "aa": {"timestamp": "2024-05-02T10:00:00", "historia": [], "titulo": "vacía", "mensajes": 0}
}`
	require.NoError(t, os.WriteFile(p, []byte(legacy), 0o644))

	recs, err := NewStore(p).List()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "zz", recs[0].ID, "document order is preserved")
	require.Equal(t, 2, recs[0].Messages)
	require.Equal(t, "hola", recs[0].History[0].Content)
	require.Equal(t, "vacía", recs[1].Title)
}

func TestStore_MalformedFileIsReported(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"a": {`), 0o644))

	s := NewStore(p)
	_, err := s.List()
	require.Error(t, err)

	_, err = s.Save("b", sampleHistory(1), "")
	require.Error(t, err, "a corrupt table must not be overwritten")
	raw, _ := os.ReadFile(p)
	require.Equal(t, `{"a": {`, string(raw))
}

func TestDeriveTitle(t *testing.T) {
	require.Equal(t, "", DeriveTitle(nil))
	require.Equal(t, "hola mundo", DeriveTitle([]Turn{AssistantTurn("x"), UserTurn("  hola\n mundo ")}))

	long := "Me siento muy ansioso últimamente y no sé qué hacer"
	got := DeriveTitle([]Turn{UserTurn(long)})
	require.Equal(t, string([]rune(long)[:TitleMaxLength])+"...", got)
	require.Equal(t, TitleMaxLength+3, len([]rune(got)))
}

func TestConversation_CopySemantics(t *testing.T) {
	c := NewConversation(sampleHistory(1))
	turns := c.Turns()
	turns[0] = UserTurn("mutated")
	require.Equal(t, "pregunta ñ a", c.Turns()[0].Content)

	c.Append(UserTurn("next"))
	require.Equal(t, 3, c.Len())
	require.False(t, Paired(c.Turns()))
	c.Append(AssistantTurn("ok"))
	require.True(t, Paired(c.Turns()))
}

func TestNewID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewID()
		require.Len(t, id, 8)
		require.False(t, seen[id])
		seen[id] = true
	}
}
