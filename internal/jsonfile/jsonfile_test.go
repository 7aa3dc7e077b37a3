package jsonfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecode_MissingFileIsEmpty(t *testing.T) {
	var v map[string]int
	found, err := Decode(filepath.Join(t.TempDir(), "nope.json"), &v)
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, v)
}

func TestWriteAtomic_ReplacesWithoutLeftovers(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "sub", "doc.json")

	require.NoError(t, WriteAtomic(p, map[string]string{"a": "ñandú"}))
	require.NoError(t, WriteAtomic(p, map[string]string{"b": "2"}))

	var got map[string]string
	found, err := Decode(p, &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, map[string]string{"b": "2"}, got)

	entries, err := os.ReadDir(filepath.Dir(p))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
}

func TestDecode_MalformedReportsParseError(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"a":`), 0o644))

	var v map[string]any
	_, err := Decode(p, &v)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "parse", fe.Op)
}

func TestEncode_KeepsUnicode(t *testing.T) {
	b, err := Encode(map[string]string{"k": "estrés <b>"})
	require.NoError(t, err)
	require.Contains(t, string(b), "estrés <b>")
}

func TestTime_AcceptsLegacyLayouts(t *testing.T) {
	for _, raw := range []string{
		`"2024-05-01T10:20:30.123456"`,
		`"2024-05-01T10:20:30"`,
		`"2024-05-01T10:20:30.123456+02:00"`,
	} {
		var ts Time
		require.NoError(t, json.Unmarshal([]byte(raw), &ts), raw)
		require.Equal(t, 2024, ts.Year())
		require.Equal(t, 30, ts.Second())
	}

	var bad Time
	require.Error(t, json.Unmarshal([]byte(`"yesterday"`), &bad))
}

func TestTime_RoundTrip(t *testing.T) {
	in := Time{time.Date(2025, 1, 2, 3, 4, 5, 6000, time.UTC)}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out Time
	require.NoError(t, json.Unmarshal(b, &out))
	require.True(t, in.Equal(out.Time))
}
