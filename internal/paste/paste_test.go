package paste

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comigor/mindly-go/internal/config"
)

type recorded struct {
	method string
	path   string
	auth   string
	accept string
	body   map[string]any
}

func newServer(t *testing.T, status int, reply string) (*httptest.Server, *[]recorded) {
	t.Helper()
	var reqs []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{
			method: r.Method,
			path:   r.URL.Path,
			auth:   r.Header.Get("Authorization"),
			accept: r.Header.Get("Accept"),
		}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			_ = json.Unmarshal(b, &rec.body)
		}
		reqs = append(reqs, rec)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func TestUpload_CreatesThenRemembersID(t *testing.T) {
	srv, reqs := newServer(t, http.StatusCreated, `{"id":"abc123","html_url":"https://gist.github.com/abc123"}`)
	c := New(config.PasteConfig{BaseURL: srv.URL, Token: "ghp_test"})

	res, err := c.Upload(context.Background(), "chat_log.json", "[]")
	require.NoError(t, err)
	require.Equal(t, Result{Success: true, ID: "abc123", URL: "https://gist.github.com/abc123"}, res)
	require.Equal(t, "abc123", c.DocumentID())

	r := (*reqs)[0]
	require.Equal(t, http.MethodPost, r.method)
	require.Equal(t, "/gists", r.path)
	require.Equal(t, "Bearer ghp_test", r.auth)
	require.Equal(t, "application/vnd.github+json", r.accept)
	require.Equal(t, false, r.body["public"])
	files := r.body["files"].(map[string]any)
	require.Equal(t, "[]", files["chat_log.json"].(map[string]any)["content"])
}

func TestUpload_UpdatesExisting(t *testing.T) {
	srv, reqs := newServer(t, http.StatusOK, `{"id":"xyz","html_url":"https://gist.github.com/xyz"}`)
	c := New(config.PasteConfig{BaseURL: srv.URL + "/", Token: "t", DocumentID: "xyz"})

	res, err := c.Upload(context.Background(), "chat_sessions.json", "{}")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, http.MethodPatch, (*reqs)[0].method)
	require.Equal(t, "/gists/xyz", (*reqs)[0].path)
	_, hasPublic := (*reqs)[0].body["public"]
	require.False(t, hasPublic)
}

func TestUpload_APIError(t *testing.T) {
	srv, _ := newServer(t, http.StatusUnauthorized, `{"message":"Bad credentials"}`)
	c := New(config.PasteConfig{BaseURL: srv.URL, Token: "t"})

	_, err := c.Upload(context.Background(), "chat_log.json", "[]")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Contains(t, apiErr.Payload, "Bad credentials")
	require.NotContains(t, apiErr.Error(), "Bad credentials")
	require.Empty(t, c.DocumentID())
}

func TestFetch(t *testing.T) {
	srv, reqs := newServer(t, http.StatusOK, `{"id":"xyz","files":{"chat_log.json":{"content":"[{\"usuario\":\"hola\"}]"}}}`)
	c := New(config.PasteConfig{BaseURL: srv.URL, Token: "t", DocumentID: "xyz"})

	got, err := c.Fetch(context.Background(), "chat_log.json")
	require.NoError(t, err)
	require.Equal(t, `[{"usuario":"hola"}]`, got)
	require.Equal(t, http.MethodGet, (*reqs)[0].method)

	_, err = c.Fetch(context.Background(), "missing.json")
	require.Error(t, err)
}

func TestFetch_NoDocument(t *testing.T) {
	c := New(config.PasteConfig{BaseURL: "http://127.0.0.1:0", Token: "t"})
	_, err := c.Fetch(context.Background(), "chat_log.json")
	require.True(t, errors.Is(err, ErrNoDocument))
}
