// Package paste mirrors local JSON documents to a GitHub Gist.
package paste

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/comigor/mindly-go/internal/config"
	"github.com/comigor/mindly-go/internal/logger"
)

const (
	requestTimeout = 30 * time.Second
	description    = "Chat logs de Mindly"
	// maxPayload bounds how much of an error body is kept for the admin view.
	maxPayload = 4 << 10
)

// ErrNoDocument is returned by Fetch before any document has been created or configured.
var ErrNoDocument = errors.New("paste: no document id configured")

// APIError is a non-success response from the paste service.
type APIError struct {
	Status  int
	Payload string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paste service returned HTTP %d", e.Status)
}

// Result describes a successful upload.
type Result struct {
	Success bool
	ID      string
	URL     string
}

type headerTransport struct {
	rt      http.RoundTripper
	headers http.Header
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cl := req.Clone(req.Context())
	for k, vs := range t.headers {
		for _, v := range vs {
			cl.Header.Add(k, v)
		}
	}
	return t.rt.RoundTrip(cl)
}

// Client talks to the Gist API with a static bearer token. It remembers the
// document id once a first upload creates it.
type Client struct {
	baseURL string
	http    *http.Client

	mu         sync.Mutex
	documentID string
}

// New returns a client for cfg. cfg.Token must be set; see config.PasteConfig.Enabled.
func New(cfg config.PasteConfig) *Client {
	h := http.Header{}
	h.Set("Accept", "application/vnd.github+json")
	h.Set("X-GitHub-Api-Version", "2022-11-28")

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout: requestTimeout,
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}),
				Base:   headerTransport{rt: http.DefaultTransport, headers: h},
			},
		},
		documentID: cfg.DocumentID,
	}
}

// DocumentID returns the current document id, or "" before the first upload.
func (c *Client) DocumentID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.documentID
}

type gistFile struct {
	Content   string `json:"content"`
	Truncated bool   `json:"truncated,omitempty"`
	RawURL    string `json:"raw_url,omitempty"`
}

type gist struct {
	ID          string              `json:"id,omitempty"`
	HTMLURL     string              `json:"html_url,omitempty"`
	Description string              `json:"description,omitempty"`
	Public      *bool               `json:"public,omitempty"`
	Files       map[string]gistFile `json:"files"`
}

// Upload stores content under filename. Without a document id a new private
// document is created; otherwise the existing one is updated.
func (c *Client) Upload(ctx context.Context, filename, content string) (Result, error) {
	id := c.DocumentID()
	body := gist{Files: map[string]gistFile{filename: {Content: content}}}

	var (
		method = http.MethodPatch
		url    = c.baseURL + "/gists/" + id
		want   = http.StatusOK
	)
	if id == "" {
		private := false
		body.Description = description
		body.Public = &private
		method, url, want = http.MethodPost, c.baseURL+"/gists", http.StatusCreated
	}

	var out gist
	if err := c.do(ctx, method, url, body, want, &out); err != nil {
		return Result{}, err
	}
	if out.ID == "" {
		out.ID = id
	}
	if id == "" {
		c.mu.Lock()
		c.documentID = out.ID
		c.mu.Unlock()
		logger.L.Infow("created paste document", "id", out.ID)
	}
	return Result{Success: true, ID: out.ID, URL: out.HTMLURL}, nil
}

// Fetch returns the content of filename in the current document.
func (c *Client) Fetch(ctx context.Context, filename string) (string, error) {
	id := c.DocumentID()
	if id == "" {
		return "", ErrNoDocument
	}
	var out gist
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/gists/"+id, nil, http.StatusOK, &out); err != nil {
		return "", err
	}
	f, ok := out.Files[filename]
	if !ok {
		return "", fmt.Errorf("paste: document %s has no file %q", id, filename)
	}
	if f.Truncated {
		return "", fmt.Errorf("paste: file %q is truncated in the API response", filename)
	}
	return f.Content, nil
}

func (c *Client) do(ctx context.Context, method, url string, in any, want int, out any) error {
	var reader io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("paste %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxPayload))
		logger.L.Warnw("paste request failed", "method", method, "status", resp.StatusCode)
		return &APIError{Status: resp.StatusCode, Payload: string(payload)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("paste %s: decode response: %w", method, err)
	}
	return nil
}
