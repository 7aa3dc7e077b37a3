package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/comigor/mindly-go/internal/config"
	"github.com/comigor/mindly-go/internal/llm"
	"github.com/comigor/mindly-go/internal/prompt"
	"github.com/comigor/mindly-go/internal/session"
)

type mockLLM struct {
	reply    string
	err      error
	requests []openai.ChatCompletionRequest
}

func (m *mockLLM) CreateChatCompletion(ctx context.Context, r openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.requests = append(m.requests, r)
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.reply}}},
	}, nil
}

func testConfig() config.Config {
	return config.Config{
		LLM:  config.LLMConfig{Model: "mistral-large-latest", Timeout: 5 * time.Second},
		Chat: config.ChatConfig{MaxHistoryPairs: 8},
	}
}

func history(pairs int) []session.Turn {
	var h []session.Turn
	for i := 0; i < pairs; i++ {
		h = append(h, session.UserTurn(fmt.Sprintf("u%d", i)), session.AssistantTurn(fmt.Sprintf("a%d", i)))
	}
	return h
}

func TestComplete_Success(t *testing.T) {
	m := &mockLLM{reply: "## Respira\n\n\n\n• Inhala 4 segundos\n• Exhala 6 segundos"}
	g := New(m, testConfig(), nil)

	text, err := g.Complete(context.Background(), Input{Message: "Me siento muy ansioso últimamente", UserName: "Ana"})
	require.NoError(t, err)
	require.Equal(t, "**Respira**\n\n- Inhala 4 segundos\n- Exhala 6 segundos", text)

	require.Len(t, m.requests, 1)
	req := m.requests[0]
	require.Equal(t, "mistral-large-latest", req.Model)
	require.Len(t, req.Messages, 2)
	require.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	require.Contains(t, req.Messages[0].Content, "Ana")
	require.Equal(t, openai.ChatMessageRoleUser, req.Messages[1].Role)
	require.Equal(t, "Me siento muy ansioso últimamente", req.Messages[1].Content)
}

func TestComplete_WindowsHistory(t *testing.T) {
	m := &mockLLM{reply: "ok"}
	g := New(m, testConfig(), prompt.NewBuilder("extra"))

	_, err := g.Complete(context.Background(), Input{Message: "nuevo", History: history(12)})
	require.NoError(t, err)

	msgs := m.requests[0].Messages
	require.Len(t, msgs, 1+16+1)
	systems := 0
	for _, msg := range msgs {
		if msg.Role == openai.ChatMessageRoleSystem {
			systems++
		}
	}
	require.Equal(t, 1, systems)
	require.True(t, strings.HasSuffix(msgs[0].Content, "\n\nextra"))
	require.Equal(t, "u4", msgs[1].Content, "oldest turns are dropped")
	require.Equal(t, "a11", msgs[16].Content)
	require.Equal(t, "nuevo", msgs[17].Content)
}

func TestWindow(t *testing.T) {
	h := history(3)
	require.Len(t, Window(h, 8), 6)
	require.Equal(t, h[2:], Window(h, 2))
	require.Empty(t, Window(h, 0))
}

func TestComplete_EmptyChoicesIsMalformed(t *testing.T) {
	g := New(&mockLLM{reply: "   "}, testConfig(), nil)
	text, err := g.Complete(context.Background(), Input{Message: "hola"})
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, KindMalformedResponse, gerr.Kind)
	require.Equal(t, KindMalformedResponse.Apology(), text)
}

func TestComplete_OnlyCodeIsMalformed(t *testing.T) {
	g := New(&mockLLM{reply: "```go\nfmt.Println()\n```"}, testConfig(), nil)
	text, err := g.Complete(context.Background(), Input{Message: "hola"})
	require.Error(t, err)
	require.Equal(t, KindMalformedResponse.Apology(), text)
}

func TestComplete_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"unauthorized", &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "bad key"}, KindUnauthorized},
		{"forbidden", &openai.RequestError{HTTPStatusCode: http.StatusForbidden, Err: errors.New("nope")}, KindUnauthorized},
		{"rate limited", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}, KindRateLimited},
		{"bad request", &openai.APIError{HTTPStatusCode: http.StatusBadRequest}, KindBadRequest},
		{"too large", &openai.APIError{HTTPStatusCode: http.StatusRequestEntityTooLarge}, KindBadRequest},
		{"server", &openai.RequestError{HTTPStatusCode: http.StatusBadGateway, Err: errors.New("gw")}, KindServerError},
		{"timeout", fmt.Errorf("post: %w", context.DeadlineExceeded), KindNetworkError},
		{"unknown", errors.New("connection refused"), KindNetworkError},
		{"canceled", fmt.Errorf("post: %w", context.Canceled), KindCanceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(&mockLLM{err: tt.err}, testConfig(), nil)
			text, err := g.Complete(context.Background(), Input{Message: "hola"})

			var gerr *Error
			require.ErrorAs(t, err, &gerr)
			require.Equal(t, tt.want, gerr.Kind)
			require.Equal(t, tt.want.Apology(), text)
			require.NotContains(t, text, "bad key", "provider detail never reaches the user")
		})
	}
}

func TestComplete_CallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := New(&mockLLM{err: errors.New("transport closed")}, testConfig(), nil)

	text, err := g.Complete(ctx, Input{Message: "hola"})
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, KindCanceled, gerr.Kind)
	require.Equal(t, KindCanceled.Apology(), text)
}

func TestApologiesAreDistinct(t *testing.T) {
	kinds := []Kind{KindUnauthorized, KindRateLimited, KindBadRequest, KindServerError, KindNetworkError, KindMalformedResponse, KindCanceled}
	seen := map[string]Kind{}
	for _, k := range kinds {
		a := k.Apology()
		require.NotEmpty(t, a)
		_, dup := seen[a]
		require.False(t, dup, "%s reuses another apology", k)
		seen[a] = k
	}
}

func newServerGateway(t *testing.T, h http.HandlerFunc) *Gateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := testConfig()
	cfg.LLM.BaseURL = srv.URL + "/v1"
	cfg.LLM.APIKey = "test-key-0123456789abcdef"
	return New(llm.NewClient(cfg.LLM), cfg, nil)
}

func TestComplete_HTTPRateLimited(t *testing.T) {
	calls := 0
	var auth string
	g := newServerGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	})

	text, err := g.Complete(context.Background(), Input{Message: "hola"})
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, KindRateLimited, gerr.Kind)
	require.Equal(t, http.StatusTooManyRequests, gerr.Status)
	require.Equal(t, KindRateLimited.Apology(), text)
	require.Equal(t, 1, calls, "no retries")
	require.Equal(t, "Bearer test-key-0123456789abcdef", auth)
}

func TestComplete_HTTPMalformedBody(t *testing.T) {
	g := newServerGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`not json at all`))
	})

	_, err := g.Complete(context.Background(), Input{Message: "hola"})
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, KindMalformedResponse, gerr.Kind)
}

func TestComplete_HTTPSuccess(t *testing.T) {
	var path string
	g := newServerGateway(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Visita [esta guía](https://example.com) hoy."},"finish_reason":"stop"}]}`))
	})

	text, err := g.Complete(context.Background(), Input{Message: "hola"})
	require.NoError(t, err)
	require.Equal(t, "Visita esta guía hoy.", text)
	require.Equal(t, "/v1/chat/completions", path)
}
