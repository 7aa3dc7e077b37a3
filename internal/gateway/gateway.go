// Package gateway turns a user utterance plus bounded history into a cleaned
// model reply, recovering every failure into a user-safe apology.
package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/mindly-go/internal/config"
	"github.com/comigor/mindly-go/internal/llm"
	"github.com/comigor/mindly-go/internal/logger"
	"github.com/comigor/mindly-go/internal/prompt"
	"github.com/comigor/mindly-go/internal/session"
)

var errEmptyCompletion = errors.New("completion has no choices or empty content")

// Input is one completion request.
type Input struct {
	Message  string
	History  []session.Turn
	Profile  prompt.Profile
	UserName string
}

// Gateway calls the completion endpoint.
type Gateway struct {
	client   llm.Client
	model    string
	timeout  time.Duration
	maxPairs int
	prompts  *prompt.Builder
	pipeline Pipeline
}

// New returns a gateway using the model and limits from cfg.
func New(client llm.Client, cfg config.Config, prompts *prompt.Builder) *Gateway {
	if prompts == nil {
		prompts = prompt.NewBuilder()
	}
	return &Gateway{
		client:   client,
		model:    cfg.LLM.Model,
		timeout:  cfg.LLM.Timeout,
		maxPairs: cfg.Chat.MaxHistoryPairs,
		prompts:  prompts,
		pipeline: DefaultPipeline,
	}
}

// Messages builds the outbound message list: one system message, the most
// recent 2×maxPairs history turns, then the new user message.
func (g *Gateway) Messages(in Input) []openai.ChatCompletionMessage {
	window := Window(in.History, g.maxPairs)
	msgs := make([]openai.ChatCompletionMessage, 0, len(window)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: g.prompts.System(in.Profile, in.UserName),
	})
	for _, t := range window {
		if t.Role == session.RoleSystem {
			continue
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: string(t.Role), Content: t.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: in.Message,
	})
	return msgs
}

// Window returns the last 2×pairs turns of history. Older turns are dropped.
func Window(history []session.Turn, pairs int) []session.Turn {
	n := 2 * pairs
	if n <= 0 {
		return nil
	}
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// Complete performs exactly one completion call. The returned text is always
// displayable: the cleaned reply on success, or the apology for the failure
// kind along with a *Error.
func (g *Gateway) Complete(ctx context.Context, in Input) (string, error) {
	if _, ok := ctx.Deadline(); !ok && g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: g.Messages(in),
	}
	logger.L.Debugw("sending completion", "model", g.model, "messages", len(req.Messages), "profile", in.Profile.String())

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err == nil && (len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "") {
		err = &Error{Kind: KindMalformedResponse, Err: errEmptyCompletion}
	}
	if err != nil {
		// a caller cancel surfaces as context.Canceled, possibly wrapped
		// inside a transport error, so check the context itself too
		if ctx.Err() == context.Canceled {
			err = &Error{Kind: KindCanceled, Err: ctx.Err()}
		}
		gerr := classify(err)
		logger.L.Warnw("completion failed", "kind", gerr.Kind, "status", gerr.Status, "error", gerr.Err, "elapsed", time.Since(start))
		return gerr.Kind.Apology(), gerr
	}

	logger.L.Debugw("completion received", "elapsed", time.Since(start), "total_tokens", resp.Usage.TotalTokens)
	text := g.pipeline.Run(resp.Choices[0].Message.Content)
	if text == "" {
		// the reply was nothing but code or markup
		gerr := &Error{Kind: KindMalformedResponse, Err: errEmptyCompletion}
		logger.L.Warnw("completion empty after cleanup", "kind", gerr.Kind)
		return gerr.Kind.Apology(), gerr
	}
	return text, nil
}
