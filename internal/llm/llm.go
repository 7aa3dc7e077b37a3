package llm

import (
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/mindly-go/internal/config"
)

// NewClient creates an OpenAI-compatible client for the configured provider.
// The HTTP timeout bounds a single completion round trip.
func NewClient(cfg config.LLMConfig) *openai.Client {
	c := openai.DefaultConfig(cfg.APIKey)
	c.BaseURL = cfg.BaseURL
	c.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return openai.NewClientWithConfig(c)
}
