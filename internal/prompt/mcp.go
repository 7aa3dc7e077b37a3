package prompt

import (
	"context"
	"fmt"
	"slices"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/comigor/mindly-go/internal/config"
	"github.com/comigor/mindly-go/internal/logger"
)

// promptClient is the subset of the MCP client used for prompt discovery.
type promptClient interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListPrompts(ctx context.Context, req mcp.ListPromptsRequest) (*mcp.ListPromptsResult, error)
	GetPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error)
	Close() error
}

// DiscoverMCPPrompts connects to every configured MCP server and collects the
// first argument-less prompt each one offers. Servers that fail are logged
// and skipped; discovery never blocks startup on a broken server.
func DiscoverMCPPrompts(ctx context.Context, servers []config.MCPServerConfig) []string {
	var found []string
	for _, serverCfg := range servers {
		c, err := dial(ctx, serverCfg)
		if err != nil {
			logger.L.Errorw("failed to create MCP client", "name", serverCfg.Name, "error", err)
			continue
		}
		text := firstPrompt(ctx, serverCfg.Name, c)
		if cerr := c.Close(); cerr != nil {
			logger.L.Warnw("MCP client close error", "name", serverCfg.Name, "error", cerr)
		}
		if text != "" {
			logger.L.Infow("discovered system prompt from MCP server", "name", serverCfg.Name)
			found = append(found, text)
		}
	}
	return found
}

func dial(ctx context.Context, serverCfg config.MCPServerConfig) (promptClient, error) {
	var (
		c   *client.Client
		err error
	)
	switch serverCfg.Type {
	case config.ClientTypeSSE:
		var opts []transport.ClientOption
		if len(serverCfg.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(serverCfg.Headers))
		}
		c, err = client.NewSSEMCPClient(serverCfg.URL, opts...)
	case config.ClientTypeStreamableHTTP:
		var opts []transport.StreamableHTTPCOption
		if len(serverCfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(serverCfg.Headers))
		}
		c, err = client.NewStreamableHttpClient(serverCfg.URL, opts...)
	case config.ClientTypeStdio:
		var env []string
		for k, v := range serverCfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		// stdio clients are started by the constructor
		return client.NewStdioMCPClient(serverCfg.Command, env, serverCfg.Args...)
	default:
		return nil, fmt.Errorf("unsupported MCP server type %q", serverCfg.Type)
	}
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("start transport: %w", err)
	}
	return c, nil
}

// firstPrompt returns the text of the first assistant message of the first
// argument-less prompt, or "" when the server offers none.
func firstPrompt(ctx context.Context, name string, c promptClient) string {
	initReq := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      mcp.Implementation{Name: "mindly", Version: "1.0.0"},
			Capabilities:    mcp.ClientCapabilities{},
		},
	}
	initResult, err := c.Initialize(ctx, initReq)
	if err != nil {
		logger.L.Errorw("failed to initialize MCP client", "name", name, "error", err)
		return ""
	}
	if initResult == nil || initResult.Capabilities.Prompts == nil {
		logger.L.Debugw("server does not advertise prompts", "name", name)
		return ""
	}

	prompts, err := c.ListPrompts(ctx, mcp.ListPromptsRequest{})
	if err != nil || prompts == nil {
		logger.L.Warnw("failed to list prompts", "name", name, "error", err)
		return ""
	}
	idx := slices.IndexFunc(prompts.Prompts, func(p mcp.Prompt) bool {
		return len(p.Arguments) == 0
	})
	if idx == -1 {
		return ""
	}

	getReq := mcp.GetPromptRequest{}
	getReq.Params.Name = prompts.Prompts[idx].Name
	got, err := c.GetPrompt(ctx, getReq)
	if err != nil || got == nil {
		logger.L.Warnw("failed to get prompt", "name", name, "prompt", getReq.Params.Name, "error", err)
		return ""
	}
	for _, m := range got.Messages {
		if m.Role != mcp.RoleAssistant {
			continue
		}
		if content, ok := m.Content.(mcp.TextContent); ok {
			return content.Text
		}
	}
	return ""
}
