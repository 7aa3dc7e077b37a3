package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MinAPIKeyLength rejects obviously truncated or placeholder credentials.
const MinAPIKeyLength = 20

// Config holds the application configuration
type Config struct {
	LLM        LLMConfig         `mapstructure:"llm"`
	Chat       ChatConfig        `mapstructure:"chat"`
	Storage    StorageConfig     `mapstructure:"storage"`
	Paste      PasteConfig       `mapstructure:"paste"`
	Log        LogConfig         `mapstructure:"log"`
	MCPServers []MCPServerConfig `mapstructure:"mcp_servers"`
}

// LLMConfig holds the completion endpoint configuration
type LLMConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ChatConfig bounds what is sent to the model and when sessions are autosaved.
type ChatConfig struct {
	MaxHistoryPairs int    `mapstructure:"max_history_pairs"`
	MaxPromptLength int    `mapstructure:"max_prompt_length"`
	AutosaveEvery   int    `mapstructure:"autosave_every"`
	DefaultProfile  string `mapstructure:"default_profile"`
}

// StorageConfig holds the local file locations.
type StorageConfig struct {
	SessionsPath string `mapstructure:"sessions_path"`
	LogPath      string `mapstructure:"log_path"`
	JournalPath  string `mapstructure:"journal_path"`
}

// PasteConfig holds the remote paste (gist) mirror configuration.
type PasteConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	Token        string `mapstructure:"token"`
	DocumentID   string `mapstructure:"document_id"`
	SyncSchedule string `mapstructure:"sync_schedule"`
}

// Enabled reports whether a paste token is configured.
func (p PasteConfig) Enabled() bool { return strings.TrimSpace(p.Token) != "" }

// LogConfig holds logging options.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ClientType is the transport used to reach an MCP server.
type ClientType string

const (
	ClientTypeSSE            ClientType = "sse"
	ClientTypeStreamableHTTP ClientType = "streamable_http"
	ClientTypeStdio          ClientType = "stdio"
)

// MCPServerConfig describes an MCP server that may contribute system prompt fragments.
type MCPServerConfig struct {
	Name    string            `mapstructure:"name"`
	Type    ClientType        `mapstructure:"type"`
	URL     string            `mapstructure:"url"`
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`
	Headers map[string]string `mapstructure:"headers"`
}

// secrets are read from the environment (or .env) and take precedence over the file.
type secrets struct {
	MistralAPIKey string `env:"MISTRAL_API_KEY"`
	LegacyAPIKey  string `env:"mistralapi"`
	GitHubToken   string `env:"GITHUB_TOKEN"`
	GistID        string `env:"GIST_ID"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.base_url", "https://api.mistral.ai/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "mistral-large-latest")
	v.SetDefault("llm.timeout", 60*time.Second)

	v.SetDefault("chat.max_history_pairs", 8)
	v.SetDefault("chat.max_prompt_length", 2000)
	v.SetDefault("chat.autosave_every", 6)
	v.SetDefault("chat.default_profile", "empathetic")

	v.SetDefault("storage.sessions_path", "chat_sessions.json")
	v.SetDefault("storage.log_path", "chat_log.json")
	v.SetDefault("storage.journal_path", "history.db")

	v.SetDefault("paste.base_url", "https://api.github.com")
	v.SetDefault("paste.token", "")
	v.SetDefault("paste.document_id", "")
	v.SetDefault("paste.sync_schedule", "")

	v.SetDefault("log.level", "info")
}

// Load reads config.yaml (or the file named by CONFIG_PATH), applies MINDLY_*
// environment overrides and the credential variables, then validates the result.
// A missing config file is not an error; a missing credential is.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("MINDLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	var s secrets
	if err := env.Parse(&s); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.applySecrets(s)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applySecrets(s secrets) {
	switch {
	case s.MistralAPIKey != "":
		c.LLM.APIKey = s.MistralAPIKey
	case s.LegacyAPIKey != "":
		c.LLM.APIKey = s.LegacyAPIKey
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if s.GitHubToken != "" {
		c.Paste.Token = s.GitHubToken
	}
	if s.GistID != "" {
		c.Paste.DocumentID = s.GistID
	}
}

// ErrMissingAPIKey is returned when no completion credential is configured.
var ErrMissingAPIKey = errors.New("completion API key is not configured (set MISTRAL_API_KEY or llm.api_key)")

// RequireAPIKey rejects a missing or obviously truncated completion
// credential. Only commands that talk to the model need it.
func (c *Config) RequireAPIKey() error {
	if c.LLM.APIKey == "" {
		return ErrMissingAPIKey
	}
	if len(c.LLM.APIKey) < MinAPIKeyLength {
		return fmt.Errorf("completion API key looks invalid: %d characters, want at least %d", len(c.LLM.APIKey), MinAPIKeyLength)
	}
	return nil
}

// Validate rejects structurally broken configurations. The credential is
// checked separately by RequireAPIKey.
func (c *Config) Validate() error {
	if c.LLM.Model == "" {
		return errors.New("llm.model must not be empty")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive, got %s", c.LLM.Timeout)
	}
	if c.Chat.MaxHistoryPairs <= 0 {
		return fmt.Errorf("chat.max_history_pairs must be positive, got %d", c.Chat.MaxHistoryPairs)
	}
	if c.Chat.MaxPromptLength <= 0 {
		return fmt.Errorf("chat.max_prompt_length must be positive, got %d", c.Chat.MaxPromptLength)
	}
	if c.Chat.AutosaveEvery <= 0 || c.Chat.AutosaveEvery%2 != 0 {
		return fmt.Errorf("chat.autosave_every must be a positive even number, got %d", c.Chat.AutosaveEvery)
	}
	for _, s := range c.MCPServers {
		switch s.Type {
		case ClientTypeSSE, ClientTypeStreamableHTTP, ClientTypeStdio:
		default:
			return fmt.Errorf("mcp server %q: unsupported type %q", s.Name, s.Type)
		}
	}
	return nil
}
