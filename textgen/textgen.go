// Package textgen is a thin client for text generation via an
// OpenAI-compatible chat completions server (vLLM, Ollama, or OpenAI).
// Output is free text with no determinism guarantee; callers own parsing
// and fallback behavior.
package textgen

import (
	"context"
	"log/slog"
	"time"
)

// Options tune one generation call.
type Options struct {
	// Temperature for sampling. Zero means server default.
	Temperature float32

	// TopP nucleus sampling cutoff. Zero means server default.
	TopP float32

	// JSONMode requests structured output where the backend supports it.
	// The response may still carry surrounding text; callers must extract.
	JSONMode bool

	// MaxTokens caps the completion length. Zero means the client default.
	MaxTokens int
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)

	// Model returns the backend model name.
	Model() string
}

// Config configures the generation client.
type Config struct {
	// Endpoint is the base URL of the chat completions server.
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// APIKey is sent as a bearer token when set.
	APIKey string `json:"api_key" yaml:"api_key"`

	// Model is the model name sent with each request.
	Model string `json:"model" yaml:"model"`

	// MaxTokens default completion cap. Default: 1024.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// Timeout per HTTP request. Default: 120s.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Logger for debug/error messages. Defaults to slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// New creates a Generator from config.
func New(cfg Config) Generator {
	cfg.defaults()
	return newChatClient(cfg)
}
