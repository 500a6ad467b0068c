// Package embed converts text to float32 vectors via an OpenAI-compatible
// embedding server (vLLM, Ollama, ONNX Runtime Server, or OpenAI itself).
//
// The rest of the system depends only on the Embedder interface; collection
// sizing is derived by probing a one-text embedding call, so no backend
// dimension needs to be configured up front.
package embed

import (
	"context"
	"log/slog"
	"time"
)

// Embedder converts text to vectors.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embeddings for multiple texts, preserving input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the backend model name.
	Model() string
}

// Config configures the embedding client.
type Config struct {
	// Endpoint is the base URL of the embedding server. If empty, a noop
	// embedder producing zero vectors is returned.
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Model is the model name sent with each request.
	Model string `json:"model" yaml:"model"`

	// BatchSize caps the number of texts per HTTP request. Default: 64.
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// Timeout per HTTP request. Default: 60s — embedding a full scrape batch
	// on CPU backends is slow.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Logger for debug/error messages. Defaults to slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// New creates an Embedder from config.
func New(cfg Config) Embedder {
	cfg.defaults()
	if cfg.Endpoint == "" {
		return noop{model: cfg.Model}
	}
	return newRESTClient(cfg)
}

// noop produces fixed-size zero vectors so the pipeline stays runnable
// without an embedding server.
type noop struct {
	model string
}

const noopDimension = 768

func (noop) Embed(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, noopDimension), nil
}

func (n noop) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, noopDimension)
	}
	return out, nil
}

func (n noop) Model() string { return n.model }
