package memory

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
)

// Embedder produces a fixed-length vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OllamaEmbedder embeds text via a local Ollama server.
type OllamaEmbedder struct {
	client *api.Client
	model  string
}

// NewOllamaEmbedder creates an Ollama-backed embedder. host may be empty,
// in which case the client is resolved from OLLAMA_HOST / defaults.
func NewOllamaEmbedder(host, model string) (*OllamaEmbedder, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama embedder: model is required")
	}

	var client *api.Client
	if host == "" {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama embedder: client from environment: %w", err)
		}
		client = c
	} else {
		base, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("ollama embedder: parse host %q: %w", host, err)
		}
		client = api.NewClient(base, http.DefaultClient)
	}

	return &OllamaEmbedder{client: client, model: model}, nil
}

// Embed returns the embedding vector for text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: e.model,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama embed: empty embedding for model %s", e.model)
	}
	return resp.Embeddings[0], nil
}

// Ping verifies the Ollama server is reachable. Used at startup so the
// composition root can degrade to FTS-only search instead of failing
// every insert later.
func (e *OllamaEmbedder) Ping(ctx context.Context) error {
	if err := e.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama embedder: heartbeat: %w", err)
	}
	return nil
}

// Cosine returns the cosine similarity of two vectors. Mismatched or
// empty vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
