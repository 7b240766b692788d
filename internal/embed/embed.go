// Package embed converts research text into fixed-length vectors.
package embed

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"

	"github.com/sells-group/contact-research/internal/config"
	"github.com/sells-group/contact-research/internal/resilience"
)

// Dimensions is the length of every vector Generator returns.
const Dimensions = 1536

// ErrUnavailable means embeddings are not configured. Callers treat it as a
// silent degradation.
var ErrUnavailable = eris.New("embed: unavailable")

// maxInputRunes keeps requests under the model's token window.
const maxInputRunes = 30000

// Embedder produces a vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator embeds text with the OpenAI embeddings API.
type Generator struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// New creates a generator from cfg. Without a key every call returns
// ErrUnavailable.
func New(cfg config.OpenAIConfig) *Generator {
	if cfg.Key == "" {
		return &Generator{}
	}
	oc := openai.DefaultConfig(cfg.Key)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	m := openai.EmbeddingModel(cfg.EmbeddingModel)
	if m == "" {
		m = openai.SmallEmbedding3
	}
	return &Generator{client: openai.NewClientWithConfig(oc), model: m}
}

// Available reports whether a client is configured.
func (g *Generator) Available() bool {
	return g != nil && g.client != nil
}

// Embed returns the embedding of text. Retryable API failures are marked
// transient for the caller's retry policy.
func (g *Generator) Embed(ctx context.Context, text string) ([]float32, error) {
	if !g.Available() {
		return nil, ErrUnavailable
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, eris.New("embed: empty input")
	}
	if r := []rune(text); len(r) > maxInputRunes {
		text = string(r[:maxInputRunes])
	}

	resp, err := g.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      g.model,
		Dimensions: Dimensions,
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Data) == 0 {
		return nil, eris.New("embed: no embedding data")
	}
	vec := resp.Data[0].Embedding
	if len(vec) != Dimensions {
		return nil, eris.Errorf("embed: got %d dimensions, want %d", len(vec), Dimensions)
	}
	return vec, nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && resilience.RetryableStatus(apiErr.HTTPStatusCode) {
		return resilience.Transient(eris.Wrap(err, "embed: create embeddings"), apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && resilience.RetryableStatus(reqErr.HTTPStatusCode) {
		return resilience.Transient(eris.Wrap(err, "embed: create embeddings"), reqErr.HTTPStatusCode)
	}
	return eris.Wrap(err, "embed: create embeddings")
}
