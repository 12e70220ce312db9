// Package embeddings maps free text to fixed-dimension vectors.
//
// Two strategies exist, selected once at construction from credential
// presence: a live strategy backed by an OpenAI-compatible embedding endpoint
// via langchaingo, and a synthetic strategy producing random vectors of the
// correct dimension. Embedding never fails from the caller's point of view:
// the live strategy degrades to the synthetic one on any provider error.
package embeddings

import (
	"context"
	"fmt"
	"math/rand/v2"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// Dimension is the fixed embedding dimensionality. It matches the store's
// collection schema and must not change once records exist.
const Dimension = 384

// Embedder maps text to a vector of exactly Dimension elements.
//
// Implementations in this package never return an error; the signature keeps
// one so callers can swap in stricter implementations.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config holds configuration for the embedding service.
type Config struct {
	// BaseURL is the OpenAI-compatible embedding endpoint.
	BaseURL string

	// Model is the embedding model name.
	Model string

	// APIKey enables the live strategy when set.
	APIKey string
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.Model == "" {
		c.Model = "text-embedding-3-small"
	}
}

// NewEmbedder builds the embedder strategy for the given configuration.
//
// With no API key configured it returns the synthetic embedder. With a key it
// returns the live langchaingo embedder wrapped so that provider failures
// degrade to synthetic vectors instead of surfacing.
func NewEmbedder(cfg Config, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()

	if cfg.APIKey == "" {
		logger.Info("no embedding credentials configured, using synthetic embedder",
			zap.Int("dimension", Dimension))
		return NewSynthetic(), nil
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating embedding client: %w", err)
	}

	embedder, err := lcembeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	logger.Info("live embedder initialized",
		zap.String("base_url", cfg.BaseURL),
		zap.String("model", cfg.Model))

	return &resilientEmbedder{
		live:     embedder,
		fallback: NewSynthetic(),
		logger:   logger,
	}, nil
}

// Synthetic is a stand-in embedding model: deterministic in dimensionality,
// non-deterministic in value. Callers must not rely on value stability across
// calls with the same text.
type Synthetic struct{}

// NewSynthetic creates a synthetic embedder.
func NewSynthetic() *Synthetic { return &Synthetic{} }

// Embed returns a random vector of Dimension elements. It never fails.
func (s *Synthetic) Embed(_ context.Context, _ string) ([]float32, error) {
	vec := make([]float32, Dimension)
	for i := range vec {
		vec[i] = rand.Float32()
	}
	return vec, nil
}

// resilientEmbedder delegates to the live strategy and falls back to
// synthetic vectors whenever the provider errors or returns a vector of the
// wrong dimension. Synthetic vectors are preferred over zeros here: a zero
// vector cannot be cosine-normalized by the store.
type resilientEmbedder struct {
	live     lcembeddings.Embedder
	fallback *Synthetic
	logger   *zap.Logger
}

func (r *resilientEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := r.live.EmbedQuery(ctx, text)
	if err != nil {
		r.logger.Warn("live embedding failed, degrading to synthetic vector",
			zap.Error(err))
		return r.fallback.Embed(ctx, text)
	}
	if len(vec) != Dimension {
		r.logger.Warn("live embedding has unexpected dimension, degrading to synthetic vector",
			zap.Int("got", len(vec)),
			zap.Int("want", Dimension))
		return r.fallback.Embed(ctx, text)
	}
	return vec, nil
}

var (
	_ Embedder = (*Synthetic)(nil)
	_ Embedder = (*resilientEmbedder)(nil)
)
