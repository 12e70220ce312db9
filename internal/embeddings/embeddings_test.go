package embeddings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSyntheticEmbed(t *testing.T) {
	e := NewSynthetic()

	for _, text := range []string{"", "Revenue grew 12%.", "long text that exceeds nothing in particular"} {
		vec, err := e.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Len(t, vec, Dimension)
	}
}

func TestNewEmbedderWithoutCredentials(t *testing.T) {
	e, err := NewEmbedder(Config{}, zap.NewNop())
	require.NoError(t, err)

	_, ok := e.(*Synthetic)
	assert.True(t, ok, "no API key should select the synthetic strategy")
}

// failingEmbedder simulates a live provider outage.
type failingEmbedder struct{}

func (f *failingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("provider outage")
}

func (f *failingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("provider outage")
}

// shortEmbedder returns vectors of the wrong dimension.
type shortEmbedder struct{}

func (s *shortEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

func (s *shortEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 2, 3}, nil
}

func TestResilientEmbedderDegradesOnFailure(t *testing.T) {
	r := &resilientEmbedder{
		live:     &failingEmbedder{},
		fallback: NewSynthetic(),
		logger:   zap.NewNop(),
	}

	vec, err := r.Embed(context.Background(), "anything")
	require.NoError(t, err, "embedding must never fail")
	assert.Len(t, vec, Dimension)
}

func TestResilientEmbedderDegradesOnWrongDimension(t *testing.T) {
	r := &resilientEmbedder{
		live:     &shortEmbedder{},
		fallback: NewSynthetic(),
		logger:   zap.NewNop(),
	}

	vec, err := r.Embed(context.Background(), "anything")
	require.NoError(t, err)
	assert.Len(t, vec, Dimension)
}
