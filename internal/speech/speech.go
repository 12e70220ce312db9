// Package speech converts generated text into audio assets.
//
// Synthesis is best-effort: the live strategy requires credentials
// and an OpenAI-compatible speech endpoint, and any failure on that path is
// logged and swallowed, substituting the fixed placeholder asset. Callers
// never see a synthesis error.
package speech

import (
	"context"
	"fmt"
	"path"

	"go.uber.org/zap"
)

// PlaceholderAsset is the fixed, pre-existing asset the fallback strategy
// resolves to. It is shared across all projects.
const PlaceholderAsset = "placeholder.mp3"

// AssetURLPrefix is the public path under which audio assets are served.
const AssetURLPrefix = "/assets/"

// Provider synthesizes speech for a text payload and returns a reference
// (URL path) to the resulting audio asset.
//
// Implementations in this package never return an error: live failures
// degrade to the placeholder reference.
type Provider interface {
	Synthesize(ctx context.Context, text, assetName string) (string, error)
}

// Config holds configuration for the speech provider.
type Config struct {
	// BaseURL is the OpenAI-compatible speech endpoint.
	BaseURL string

	// APIKey enables the live strategy when set.
	APIKey string

	// Model is the speech model name.
	Model string

	// Voice is the synthesis voice. A single neutral English voice is used;
	// there is no per-request voice selection.
	Voice string

	// AssetsDir is where synthesized audio files are written.
	AssetsDir string
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.Model == "" {
		c.Model = "tts-1"
	}
	if c.Voice == "" {
		c.Voice = "alloy"
	}
	if c.AssetsDir == "" {
		c.AssetsDir = "data/assets"
	}
}

// NewProvider builds the speech strategy for the given configuration.
func NewProvider(cfg Config, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()

	if cfg.APIKey == "" {
		logger.Info("no speech credentials configured, using placeholder asset")
		return NewFallback(), nil
	}

	client, err := newClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating speech client: %w", err)
	}

	logger.Info("live speech provider initialized",
		zap.String("base_url", cfg.BaseURL),
		zap.String("model", cfg.Model),
		zap.String("voice", cfg.Voice),
		zap.String("assets_dir", cfg.AssetsDir))

	return client, nil
}

// Fallback resolves every synthesis request to the shared placeholder asset.
type Fallback struct{}

// NewFallback creates the fallback speech strategy.
func NewFallback() *Fallback { return &Fallback{} }

// Synthesize returns the placeholder asset reference. It never fails.
func (f *Fallback) Synthesize(_ context.Context, _, _ string) (string, error) {
	return placeholderURL(), nil
}

func placeholderURL() string {
	return path.Join(AssetURLPrefix, PlaceholderAsset)
}

var _ Provider = (*Fallback)(nil)
