// Package generate produces derivative text for a project from its framework,
// source context, and an instruction.
//
// Strategy selection happens once at construction, driven by credential
// presence rather than caller choice: with an API key configured the live
// langchaingo strategy is used, otherwise the deterministic templated
// fallback. The live strategy soft-fails by default: provider errors are
// converted into a prefixed text payload delivered as if it were content, so
// downstream consumers can only detect the failure by the prefix. Strict mode
// surfaces the error instead.
package generate

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/forged/internal/apperr"
	"github.com/fyrsmithlabs/forged/internal/project"
)

// SoftFailPrefix marks generated content that is actually a provider error
// message. It is the only signal downstream consumers get in lenient mode.
const SoftFailPrefix = "Error calling generation provider: "

// DefaultInstruction is used when the caller supplies no instruction.
const DefaultInstruction = "Analyze this."

// DefaultFallbackDelay models provider latency in the fallback strategy so
// interactive callers exercise their loading states.
const DefaultFallbackDelay = 2 * time.Second

// Provider generates text for a project.
type Provider interface {
	Generate(ctx context.Context, framework project.Framework, sourceContext, instruction string) (string, error)
}

// Config holds configuration for the generation provider.
type Config struct {
	// BaseURL is the OpenAI-compatible chat completion endpoint.
	BaseURL string

	// Model is the generation model name.
	Model string

	// APIKey enables the live strategy when set.
	APIKey string

	// Strict surfaces live provider errors as ErrProviderFailure instead of
	// converting them into soft-fail content.
	Strict bool

	// FallbackDelay is the simulated latency of the fallback strategy.
	// Negative disables the delay; zero means DefaultFallbackDelay.
	FallbackDelay time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.FallbackDelay == 0 {
		c.FallbackDelay = DefaultFallbackDelay
	}
	if c.FallbackDelay < 0 {
		c.FallbackDelay = 0
	}
}

// NewProvider builds the generation strategy for the given configuration.
func NewProvider(cfg Config, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()

	if cfg.APIKey == "" {
		logger.Info("no generation credentials configured, using synthetic fallback",
			zap.Duration("simulated_delay", cfg.FallbackDelay))
		return NewFallback(cfg.FallbackDelay), nil
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating generation client: %w", err)
	}

	logger.Info("live generation provider initialized",
		zap.String("base_url", cfg.BaseURL),
		zap.String("model", cfg.Model),
		zap.Bool("strict", cfg.Strict))

	return &liveProvider{
		llm:    llm,
		strict: cfg.Strict,
		logger: logger,
	}, nil
}

// liveProvider delegates to an external LLM.
type liveProvider struct {
	llm    llms.Model
	strict bool
	logger *zap.Logger
}

func (p *liveProvider) Generate(ctx context.Context, framework project.Framework, sourceContext, instruction string) (string, error) {
	prompt := buildPrompt(framework, sourceContext, instruction)

	out, err := llms.GenerateFromSinglePrompt(ctx, p.llm, prompt)
	if err != nil {
		if p.strict {
			return "", fmt.Errorf("%w: %v", apperr.ErrProviderFailure, err)
		}
		p.logger.Warn("live generation failed, returning soft-fail content",
			zap.String("framework", string(framework)),
			zap.Error(err))
		return fmt.Sprintf("%s%v. Falling back to synthetic generation.", SoftFailPrefix, err), nil
	}

	return out, nil
}

// buildPrompt embeds framework, context, and instruction into a single
// analyst prompt.
func buildPrompt(framework project.Framework, sourceContext, instruction string) string {
	return fmt.Sprintf(`You are an expert analyst.
Framework: %s
Context: %s

Task: %s

Please provide a structured response adhering to the framework.`,
		framework, sourceContext, instruction)
}

var _ Provider = (*liveProvider)(nil)
