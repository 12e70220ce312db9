package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 60 * time.Second

	// File and directory permissions for written assets.
	filePermissions = 0o600
	dirPermissions  = 0o750

	// Rate limit for the speech API: 50 requests per minute.
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5
)

// client is the live speech strategy: it converts text to a compressed audio
// stream via an OpenAI-compatible /audio/speech endpoint and writes the
// result under the assets directory.
//
// Every failure on this path is absorbed: the method logs and returns the
// placeholder reference instead. Synthesis as a feature is best-effort.
type client struct {
	baseURL    string
	apiKey     string
	model      string
	voice      string
	assetsDir  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

func newClient(cfg Config, logger *zap.Logger) (*client, error) {
	if err := os.MkdirAll(cfg.AssetsDir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating assets directory %s: %w", cfg.AssetsDir, err)
	}

	return &client{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		voice:     cfg.Voice,
		assetsDir: cfg.AssetsDir,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		logger:  logger,
	}, nil
}

// speechRequest is the request format for the speech endpoint.
type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize converts text to audio and returns the asset reference. On any
// failure it logs and returns the placeholder reference; the error result is
// always nil.
func (c *client) Synthesize(ctx context.Context, text, assetName string) (string, error) {
	audio, err := c.fetchAudio(ctx, text)
	if err != nil {
		c.logger.Warn("speech synthesis failed, substituting placeholder",
			zap.String("asset", assetName),
			zap.Error(err))
		return placeholderURL(), nil
	}

	outputPath := filepath.Join(c.assetsDir, filepath.Base(assetName))
	if err := os.WriteFile(outputPath, audio, filePermissions); err != nil {
		c.logger.Warn("writing audio asset failed, substituting placeholder",
			zap.String("path", outputPath),
			zap.Error(err))
		return placeholderURL(), nil
	}

	c.logger.Info("generated audio asset",
		zap.String("path", outputPath),
		zap.Int("bytes", len(audio)))

	return path.Join(AssetURLPrefix, filepath.Base(assetName)), nil
}

// fetchAudio performs the HTTP round-trip and returns the raw audio bytes.
func (c *client) fetchAudio(ctx context.Context, text string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(speechRequest{
		Model:          c.model,
		Input:          text,
		Voice:          c.voice,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("speech API returned %d: %s", resp.StatusCode, msg)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading audio stream: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("speech API returned empty audio")
	}

	return audio, nil
}

var _ Provider = (*client)(nil)
