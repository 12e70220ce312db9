// Package orchestrator coordinates the project lifecycle: record creation,
// context updates with re-embedding, text generation and audio synthesis.
// It is the only layer that mutates records; the HTTP handlers above it are
// thin adapters and the providers below it are stateless.
package orchestrator

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/forged/internal/apperr"
	"github.com/fyrsmithlabs/forged/internal/embeddings"
	"github.com/fyrsmithlabs/forged/internal/generate"
	"github.com/fyrsmithlabs/forged/internal/project"
	"github.com/fyrsmithlabs/forged/internal/speech"
)

var tracer = otel.Tracer("forged.orchestrator")

// Store is the persistence surface the orchestrator needs. *store.ProjectStore
// satisfies it.
type Store interface {
	Create(ctx context.Context, rec *project.Project) error
	Get(ctx context.Context, id string) (*project.Project, error)
	List(ctx context.Context, limit int) ([]*project.Project, error)
	Replace(ctx context.Context, id string, rec *project.Project) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// Service wires the store and the three providers together.
type Service struct {
	store    Store
	embedder embeddings.Embedder
	gen      generate.Provider
	speech   speech.Provider
	logger   *zap.Logger
}

// NewService creates the orchestrator service. All dependencies are required
// except logger, which defaults to a no-op.
func NewService(store Store, embedder embeddings.Embedder, gen generate.Provider, sp speech.Provider, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if gen == nil {
		return nil, fmt.Errorf("generation provider is required")
	}
	if sp == nil {
		return nil, fmt.Errorf("speech provider is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		store:    store,
		embedder: embedder,
		gen:      gen,
		speech:   sp,
		logger:   logger,
	}, nil
}

// CreateProject mints a new record, embeds its (possibly empty) source
// context and persists it.
func (s *Service) CreateProject(ctx context.Context, name string, framework project.Framework) (*project.Project, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.CreateProject")
	defer span.End()

	rec, err := project.New(name, framework)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid project")
		return nil, err
	}
	span.SetAttributes(attribute.String("project.id", rec.ID))

	vec, err := s.embedder.Embed(ctx, rec.SourceContext)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return nil, fmt.Errorf("embedding project context: %w", err)
	}
	rec.Embedding = vec

	if err := s.store.Create(ctx, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, err
	}

	s.logger.Info("project created",
		zap.String("id", rec.ID),
		zap.String("framework", string(rec.Framework)))

	return rec, nil
}

// Get returns a single record by id.
func (s *Service) Get(ctx context.Context, id string) (*project.Project, error) {
	return s.store.Get(ctx, id)
}

// List returns up to limit records in storage order.
func (s *Service) List(ctx context.Context, limit int) ([]*project.Project, error) {
	return s.store.List(ctx, limit)
}

// Delete removes a record. Deleting an absent record is a no-op.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// Count reports the number of stored records.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// UpdateContext merges a partial patch into an existing record. When the
// patch changes the source context the record is re-embedded before it is
// persisted; otherwise the stored vector is carried over unchanged.
func (s *Service) UpdateContext(ctx context.Context, id string, patch project.Patch) (*project.Project, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.UpdateContext",
		trace.WithAttributes(attribute.String("project.id", id)))
	defer span.End()

	if err := patch.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid patch")
		return nil, err
	}

	rec, err := s.store.Get(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	contextChanged := patch.Apply(rec)
	if contextChanged {
		vec, err := s.embedder.Embed(ctx, rec.SourceContext)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "embedding failed")
			return nil, fmt.Errorf("re-embedding project context: %w", err)
		}
		rec.Embedding = vec
	}

	if err := s.store.Replace(ctx, id, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "replace failed")
		return nil, err
	}

	s.logger.Info("project updated",
		zap.String("id", id),
		zap.Bool("reembedded", contextChanged))

	return rec, nil
}

// GenerateText produces generated content for a project and moves it to the
// Generated status. An empty instruction falls back to the provider default.
// The operation is idempotent: regenerating an already Generated project
// simply overwrites its content.
func (s *Service) GenerateText(ctx context.Context, id, instruction string) (*project.Project, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.GenerateText",
		trace.WithAttributes(attribute.String("project.id", id)))
	defer span.End()

	rec, err := s.store.Get(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if instruction == "" {
		instruction = generate.DefaultInstruction
	}

	content, err := s.gen.Generate(ctx, rec.Framework, rec.SourceContext, instruction)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return nil, err
	}

	rec.GeneratedContent = content
	rec.Status = project.StatusGenerated

	if err := s.store.Replace(ctx, id, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "replace failed")
		return nil, err
	}

	s.logger.Info("text generated",
		zap.String("id", id),
		zap.Int("content_length", len(content)))

	return rec, nil
}

// GenerateAudio synthesizes speech for a project's generated content and
// stores the resulting asset reference. A project without generated content
// is in the wrong state for this operation. The status is left untouched:
// audio is derived from the content, not a lifecycle step of its own.
func (s *Service) GenerateAudio(ctx context.Context, id string) (*project.Project, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.GenerateAudio",
		trace.WithAttributes(attribute.String("project.id", id)))
	defer span.End()

	rec, err := s.store.Get(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if rec.GeneratedContent == "" {
		err := fmt.Errorf("%w: project %s has no generated content to synthesize", apperr.ErrInvalidState, id)
		span.RecordError(err)
		span.SetStatus(codes.Error, "no generated content")
		return nil, err
	}

	audioURL, err := s.speech.Synthesize(ctx, rec.GeneratedContent, id+".mp3")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesis failed")
		return nil, fmt.Errorf("synthesizing audio: %w", err)
	}

	rec.AudioURL = audioURL

	if err := s.store.Replace(ctx, id, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "replace failed")
		return nil, err
	}

	s.logger.Info("audio generated",
		zap.String("id", id),
		zap.String("audio_url", audioURL))

	return rec, nil
}
