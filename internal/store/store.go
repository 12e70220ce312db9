// Package store persists Project records in an embedded vector database.
//
// chromem-go serves as a keyed document table with an attached (currently
// unqueried) similarity field. The underlying store has no in-place update,
// so Replace is implemented as delete-then-insert. That sequence is not
// atomic: a crash between the two halves loses the record, and a concurrent
// reader can observe a transient gap. An in-process per-id mutex serializes
// writers, which narrows but does not close the window.
package store

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/forged/internal/apperr"
	"github.com/fyrsmithlabs/forged/internal/project"
)

// tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("forged.store")

// collectionName is the single chromem collection holding all projects.
const collectionName = "projects"

// placeholderID is the zero identifier used for the startup round-trip check.
// A record with this id exists only inside NewProjectStore.
const placeholderID = "00000000-0000-0000-0000-000000000000"

// DefaultListLimit bounds List when the caller passes no limit.
const DefaultListLimit = 100

// replaceHook, when set, runs between the delete and insert halves of
// Replace. Tests use it to simulate a crash in the window where no record
// exists for the id.
var replaceHook func(id string) error

// Config holds configuration for the project store.
type Config struct {
	// Path is the directory for persistent storage. Empty selects a purely
	// in-memory database (used by tests).
	Path string

	// Compress enables gzip compression for persisted data.
	Compress bool

	// VectorSize is the embedding dimension, fixed at store initialization.
	// Every persisted vector must have exactly this many elements.
	// Default: 384.
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", apperr.ErrInvalidArgument)
	}
	return nil
}

// ProjectStore is the sole owner of persisted project state. All mutation
// passes through it.
type ProjectStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	config     Config
	logger     *zap.Logger

	// locks holds one *sync.Mutex per project id, guarding the
	// delete-then-insert sequence in Replace.
	locks sync.Map
}

// NewProjectStore opens (or creates) the projects collection and verifies it
// round-trips a record before returning. Initialization is blocking: no
// operation is served until it completes.
func NewProjectStore(ctx context.Context, cfg Config, logger *zap.Logger) (*ProjectStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var (
		db  *chromem.DB
		err error
	)
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", cfg.Path, err)
		}
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
	}

	// All embeddings are computed upstream and supplied explicitly; the
	// collection must never embed on its own.
	noEmbed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("store does not embed; vectors must be precomputed")
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", collectionName, err)
	}

	s := &ProjectStore{
		db:         db,
		collection: collection,
		config:     cfg,
		logger:     logger,
	}

	if err := s.verifyRoundTrip(ctx); err != nil {
		return nil, fmt.Errorf("store self-check failed: %w", err)
	}

	logger.Info("project store initialized",
		zap.String("path", cfg.Path),
		zap.Bool("compress", cfg.Compress),
		zap.Int("vector_size", cfg.VectorSize),
		zap.Int("count", collection.Count()),
	)

	return s, nil
}

// verifyRoundTrip writes and immediately deletes an Init-status placeholder
// record to prove the collection accepts the configured vector size before
// the first request is served.
func (s *ProjectStore) verifyRoundTrip(ctx context.Context) error {
	placeholder := &project.Project{
		ID:        placeholderID,
		Name:      "placeholder",
		Framework: "None",
		Status:    project.StatusInit,
		Embedding: s.probeVector(),
		CreatedAt: time.Now().UTC(),
	}

	doc, err := s.docFromProject(placeholder)
	if err != nil {
		return err
	}
	if err := s.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("inserting placeholder: %w", err)
	}
	if _, err := s.collection.GetByID(ctx, placeholderID); err != nil {
		return fmt.Errorf("reading placeholder back: %w", err)
	}
	if err := s.collection.Delete(ctx, nil, nil, placeholderID); err != nil {
		return fmt.Errorf("deleting placeholder: %w", err)
	}
	return nil
}

// Create inserts a new record. The id is minted by the caller; Create fails
// with ErrDuplicateKey if it already exists. This should not occur with
// generated identifiers but is checked regardless.
func (s *ProjectStore) Create(ctx context.Context, rec *project.Project) error {
	ctx, span := tracer.Start(ctx, "ProjectStore.Create")
	defer span.End()
	span.SetAttributes(attribute.String("project_id", rec.ID))

	if err := project.ValidateID(rec.ID); err != nil {
		return err
	}

	if _, err := s.collection.GetByID(ctx, rec.ID); err == nil {
		span.SetStatus(codes.Error, "duplicate key")
		return fmt.Errorf("%w: project %s already exists", apperr.ErrDuplicateKey, rec.ID)
	}

	doc, err := s.docFromProject(rec)
	if err != nil {
		return err
	}

	if err := s.collection.AddDocument(ctx, doc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: inserting project %s: %v", apperr.ErrStoreUnavailable, rec.ID, err)
	}

	s.logger.Debug("project created",
		zap.String("project_id", rec.ID),
		zap.String("name", rec.Name),
	)
	return nil
}

// Get returns the record for id or ErrNotFound. Malformed identifiers fail
// fast with ErrInvalidArgument without reaching storage.
func (s *ProjectStore) Get(ctx context.Context, id string) (*project.Project, error) {
	ctx, span := tracer.Start(ctx, "ProjectStore.Get")
	defer span.End()
	span.SetAttributes(attribute.String("project_id", id))

	if err := project.ValidateID(id); err != nil {
		return nil, err
	}

	doc, err := s.collection.GetByID(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, "not found")
		return nil, fmt.Errorf("%w: project %s", apperr.ErrNotFound, id)
	}

	return s.projectFromDoc(doc)
}

// List returns up to limit records in storage-defined order. Callers must not
// rely on any ordering: records come back ranked by similarity to a constant
// probe vector, which is an implementation accident, not a contract.
func (s *ProjectStore) List(ctx context.Context, limit int) ([]*project.Project, error) {
	ctx, span := tracer.Start(ctx, "ProjectStore.List")
	defer span.End()

	if limit <= 0 {
		limit = DefaultListLimit
	}

	// chromem requires nResults <= document count.
	count := s.collection.Count()
	if count == 0 {
		return []*project.Project{}, nil
	}
	k := min(limit, count)
	span.SetAttributes(attribute.Int("k", k))

	results, err := s.collection.QueryEmbedding(ctx, s.probeVector(), k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: listing projects: %v", apperr.ErrStoreUnavailable, err)
	}

	records := make([]*project.Project, 0, len(results))
	for _, r := range results {
		rec, err := s.projectFromDoc(chromem.Document{
			ID:        r.ID,
			Metadata:  r.Metadata,
			Embedding: r.Embedding,
			Content:   r.Content,
		})
		if err != nil {
			s.logger.Warn("skipping undecodable record",
				zap.String("project_id", r.ID),
				zap.Error(err))
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// Replace is the only mutation primitive: it deletes every record for id and
// inserts rec in its place. The two halves are not atomic. A crash after the
// delete loses the record; this gap is documented behavior, not masked.
// In-process writers for the same id are serialized by a per-id mutex.
func (s *ProjectStore) Replace(ctx context.Context, id string, rec *project.Project) error {
	ctx, span := tracer.Start(ctx, "ProjectStore.Replace")
	defer span.End()
	span.SetAttributes(attribute.String("project_id", id))

	if err := project.ValidateID(id); err != nil {
		return err
	}
	if rec.ID != id {
		return fmt.Errorf("%w: replacement record id %q does not match %q",
			apperr.ErrInvalidArgument, rec.ID, id)
	}

	doc, err := s.docFromProject(rec)
	if err != nil {
		return err
	}

	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	if err := s.collection.Delete(ctx, nil, nil, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: deleting project %s: %v", apperr.ErrStoreUnavailable, id, err)
	}

	if replaceHook != nil {
		if err := replaceHook(id); err != nil {
			span.SetStatus(codes.Error, "replace interrupted")
			return fmt.Errorf("%w: replacing project %s: %v", apperr.ErrStoreUnavailable, id, err)
		}
	}

	if err := s.collection.AddDocument(ctx, doc); err != nil {
		// The delete already landed: the record is gone.
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed after delete")
		s.logger.Error("replace insert failed after delete, record lost",
			zap.String("project_id", id),
			zap.Error(err))
		return fmt.Errorf("%w: reinserting project %s: %v", apperr.ErrStoreUnavailable, id, err)
	}

	s.logger.Debug("project replaced", zap.String("project_id", id))
	return nil
}

// Delete removes the record for id. Deleting a nonexistent id is not an
// error.
func (s *ProjectStore) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "ProjectStore.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("project_id", id))

	if err := project.ValidateID(id); err != nil {
		return err
	}

	if err := s.collection.Delete(ctx, nil, nil, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: deleting project %s: %v", apperr.ErrStoreUnavailable, id, err)
	}

	s.logger.Debug("project deleted", zap.String("project_id", id))
	return nil
}

// Count returns the number of stored records.
func (s *ProjectStore) Count(ctx context.Context) (int, error) {
	_, span := tracer.Start(ctx, "ProjectStore.Count")
	defer span.End()
	return s.collection.Count(), nil
}

// lockFor returns the mutex guarding Replace for a given id.
func (s *ProjectStore) lockFor(id string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// probeVector is the constant unit vector used for listing and the startup
// self-check.
func (s *ProjectStore) probeVector() []float32 {
	vec := make([]float32, s.config.VectorSize)
	v := float32(1.0 / math.Sqrt(float64(s.config.VectorSize)))
	for i := range vec {
		vec[i] = v
	}
	return vec
}

// docFromProject flattens a record into a chromem document. The vector is
// normalized to a plain finite []float32 of exactly the configured dimension
// before every write.
func (s *ProjectStore) docFromProject(rec *project.Project) (chromem.Document, error) {
	vec, err := s.ensureVector(rec.Embedding)
	if err != nil {
		return chromem.Document{}, fmt.Errorf("project %s: %w", rec.ID, err)
	}

	return chromem.Document{
		ID:        rec.ID,
		Content:   rec.SourceContext,
		Embedding: vec,
		Metadata: map[string]string{
			"name":             rec.Name,
			"framework":        string(rec.Framework),
			"status":           string(rec.Status),
			"generatedContent": rec.GeneratedContent,
			"audioUrl":         rec.AudioURL,
			"createdAt":        rec.CreatedAt.Format(time.RFC3339Nano),
		},
	}, nil
}

// projectFromDoc rebuilds a record from a chromem document.
func (s *ProjectStore) projectFromDoc(doc chromem.Document) (*project.Project, error) {
	rec := &project.Project{
		ID:               doc.ID,
		SourceContext:    doc.Content,
		Name:             doc.Metadata["name"],
		Framework:        project.Framework(doc.Metadata["framework"]),
		Status:           project.Status(doc.Metadata["status"]),
		GeneratedContent: doc.Metadata["generatedContent"],
		AudioURL:         doc.Metadata["audioUrl"],
	}

	if raw := doc.Metadata["createdAt"]; raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("project %s: parsing createdAt: %w", doc.ID, err)
		}
		rec.CreatedAt = t
	}

	rec.Embedding = make([]float32, len(doc.Embedding))
	copy(rec.Embedding, doc.Embedding)

	return rec, nil
}

// ensureVector copies vec into a fresh slice, rejecting wrong dimensions and
// non-finite values. The record never shares backing storage with the caller.
func (s *ProjectStore) ensureVector(vec []float32) ([]float32, error) {
	if len(vec) != s.config.VectorSize {
		return nil, fmt.Errorf("%w: embedding has %d elements, store requires %d",
			apperr.ErrInvalidArgument, len(vec), s.config.VectorSize)
	}

	out := make([]float32, len(vec))
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: embedding element %d is not finite",
				apperr.ErrInvalidArgument, i)
		}
		out[i] = v
	}
	return out, nil
}
