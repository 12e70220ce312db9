// Package project defines the Project record, its lifecycle enums, and the
// partial-update merge used by the orchestrator.
package project

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/forged/internal/apperr"
)

// Framework is the generation mode fixed at project creation. It selects the
// prompt shape for live generation and the template for synthetic fallback.
type Framework string

const (
	FrameworkDeepdive  Framework = "DEEPDIVE"
	FrameworkSynthetic Framework = "SYNTHETIC"
	FrameworkBenchmark Framework = "BENCHMARK"
)

// Valid reports whether f is one of the three known framework values.
func (f Framework) Valid() bool {
	switch f {
	case FrameworkDeepdive, FrameworkSynthetic, FrameworkBenchmark:
		return true
	}
	return false
}

// Status is the monotonic lifecycle marker for a project.
//
// StatusInit is a store-internal placeholder used only for the startup
// round-trip check; it is never visible to API callers. Projects are created
// as StatusNew and move to StatusGenerated on the first successful text
// generation. There is no transition back. Audio generation does not change
// status (open product question, preserved as-is).
type Status string

const (
	StatusInit      Status = "Init"
	StatusNew       Status = "New"
	StatusGenerated Status = "Generated"
)

// idPattern matches the canonical 36-character hyphenated hexadecimal
// identifier form (8-4-4-4-12 groups), case-insensitive.
var idPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ValidateID checks that id is in canonical form. Malformed identifiers fail
// fast with ErrInvalidArgument before any storage query is made.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: malformed project id %q", apperr.ErrInvalidArgument, id)
	}
	return nil
}

// Project is the persisted unit of work: a source context paired with
// AI-generated derivative content and its embedding vector.
//
// Embedding is deliberately excluded from JSON: the boundary contract omits
// the vector from every API payload.
type Project struct {
	// ID is the opaque unique identifier, generated at creation, immutable.
	ID string `json:"id"`

	// Name is the display label, required at creation.
	Name string `json:"name"`

	// Framework selects generation behavior, fixed at creation.
	Framework Framework `json:"framework"`

	// SourceContext is the free-text input. Changing it is the sole trigger
	// for re-embedding.
	SourceContext string `json:"sourceContext"`

	// GeneratedContent holds the output of the last successful text
	// generation; empty until the first generation.
	GeneratedContent string `json:"generatedContent"`

	// AudioURL references the synthesized audio asset; empty until the first
	// audio synthesis.
	AudioURL string `json:"audioUrl"`

	// Embedding is the fixed-dimension vector for SourceContext. It is
	// recomputed before every write that changes the context and is never
	// user-editable.
	Embedding []float32 `json:"-"`

	// Status is the lifecycle marker.
	Status Status `json:"status"`

	// CreatedAt is fixed at creation.
	CreatedAt time.Time `json:"createdAt"`
}

// New creates a project in its initial state with a freshly minted id.
// The embedding is left nil; the caller embeds the (empty) source context
// before persisting.
func New(name string, framework Framework) (*Project, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", apperr.ErrInvalidArgument)
	}
	if !framework.Valid() {
		return nil, fmt.Errorf("%w: unknown framework %q", apperr.ErrInvalidArgument, framework)
	}

	return &Project{
		ID:        uuid.New().String(),
		Name:      name,
		Framework: framework,
		Status:    StatusNew,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Patch is a partial field set for updates. Nil fields are preserved from the
// current record. The id and embedding vector are not patchable: the id is
// immutable and the vector is derived state owned by the orchestrator.
type Patch struct {
	Name             *string    `json:"name"`
	Framework        *Framework `json:"framework"`
	SourceContext    *string    `json:"sourceContext"`
	GeneratedContent *string    `json:"generatedContent"`
	AudioURL         *string    `json:"audioUrl"`
	Status           *Status    `json:"status"`
}

// Validate checks that the supplied fields carry acceptable values.
func (p *Patch) Validate() error {
	if p.Name != nil && *p.Name == "" {
		return fmt.Errorf("%w: project name cannot be empty", apperr.ErrInvalidArgument)
	}
	if p.Framework != nil && !p.Framework.Valid() {
		return fmt.Errorf("%w: unknown framework %q", apperr.ErrInvalidArgument, *p.Framework)
	}
	if p.Status != nil && *p.Status != StatusNew && *p.Status != StatusGenerated {
		return fmt.Errorf("%w: unknown status %q", apperr.ErrInvalidArgument, *p.Status)
	}
	return nil
}

// Apply merges the patch into rec and reports whether SourceContext changed,
// which is the caller's signal to re-embed before persisting.
func (p *Patch) Apply(rec *Project) (contextChanged bool) {
	if p.Name != nil {
		rec.Name = *p.Name
	}
	if p.Framework != nil {
		rec.Framework = *p.Framework
	}
	if p.SourceContext != nil && *p.SourceContext != rec.SourceContext {
		rec.SourceContext = *p.SourceContext
		contextChanged = true
	}
	if p.GeneratedContent != nil {
		rec.GeneratedContent = *p.GeneratedContent
	}
	if p.AudioURL != nil {
		rec.AudioURL = *p.AudioURL
	}
	if p.Status != nil {
		rec.Status = *p.Status
	}
	return contextChanged
}
