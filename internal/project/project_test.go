package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/forged/internal/apperr"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{name: "canonical lowercase", id: "9f8b6c1e-4a2d-4f3b-8c1d-2e3f4a5b6c7d"},
		{name: "canonical uppercase", id: "9F8B6C1E-4A2D-4F3B-8C1D-2E3F4A5B6C7D"},
		{name: "empty", id: "", wantErr: true},
		{name: "unhyphenated hex", id: "9f8b6c1e4a2d4f3b8c1d2e3f4a5b6c7d", wantErr: true},
		{name: "braced form", id: "{9f8b6c1e-4a2d-4f3b-8c1d-2e3f4a5b6c7d}", wantErr: true},
		{name: "wrong grouping", id: "9f8b6c1e-4a2d-4f3b-8c1d2-e3f4a5b6c7d", wantErr: true},
		{name: "non-hex chars", id: "9f8b6c1e-4a2d-4f3b-8c1d-2e3f4a5b6cZZ", wantErr: true},
		{name: "trailing garbage", id: "9f8b6c1e-4a2d-4f3b-8c1d-2e3f4a5b6c7d ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		p, err := New("Q2 Review", FrameworkDeepdive)
		require.NoError(t, err)

		assert.NoError(t, ValidateID(p.ID))
		assert.Equal(t, "Q2 Review", p.Name)
		assert.Equal(t, FrameworkDeepdive, p.Framework)
		assert.Equal(t, StatusNew, p.Status)
		assert.Empty(t, p.SourceContext)
		assert.Empty(t, p.GeneratedContent)
		assert.Empty(t, p.AudioURL)
		assert.False(t, p.CreatedAt.IsZero())
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := New("", FrameworkDeepdive)
		assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	})

	t.Run("unknown framework", func(t *testing.T) {
		_, err := New("a", Framework("PODCAST"))
		assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	})

	t.Run("ids are unique", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			p, err := New("n", FrameworkBenchmark)
			require.NoError(t, err)
			require.False(t, seen[p.ID], "duplicate id %s", p.ID)
			seen[p.ID] = true
		}
	})
}

func TestFrameworkValid(t *testing.T) {
	assert.True(t, FrameworkDeepdive.Valid())
	assert.True(t, FrameworkSynthetic.Valid())
	assert.True(t, FrameworkBenchmark.Valid())
	assert.False(t, Framework("").Valid())
	assert.False(t, Framework("deepdive").Valid())
}

func strPtr(s string) *string { return &s }

func TestPatchApply(t *testing.T) {
	base := func() *Project {
		return &Project{
			ID:            "9f8b6c1e-4a2d-4f3b-8c1d-2e3f4a5b6c7d",
			Name:          "orig",
			Framework:     FrameworkDeepdive,
			SourceContext: "old context",
			Status:        StatusNew,
		}
	}

	t.Run("empty patch preserves everything", func(t *testing.T) {
		rec := base()
		changed := (&Patch{}).Apply(rec)
		assert.False(t, changed)
		assert.Equal(t, base(), rec)
	})

	t.Run("context change is detected", func(t *testing.T) {
		rec := base()
		changed := (&Patch{SourceContext: strPtr("new context")}).Apply(rec)
		assert.True(t, changed)
		assert.Equal(t, "new context", rec.SourceContext)
		assert.Equal(t, "orig", rec.Name)
	})

	t.Run("same context is not a change", func(t *testing.T) {
		rec := base()
		changed := (&Patch{SourceContext: strPtr("old context")}).Apply(rec)
		assert.False(t, changed)
	})

	t.Run("name only", func(t *testing.T) {
		rec := base()
		changed := (&Patch{Name: strPtr("renamed")}).Apply(rec)
		assert.False(t, changed)
		assert.Equal(t, "renamed", rec.Name)
		assert.Equal(t, "old context", rec.SourceContext)
	})
}

func TestPatchValidate(t *testing.T) {
	bad := Framework("NOPE")
	badStatus := StatusInit

	tests := []struct {
		name    string
		patch   Patch
		wantErr bool
	}{
		{name: "empty patch", patch: Patch{}},
		{name: "valid fields", patch: Patch{Name: strPtr("n"), SourceContext: strPtr("ctx")}},
		{name: "empty name", patch: Patch{Name: strPtr("")}, wantErr: true},
		{name: "unknown framework", patch: Patch{Framework: &bad}, wantErr: true},
		{name: "init status not settable", patch: Patch{Status: &badStatus}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.patch.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
