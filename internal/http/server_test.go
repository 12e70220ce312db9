package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/forged/internal/apperr"
	"github.com/fyrsmithlabs/forged/internal/project"
)

// mockOrchestrator implements Orchestrator with overridable behavior per test.
type mockOrchestrator struct {
	createFn        func(ctx context.Context, name string, framework project.Framework) (*project.Project, error)
	getFn           func(ctx context.Context, id string) (*project.Project, error)
	listFn          func(ctx context.Context, limit int) ([]*project.Project, error)
	updateFn        func(ctx context.Context, id string, patch project.Patch) (*project.Project, error)
	deleteFn        func(ctx context.Context, id string) error
	countFn         func(ctx context.Context) (int, error)
	generateTextFn  func(ctx context.Context, id, instruction string) (*project.Project, error)
	generateAudioFn func(ctx context.Context, id string) (*project.Project, error)
}

func (m *mockOrchestrator) CreateProject(ctx context.Context, name string, framework project.Framework) (*project.Project, error) {
	return m.createFn(ctx, name, framework)
}

func (m *mockOrchestrator) Get(ctx context.Context, id string) (*project.Project, error) {
	return m.getFn(ctx, id)
}

func (m *mockOrchestrator) List(ctx context.Context, limit int) ([]*project.Project, error) {
	return m.listFn(ctx, limit)
}

func (m *mockOrchestrator) UpdateContext(ctx context.Context, id string, patch project.Patch) (*project.Project, error) {
	return m.updateFn(ctx, id, patch)
}

func (m *mockOrchestrator) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

func (m *mockOrchestrator) Count(ctx context.Context) (int, error) {
	return m.countFn(ctx)
}

func (m *mockOrchestrator) GenerateText(ctx context.Context, id, instruction string) (*project.Project, error) {
	return m.generateTextFn(ctx, id, instruction)
}

func (m *mockOrchestrator) GenerateAudio(ctx context.Context, id string) (*project.Project, error) {
	return m.generateAudioFn(ctx, id)
}

func newTestServer(t *testing.T, orch Orchestrator) *Server {
	t.Helper()

	srv, err := NewServer(orch, zap.NewNop(), Config{AssetsDir: t.TempDir()})
	require.NoError(t, err)
	return srv
}

func doRequest(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echoHeaderContentType, "application/json")
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

const echoHeaderContentType = "Content-Type"

func sampleProject() *project.Project {
	return &project.Project{
		ID:        "123e4567-e89b-12d3-a456-426614174000",
		Name:      "Q2 Review",
		Framework: project.FrameworkDeepdive,
		Status:    project.StatusNew,
		Embedding: []float32{0.1, 0.2, 0.3},
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &mockOrchestrator{})

	rec := doRequest(srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatus(t *testing.T) {
	orch := &mockOrchestrator{
		countFn: func(ctx context.Context) (int, error) { return 7, nil },
	}
	srv := newTestServer(t, orch)

	rec := doRequest(srv, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","projectCount":7}`, rec.Body.String())
}

func TestCreateProject(t *testing.T) {
	orch := &mockOrchestrator{
		createFn: func(ctx context.Context, name string, framework project.Framework) (*project.Project, error) {
			assert.Equal(t, "Q2 Review", name)
			assert.Equal(t, project.FrameworkDeepdive, framework)
			return sampleProject(), nil
		},
	}
	srv := newTestServer(t, orch)

	rec := doRequest(srv, http.MethodPost, "/api/projects", `{"name":"Q2 Review","framework":"DEEPDIVE"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Q2 Review", got["name"])
	assert.NotContains(t, got, "embeddingVector", "vectors must never appear in responses")
	assert.NotContains(t, got, "Embedding")
}

func TestCreateProjectInvalid(t *testing.T) {
	orch := &mockOrchestrator{
		createFn: func(ctx context.Context, name string, framework project.Framework) (*project.Project, error) {
			return nil, apperr.ErrInvalidArgument
		},
	}
	srv := newTestServer(t, orch)

	rec := doRequest(srv, http.MethodPost, "/api/projects", `{"name":"","framework":"DEEPDIVE"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProjectNotFound(t *testing.T) {
	orch := &mockOrchestrator{
		getFn: func(ctx context.Context, id string) (*project.Project, error) {
			return nil, apperr.ErrNotFound
		},
	}
	srv := newTestServer(t, orch)

	rec := doRequest(srv, http.MethodGet, "/api/projects/123e4567-e89b-12d3-a456-426614174000", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListProjects(t *testing.T) {
	orch := &mockOrchestrator{
		listFn: func(ctx context.Context, limit int) ([]*project.Project, error) {
			assert.Equal(t, 5, limit)
			return []*project.Project{sampleProject()}, nil
		},
	}
	srv := newTestServer(t, orch)

	rec := doRequest(srv, http.MethodGet, "/api/projects?limit=5", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.NotContains(t, got[0], "embeddingVector")
}

func TestListProjectsBadLimit(t *testing.T) {
	srv := newTestServer(t, &mockOrchestrator{})

	rec := doRequest(srv, http.MethodGet, "/api/projects?limit=banana", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(srv, http.MethodGet, "/api/projects?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateProject(t *testing.T) {
	orch := &mockOrchestrator{
		updateFn: func(ctx context.Context, id string, patch project.Patch) (*project.Project, error) {
			require.NotNil(t, patch.SourceContext)
			assert.Equal(t, "fresh context", *patch.SourceContext)
			assert.Nil(t, patch.Name)
			rec := sampleProject()
			rec.SourceContext = *patch.SourceContext
			return rec, nil
		},
	}
	srv := newTestServer(t, orch)

	rec := doRequest(srv, http.MethodPut, "/api/projects/123e4567-e89b-12d3-a456-426614174000",
		`{"sourceContext":"fresh context"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteProject(t *testing.T) {
	deleted := ""
	orch := &mockOrchestrator{
		deleteFn: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	srv := newTestServer(t, orch)

	rec := doRequest(srv, http.MethodDelete, "/api/projects/123e4567-e89b-12d3-a456-426614174000", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "123e4567-e89b-12d3-a456-426614174000", deleted)
}

func TestGenerate(t *testing.T) {
	orch := &mockOrchestrator{
		generateTextFn: func(ctx context.Context, id, instruction string) (*project.Project, error) {
			assert.Equal(t, "focus on churn", instruction)
			rec := sampleProject()
			rec.Status = project.StatusGenerated
			rec.GeneratedContent = "# Executive Summary"
			return rec, nil
		},
	}
	srv := newTestServer(t, orch)

	rec := doRequest(srv, http.MethodPost, "/api/generate",
		`{"projectId":"123e4567-e89b-12d3-a456-426614174000","prompt":"focus on churn"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Generated", got["status"])
}

func TestGenerateMissingProjectID(t *testing.T) {
	srv := newTestServer(t, &mockOrchestrator{})

	rec := doRequest(srv, http.MethodPost, "/api/generate", `{"prompt":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateAudioInvalidState(t *testing.T) {
	orch := &mockOrchestrator{
		generateAudioFn: func(ctx context.Context, id string) (*project.Project, error) {
			return nil, apperr.ErrInvalidState
		},
	}
	srv := newTestServer(t, orch)

	rec := doRequest(srv, http.MethodPost, "/api/generate-audio",
		`{"projectId":"123e4567-e89b-12d3-a456-426614174000"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDuplicateKeyMapsToConflict(t *testing.T) {
	orch := &mockOrchestrator{
		createFn: func(ctx context.Context, name string, framework project.Framework) (*project.Project, error) {
			return nil, apperr.ErrDuplicateKey
		},
	}
	srv := newTestServer(t, orch)

	rec := doRequest(srv, http.MethodPost, "/api/projects", `{"name":"a","framework":"DEEPDIVE"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUnknownErrorIsOpaque(t *testing.T) {
	orch := &mockOrchestrator{
		getFn: func(ctx context.Context, id string) (*project.Project, error) {
			return nil, errors.New("chromem exploded: /var/data/projects.db corrupt")
		},
	}
	srv := newTestServer(t, orch)

	rec := doRequest(srv, http.MethodGet, "/api/projects/123e4567-e89b-12d3-a456-426614174000", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &mockOrchestrator{})

	// A request has to land before the labeled counters exist.
	doRequest(srv, http.MethodGet, "/health", "")

	rec := doRequest(srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "forged_http_requests_total")
}
