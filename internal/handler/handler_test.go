package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/coachrag/internal/ai"
	"github.com/xxxsen/coachrag/internal/filestore"
	"github.com/xxxsen/coachrag/internal/handler"
	"github.com/xxxsen/coachrag/internal/model"
	"github.com/xxxsen/coachrag/internal/pkg/errcode"
	appErr "github.com/xxxsen/coachrag/internal/pkg/errors"
	"github.com/xxxsen/coachrag/internal/pkg/jwt"
	"github.com/xxxsen/coachrag/internal/service"
)

var testSecret = []byte("test-secret")

type fakeSearcher struct {
	last service.SearchRequest
	resp *service.SearchResponse
	err  error
}

func (f *fakeSearcher) Search(_ context.Context, req service.SearchRequest) (*service.SearchResponse, error) {
	f.last = req
	return f.resp, f.err
}

type fakeIngester struct {
	doc  service.IngestDocument
	opts service.IngestOptions
	err  error
}

func (f *fakeIngester) Ingest(_ context.Context, doc service.IngestDocument, opts service.IngestOptions, _ ai.ProgressObserver) (*service.IngestResult, error) {
	f.doc = doc
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return &service.IngestResult{SourceID: "src-1", ProcessedCount: 2, Status: model.SourceStatusCompleted, Finalized: true}, nil
}

type fakeSources struct{}

func (fakeSources) GetByID(_ context.Context, id string) (*model.DocumentSource, error) {
	if id != "src-1" {
		return nil, appErr.ErrNotFound
	}
	return &model.DocumentSource{ID: id, Title: "Keto", Status: model.SourceStatusCompleted}, nil
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type fixture struct {
	router   http.Handler
	searcher *fakeSearcher
	ingester *fakeIngester
}

func setupRouter(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "paleo.md"), []byte("# Paleo Guide\n\nEat like a hunter."), 0o644))
	store, err := filestore.NewLocalStore(dir)
	require.NoError(t, err)

	f := &fixture{searcher: &fakeSearcher{}, ingester: &fakeIngester{}}
	deps := handler.RouterDeps{
		Search:    handler.NewSearchHandler(f.searcher),
		Ingest:    handler.NewIngestHandler(f.ingester, service.NewCoachGroups(nil), store),
		Sources:   handler.NewSourceHandler(fakeSources{}),
		JWTSecret: testSecret,
	}
	engine := gin.New()
	handler.RegisterRoutes(engine.Group("/api/v1"), deps)
	f.router = engine
	return f
}

func token(t *testing.T, role, tier string) string {
	t.Helper()
	tok, err := jwt.GenerateToken("user-1", "coach@example.com", role, tier, testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(t *testing.T, method, path, tok string, body interface{}) envelope {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	return env
}

func TestSearchRequiresAuth(t *testing.T) {
	f := setupRouter(t)
	env := f.do(t, http.MethodPost, "/api/v1/search", "", map[string]string{"query": "q", "coach_id": "keto"})
	require.Equal(t, errcode.ErrUnauthorized, env.Code)
}

func TestSearchUsesTokenTier(t *testing.T) {
	f := setupRouter(t)
	f.searcher.resp = &service.SearchResponse{
		Results:  []model.SearchResult{{ChunkID: "c1", Degraded: true}},
		Degraded: true,
	}
	env := f.do(t, http.MethodPost, "/api/v1/search", token(t, jwt.RoleAuthenticated, "premium"),
		map[string]string{"query": "fat adaptation", "coach_id": "keto", "tier": "pro"})
	require.Zero(t, env.Code)
	require.Equal(t, model.AccessTierPremium, f.searcher.last.Tier)
	require.Equal(t, "keto", f.searcher.last.CoachID)

	var data service.SearchResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.True(t, data.Degraded)
	require.True(t, data.Results[0].Degraded)

	f.do(t, http.MethodPost, "/api/v1/search", token(t, jwt.RoleAuthenticated, "premium"),
		map[string]string{"query": "q", "coach_id": "keto", "tier": "free"})
	require.Equal(t, model.AccessTierFree, f.searcher.last.Tier)
}

func TestSearchMapsErrors(t *testing.T) {
	f := setupRouter(t)
	f.searcher.err = appErr.ErrEmptyQuery
	env := f.do(t, http.MethodPost, "/api/v1/search", token(t, jwt.RoleAuthenticated, ""), map[string]string{"coach_id": "keto"})
	require.Equal(t, errcode.ErrEmptyQuery, env.Code)
}

func TestIngestRequiresServiceRole(t *testing.T) {
	f := setupRouter(t)
	env := f.do(t, http.MethodPost, "/api/v1/ingest", token(t, jwt.RoleAuthenticated, "pro"),
		map[string]interface{}{"title": "t", "content": "c.", "tier": "free", "coaches": []string{"keto"}})
	require.Equal(t, errcode.ErrForbidden, env.Code)
}

func TestIngestInline(t *testing.T) {
	f := setupRouter(t)
	env := f.do(t, http.MethodPost, "/api/v1/ingest", token(t, jwt.RoleService, ""), map[string]interface{}{
		"title":   "Diet Overview",
		"content": "Eat food. Mostly plants.",
		"tier":    "premium",
		"coaches": []string{"all-diet"},
	})
	require.Zero(t, env.Code)
	require.Len(t, f.ingester.opts.Coaches, 8)
	require.Equal(t, model.AccessTierPremium, f.ingester.opts.Tier)
	require.Equal(t, "Diet Overview", f.ingester.doc.Title)

	var res service.IngestResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.Equal(t, "src-1", res.SourceID)
	require.Equal(t, 2, res.ProcessedCount)
}

func TestIngestFromFileStore(t *testing.T) {
	f := setupRouter(t)
	env := f.do(t, http.MethodPost, "/api/v1/ingest", token(t, jwt.RoleService, ""), map[string]interface{}{
		"file_key": "paleo.md",
		"tier":     "free",
		"coaches":  []string{"paleo"},
	})
	require.Zero(t, env.Code)
	require.Equal(t, "Paleo Guide", f.ingester.doc.Title)
	require.Equal(t, "md", f.ingester.doc.SourceType)
	require.Contains(t, f.ingester.doc.Content, "Eat like a hunter.")

	env = f.do(t, http.MethodPost, "/api/v1/ingest", token(t, jwt.RoleService, ""), map[string]interface{}{
		"file_key": "../secret.md",
		"tier":     "free",
		"coaches":  []string{"paleo"},
	})
	require.Equal(t, errcode.ErrInvalid, env.Code)
}

func TestIngestValidation(t *testing.T) {
	f := setupRouter(t)
	tok := token(t, jwt.RoleService, "")
	env := f.do(t, http.MethodPost, "/api/v1/ingest", tok, map[string]interface{}{"title": "t", "content": "c.", "tier": "gold", "coaches": []string{"keto"}})
	require.Equal(t, errcode.ErrInvalid, env.Code)
	env = f.do(t, http.MethodPost, "/api/v1/ingest", tok, map[string]interface{}{"title": "t", "content": "c.", "tier": "free"})
	require.Equal(t, errcode.ErrInvalid, env.Code)

	f.ingester.err = appErr.ErrPersistence
	env = f.do(t, http.MethodPost, "/api/v1/ingest", tok, map[string]interface{}{"title": "t", "content": "c.", "tier": "free", "coaches": []string{"keto"}})
	require.Equal(t, errcode.ErrPersistence, env.Code)
}

func TestGetSource(t *testing.T) {
	f := setupRouter(t)
	tok := token(t, jwt.RoleService, "")
	env := f.do(t, http.MethodGet, "/api/v1/sources/src-1", tok, nil)
	require.Zero(t, env.Code)
	var src model.DocumentSource
	require.NoError(t, json.Unmarshal(env.Data, &src))
	require.Equal(t, model.SourceStatusCompleted, src.Status)

	env = f.do(t, http.MethodGet, "/api/v1/sources/missing", tok, nil)
	require.Equal(t, errcode.ErrNotFound, env.Code)
}
