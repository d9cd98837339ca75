package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"RecipeSnap/internal/config"
	"RecipeSnap/internal/domain"
	"RecipeSnap/internal/ports"
	"RecipeSnap/internal/usecase"
)

type stubExtractor struct {
	lastReq usecase.Request
	result  *domain.PipelineResult
	err     error
}

func (s *stubExtractor) Extract(_ context.Context, req usecase.Request) (*domain.PipelineResult, error) {
	s.lastReq = req
	return s.result, s.err
}

type stubRepo struct {
	ports.RecipeRepository

	recipes   map[int64]domain.Recipe
	lastQuery ports.SearchQuery
	deleted   []int64
}

func (s *stubRepo) Search(_ context.Context, query ports.SearchQuery) ([]domain.Recipe, error) {
	s.lastQuery = query
	var out []domain.Recipe
	for _, recipe := range s.recipes {
		out = append(out, recipe)
	}
	return out, nil
}

func (s *stubRepo) Get(_ context.Context, id int64) (domain.Recipe, error) {
	recipe, ok := s.recipes[id]
	if !ok {
		return domain.Recipe{}, domain.ErrNotFound
	}
	return recipe, nil
}

func (s *stubRepo) Delete(_ context.Context, id int64) error {
	if _, ok := s.recipes[id]; !ok {
		return domain.ErrNotFound
	}
	s.deleted = append(s.deleted, id)
	delete(s.recipes, id)
	return nil
}

func (s *stubRepo) CreateTag(_ context.Context, name string) (domain.Tag, error) {
	return domain.Tag{ID: 7, Name: name}, nil
}

func (s *stubRepo) ListTags(_ context.Context) ([]domain.Tag, error) {
	return nil, nil
}

func newTestServer(extractor Extractor, repo ports.RecipeRepository, debug bool) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handlers := NewHandlers(extractor, repo, logger, debug)
	s := New(config.ServerConfig{Addr: ":0", Debug: debug}, handlers, nil, logger)
	return s.srv.Handler
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestExtractSuccess(t *testing.T) {
	extractor := &stubExtractor{
		result: &domain.PipelineResult{
			Recipe: domain.Recipe{Title: "Ramen", Steps: []string{"boil broth"}},
			Method: domain.MethodWebScraping,
			Usage:  domain.UsageMetrics{PromptTokens: 900, CandidatesTokens: 100, TotalTokens: 1000, CostEUR: 0.0002},
		},
	}
	handler := newTestServer(extractor, nil, false)

	folderID := int64(3)
	rec := doJSON(t, handler, http.MethodPost, "/api/extract", map[string]any{
		"url":      "https://www.instagram.com/p/abc/",
		"persist":  true,
		"tagIds":   []int64{1, 2},
		"folderId": folderID,
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var got domain.PipelineResult
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Method != domain.MethodWebScraping || got.Usage.TotalTokens != 1000 {
		t.Errorf("result = %+v", got)
	}

	if !extractor.lastReq.Persist || len(extractor.lastReq.TagIDs) != 2 {
		t.Errorf("request not forwarded: %+v", extractor.lastReq)
	}
	if extractor.lastReq.FolderID == nil || *extractor.lastReq.FolderID != folderID {
		t.Errorf("folderId not forwarded: %+v", extractor.lastReq.FolderID)
	}
}

func TestExtractForcedMethodForwarded(t *testing.T) {
	extractor := &stubExtractor{result: &domain.PipelineResult{Method: domain.MethodVideoAI}}
	handler := newTestServer(extractor, nil, false)

	rec := doJSON(t, handler, http.MethodPost, "/api/extract", map[string]any{
		"url":    "https://www.tiktok.com/@u/video/1",
		"method": "video_ai",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if extractor.lastReq.ForceMethod != domain.MethodVideoAI {
		t.Errorf("forceMethod = %q", extractor.lastReq.ForceMethod)
	}
}

func TestExtractRejectsBadInput(t *testing.T) {
	handler := newTestServer(&stubExtractor{}, nil, false)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing url", map[string]any{"persist": true}},
		{"unknown method", map[string]any{"url": "https://x.com/p/1", "method": "telepathy"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, "/api/extract", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestExtractErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", domain.ValidationError{Reason: "host is not public"}, http.StatusBadRequest},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"rate limited", domain.StructuringError{RateLimited: true, Err: errors.New("quota")}, http.StatusTooManyRequests},
		{"exhausted", domain.PipelineExhausted{Err: errors.New("fetch failed")}, http.StatusBadGateway},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestServer(&stubExtractor{err: tc.err}, nil, false)
			rec := doJSON(t, handler, http.MethodPost, "/api/extract", map[string]any{"url": "https://www.instagram.com/p/abc/"})
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestExtractHidesInternalsWithoutDebug(t *testing.T) {
	handler := newTestServer(&stubExtractor{err: errors.New("pq: connection refused")}, nil, false)

	rec := doJSON(t, handler, http.MethodPost, "/api/extract", map[string]any{"url": "https://www.instagram.com/p/abc/"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("connection refused")) {
		t.Error("response leaked internal error detail")
	}
}

func TestSearchRecipesParsesFilters(t *testing.T) {
	repo := &stubRepo{recipes: map[int64]domain.Recipe{1: {ID: 1, Title: "Pho"}}}
	handler := newTestServer(&stubExtractor{}, repo, false)

	rec := doJSON(t, handler, http.MethodGet, "/api/recipes?q=pho&tagIds=1,2&folderId=5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	if repo.lastQuery.Text != "pho" {
		t.Errorf("text = %q", repo.lastQuery.Text)
	}
	if len(repo.lastQuery.TagIDs) != 2 {
		t.Errorf("tagIds = %v", repo.lastQuery.TagIDs)
	}
	if repo.lastQuery.FolderID == nil || *repo.lastQuery.FolderID != 5 {
		t.Errorf("folderId = %v", repo.lastQuery.FolderID)
	}
}

func TestSearchRecipesRejectsBadTagFilter(t *testing.T) {
	repo := &stubRepo{}
	handler := newTestServer(&stubExtractor{}, repo, false)

	rec := doJSON(t, handler, http.MethodGet, "/api/recipes?tagIds=1,x", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetRecipeNotFound(t *testing.T) {
	repo := &stubRepo{recipes: map[int64]domain.Recipe{}}
	handler := newTestServer(&stubExtractor{}, repo, false)

	rec := doJSON(t, handler, http.MethodGet, "/api/recipes/42", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestDeleteRecipe(t *testing.T) {
	repo := &stubRepo{recipes: map[int64]domain.Recipe{9: {ID: 9}}}
	handler := newTestServer(&stubExtractor{}, repo, false)

	rec := doJSON(t, handler, http.MethodDelete, "/api/recipes/9", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != 9 {
		t.Errorf("deleted = %v", repo.deleted)
	}
}

func TestLibraryRoutesWithoutStorage(t *testing.T) {
	handler := newTestServer(&stubExtractor{}, nil, false)

	rec := doJSON(t, handler, http.MethodGet, "/api/recipes", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestCreateTag(t *testing.T) {
	repo := &stubRepo{}
	handler := newTestServer(&stubExtractor{}, repo, false)

	rec := doJSON(t, handler, http.MethodPost, "/api/tags", map[string]any{"name": "dessert"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var tag domain.Tag
	if err := json.Unmarshal(rec.Body.Bytes(), &tag); err != nil {
		t.Fatal(err)
	}
	if tag.Name != "dessert" {
		t.Errorf("name = %q", tag.Name)
	}
}

func TestHealthz(t *testing.T) {
	handler := newTestServer(&stubExtractor{}, nil, false)

	rec := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
