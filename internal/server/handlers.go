// Package server exposes the extraction pipeline and the recipe library over
// HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"RecipeSnap/internal/domain"
	"RecipeSnap/internal/ports"
	"RecipeSnap/internal/usecase"
)

// Extractor is the slice of the pipeline the HTTP layer depends on.
type Extractor interface {
	Extract(ctx context.Context, req usecase.Request) (*domain.PipelineResult, error)
}

// Handlers holds the dependencies behind the HTTP routes.
type Handlers struct {
	pipeline Extractor
	repo     ports.RecipeRepository
	logger   *slog.Logger
	debug    bool
}

// NewHandlers wires route handlers. repo may be nil when persistence is
// disabled; library routes then answer 503.
func NewHandlers(pipeline Extractor, repo ports.RecipeRepository, logger *slog.Logger, debug bool) *Handlers {
	return &Handlers{pipeline: pipeline, repo: repo, logger: logger, debug: debug}
}

type extractRequest struct {
	URL      string  `json:"url" binding:"required"`
	Method   string  `json:"method"`
	Persist  bool    `json:"persist"`
	TagIDs   []int64 `json:"tagIds"`
	FolderID *int64  `json:"folderId"`
}

type nameRequest struct {
	Name string `json:"name" binding:"required"`
}

// Extract runs the full pipeline for one post URL.
func (h *Handlers) Extract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, http.StatusBadRequest, "bad_request", "request body must include a url")
		return
	}

	method, ok := parseMethod(req.Method)
	if !ok {
		h.writeError(c, http.StatusBadRequest, "bad_request", "method must be web_scraping or video_ai")
		return
	}

	result, err := h.pipeline.Extract(c.Request.Context(), usecase.Request{
		URL:         req.URL,
		ForceMethod: method,
		Persist:     req.Persist,
		TagIDs:      req.TagIDs,
		FolderID:    req.FolderID,
	})
	if err != nil {
		h.writePipelineError(c, req.URL, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SearchRecipes lists stored recipes matching optional filters.
func (h *Handlers) SearchRecipes(c *gin.Context) {
	if !h.requireRepo(c) {
		return
	}

	query := ports.SearchQuery{Text: c.Query("q")}

	if raw := c.Query("tagIds"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				h.writeError(c, http.StatusBadRequest, "bad_request", "tagIds must be a comma-separated list of ids")
				return
			}
			query.TagIDs = append(query.TagIDs, id)
		}
	}
	if raw := c.Query("folderId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.writeError(c, http.StatusBadRequest, "bad_request", "folderId must be an id")
			return
		}
		query.FolderID = &id
	}

	recipes, err := h.repo.Search(c.Request.Context(), query)
	if err != nil {
		h.writeStorageError(c, err)
		return
	}
	if recipes == nil {
		recipes = []domain.Recipe{}
	}
	c.JSON(http.StatusOK, gin.H{"recipes": recipes})
}

// GetRecipe loads one stored recipe.
func (h *Handlers) GetRecipe(c *gin.Context) {
	if !h.requireRepo(c) {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	recipe, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		h.writeStorageError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

// DeleteRecipe removes one stored recipe.
func (h *Handlers) DeleteRecipe(c *gin.Context) {
	if !h.requireRepo(c) {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		h.writeStorageError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateTag makes a tag, returning the existing one on a duplicate name.
func (h *Handlers) CreateTag(c *gin.Context) {
	if !h.requireRepo(c) {
		return
	}
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, http.StatusBadRequest, "bad_request", "request body must include a name")
		return
	}

	tag, err := h.repo.CreateTag(c.Request.Context(), req.Name)
	if err != nil {
		h.writeStorageError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tag)
}

// ListTags returns all tags.
func (h *Handlers) ListTags(c *gin.Context) {
	if !h.requireRepo(c) {
		return
	}
	tags, err := h.repo.ListTags(c.Request.Context())
	if err != nil {
		h.writeStorageError(c, err)
		return
	}
	if tags == nil {
		tags = []domain.Tag{}
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

// DeleteTag removes a tag and its links.
func (h *Handlers) DeleteTag(c *gin.Context) {
	if !h.requireRepo(c) {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := h.repo.DeleteTag(c.Request.Context(), id); err != nil {
		h.writeStorageError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateFolder makes a folder, returning the existing one on a duplicate name.
func (h *Handlers) CreateFolder(c *gin.Context) {
	if !h.requireRepo(c) {
		return
	}
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, http.StatusBadRequest, "bad_request", "request body must include a name")
		return
	}

	folder, err := h.repo.CreateFolder(c.Request.Context(), req.Name)
	if err != nil {
		h.writeStorageError(c, err)
		return
	}
	c.JSON(http.StatusCreated, folder)
}

// ListFolders returns all folders.
func (h *Handlers) ListFolders(c *gin.Context) {
	if !h.requireRepo(c) {
		return
	}
	folders, err := h.repo.ListFolders(c.Request.Context())
	if err != nil {
		h.writeStorageError(c, err)
		return
	}
	if folders == nil {
		folders = []domain.Folder{}
	}
	c.JSON(http.StatusOK, gin.H{"folders": folders})
}

// DeleteFolder removes a folder; filed recipes become unfiled.
func (h *Handlers) DeleteFolder(c *gin.Context) {
	if !h.requireRepo(c) {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := h.repo.DeleteFolder(c.Request.Context(), id); err != nil {
		h.writeStorageError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) requireRepo(c *gin.Context) bool {
	if h.repo == nil {
		h.writeError(c, http.StatusServiceUnavailable, "storage_disabled", "recipe storage is not configured")
		return false
	}
	return true
}

func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(c, http.StatusBadRequest, "bad_request", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// writePipelineError maps pipeline failures onto HTTP statuses. Internals stay
// out of responses unless debug mode is on.
func (h *Handlers) writePipelineError(c *gin.Context, url string, err error) {
	if h.logger != nil {
		h.logger.Error("extraction failed", "url", url, "error", err)
	}

	var (
		valErr    domain.ValidationError
		structErr domain.StructuringError
		exhausted domain.PipelineExhausted
		dlErr     domain.DownloadError
	)
	switch {
	case errors.As(err, &valErr):
		h.writeError(c, http.StatusBadRequest, "invalid_url", valErr.Reason)
	case errors.Is(err, context.DeadlineExceeded):
		h.writeError(c, http.StatusGatewayTimeout, "timeout", "extraction did not finish in time")
	case errors.As(err, &structErr) && structErr.RateLimited:
		h.writeError(c, http.StatusTooManyRequests, "rate_limited", "the structuring backend is rate limiting requests")
	case errors.As(err, &exhausted), errors.As(err, &dlErr):
		msg := "no extraction path produced a recipe"
		if h.debug {
			msg = err.Error()
		}
		h.writeError(c, http.StatusBadGateway, "extraction_failed", msg)
	default:
		msg := "internal error"
		if h.debug {
			msg = err.Error()
		}
		h.writeError(c, http.StatusInternalServerError, "internal", msg)
	}
}

func (h *Handlers) writeStorageError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		h.writeError(c, http.StatusNotFound, "not_found", "no such record")
		return
	}
	if h.logger != nil {
		h.logger.Error("storage operation failed", "error", err)
	}
	msg := "internal error"
	if h.debug {
		msg = err.Error()
	}
	h.writeError(c, http.StatusInternalServerError, "internal", msg)
}

func (h *Handlers) writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

func parseMethod(raw string) (domain.ExtractionMethod, bool) {
	switch raw {
	case "":
		return "", true
	case string(domain.MethodWebScraping):
		return domain.MethodWebScraping, true
	case string(domain.MethodVideoAI):
		return domain.MethodVideoAI, true
	default:
		return "", false
	}
}
