package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"RecipeSnap/internal/domain"
	"RecipeSnap/internal/metrics"
	"RecipeSnap/internal/ports"
)

// Stage names the pipeline states. One request walks
// Queued → Scraping → StructuringWeb → Evaluating → Done, detouring through
// Downloading → StructuringVideo → Selecting when the web path comes back
// incomplete or failed.
type Stage string

const (
	StageQueued           Stage = "queued"
	StageScraping         Stage = "scraping"
	StageStructuringWeb   Stage = "structuring_web"
	StageEvaluating       Stage = "evaluating"
	StageDownloading      Stage = "downloading"
	StageStructuringVideo Stage = "structuring_video"
	StageSelecting        Stage = "selecting"
	StageDone             Stage = "done"
	StageFailed           Stage = "failed"
)

// Request carries one extraction order through the pipeline.
type Request struct {
	URL string
	// ForceMethod skips the cascade and pins a single extraction path.
	// Empty means the normal web-first fallback policy.
	ForceMethod domain.ExtractionMethod
	Persist     bool
	TagIDs      []int64
	FolderID    *int64
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Pages      ports.PageFetcher
	Videos     ports.VideoFetcher
	Structurer ports.Structurer
	Repository ports.RecipeRepository
	Validator  ports.URLValidator
	Metrics    *metrics.Metrics
	Logger     *slog.Logger

	MaxConcurrent  int
	RequestTimeout time.Duration
	CacheSize      int
}

// Pipeline implements the hybrid extraction workflow: scrape first, judge
// completeness, fall back to video analysis, keep the better of two
// imperfect candidates, and account for every token spent along the way.
type Pipeline struct {
	pages      ports.PageFetcher
	videos     ports.VideoFetcher
	structurer ports.Structurer
	repository ports.RecipeRepository
	validator  ports.URLValidator
	metrics    *metrics.Metrics
	logger     *slog.Logger

	gate    *AdmissionGate
	timeout time.Duration
	cache   *lru.Cache[string, domain.PipelineResult]
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) (*Pipeline, error) {
	if deps.Structurer == nil {
		return nil, fmt.Errorf("pipeline requires a structurer")
	}

	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 240 * time.Second
	}

	cacheSize := deps.CacheSize
	if cacheSize <= 0 {
		cacheSize = 128
	}
	cache, err := lru.New[string, domain.PipelineResult](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("build result cache: %w", err)
	}

	return &Pipeline{
		pages:      deps.Pages,
		videos:     deps.Videos,
		structurer: deps.Structurer,
		repository: deps.Repository,
		validator:  deps.Validator,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		gate:       NewAdmissionGate(deps.MaxConcurrent),
		timeout:    timeout,
		cache:      cache,
	}, nil
}

// Extract runs one request end to end. Exactly one recipe is returned per
// successful request; Method reflects the stage whose candidate was
// ultimately selected, never a stage that was merely attempted.
func (p *Pipeline) Extract(ctx context.Context, req Request) (*domain.PipelineResult, error) {
	if p.validator != nil {
		if err := p.validator.Validate(req.URL); err != nil {
			return nil, err
		}
	}

	cacheKey := fmt.Sprintf("%s|%s", req.URL, req.ForceMethod)
	if cached, ok := p.cache.Get(cacheKey); ok {
		p.debug("cache hit", "url", req.URL)
		result := cached
		if err := p.persist(ctx, req, &result); err != nil {
			return nil, err
		}
		p.metrics.ObserveExtraction(string(result.Method), "cache_hit", 0)
		return &result, nil
	}

	queuedAt := time.Now()
	if err := p.gate.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("admission: %w", err)
	}
	defer p.gate.Release()
	p.metrics.ObserveAdmissionWait(time.Since(queuedAt))

	runCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	started := time.Now()
	if p.metrics != nil {
		p.metrics.InFlight.Inc()
		defer p.metrics.InFlight.Dec()
	}

	result, err := p.run(runCtx, req)
	if err != nil {
		p.metrics.ObserveExtraction("none", "error", time.Since(started))
		return nil, err
	}

	if err := p.persist(runCtx, req, result); err != nil {
		return nil, err
	}

	p.cache.Add(cacheKey, *result)
	p.metrics.ObserveExtraction(string(result.Method), "success", time.Since(started))
	return result, nil
}

// run executes the state machine for one admitted request.
func (p *Pipeline) run(ctx context.Context, req Request) (*domain.PipelineResult, error) {
	var (
		stage    = StageQueued
		usage    domain.UsageMetrics
		webCand  *ports.PageStructuring
		webErr   error
		verdict  domain.CompletenessVerdict
		tryVideo bool
	)

	// Web path, unless the caller pinned the video path.
	if req.ForceMethod != domain.MethodVideoAI {
		stage = StageScraping
		page, err := p.fetchPage(ctx, req.URL)
		if err != nil {
			webErr = err
			p.metrics.IncStageError(string(stage), domain.ErrorLabel(err))
		} else {
			stage = StageStructuringWeb
			webCand, err = p.structurer.StructureFromPage(ctx, page)
			if err != nil {
				webErr = err
				p.metrics.IncStageError(string(stage), domain.ErrorLabel(err))
			} else {
				usage = usage.Add(webCand.Usage)
				p.metrics.AddUsage(webCand.Usage.PromptTokens, webCand.Usage.CandidatesTokens, webCand.Usage.CostEUR)
			}
		}

		stage = StageEvaluating
		switch {
		case webErr != nil && req.ForceMethod == domain.MethodWebScraping:
			return nil, webErr
		case webErr != nil:
			// A failed web path is treated as incomplete by exception:
			// fall back instead of surfacing, preserving webErr as the
			// root cause in case the fallback also fails.
			p.warn("web path failed, falling back to video", "url", req.URL, "error", webErr)
			tryVideo = true
		default:
			verdict = EvaluateCompleteness(webCand.Recipe, webCand.IsIncomplete)
			if verdict.Complete || req.ForceMethod == domain.MethodWebScraping {
				if !verdict.Complete {
					p.debug("returning forced incomplete web candidate", "url", req.URL, "reason", verdict.Reason)
				}
				return &domain.PipelineResult{
					Recipe: webCand.Recipe,
					Method: domain.MethodWebScraping,
					Usage:  usage,
				}, nil
			}
			p.debug("web candidate incomplete", "url", req.URL, "reason", verdict.Reason)
			tryVideo = true
		}
	} else {
		tryVideo = true
	}

	var (
		videoCand *ports.VideoStructuring
		videoErr  error
	)
	if tryVideo {
		stage = StageDownloading
		videoCand, videoErr = p.videoPath(ctx, req.URL, &stage)
		if videoErr != nil {
			p.metrics.IncStageError(string(stage), domain.ErrorLabel(videoErr))
		} else if videoCand != nil {
			usage = usage.Add(videoCand.Usage)
			p.metrics.AddUsage(videoCand.Usage.PromptTokens, videoCand.Usage.CandidatesTokens, videoCand.Usage.CostEUR)
		}
	}

	stage = StageSelecting
	result, err := p.selectCandidate(req, webCand, webErr, videoCand, videoErr, usage)
	if err != nil {
		p.warn("pipeline failed", "url", req.URL, "stage", string(StageFailed), "error", err)
		return nil, err
	}
	p.debug("pipeline done", "url", req.URL, "stage", string(StageDone), "method", string(result.Method))
	return result, nil
}

// selectCandidate applies the fallback policy: prefer the candidate with
// non-empty steps, else keep the web candidate as best effort, and surface
// the original web-path error only when no candidate exists at all.
func (p *Pipeline) selectCandidate(req Request, webCand *ports.PageStructuring, webErr error, videoCand *ports.VideoStructuring, videoErr error, usage domain.UsageMetrics) (*domain.PipelineResult, error) {
	videoUsable := videoErr == nil && videoCand != nil

	if videoUsable && (videoCand.Recipe.HasSteps() || webCand == nil) {
		return &domain.PipelineResult{
			Recipe: videoCand.Recipe,
			Method: domain.MethodVideoAI,
			Usage:  usage,
		}, nil
	}

	if webCand != nil {
		if videoErr != nil {
			p.warn("video path failed, keeping web candidate", "url", req.URL, "error", videoErr)
		}
		return &domain.PipelineResult{
			Recipe: webCand.Recipe,
			Method: domain.MethodWebScraping,
			Usage:  usage,
		}, nil
	}

	// Neither path produced a candidate. When the web path raised first,
	// that failure is the one the caller sees.
	if req.ForceMethod == domain.MethodVideoAI {
		if videoErr == nil {
			videoErr = errors.New("video analysis produced no recipe")
		}
		return nil, videoErr
	}

	root := webErr
	if root == nil {
		root = videoErr
	}
	if root == nil {
		root = errors.New("no extraction path produced a recipe")
	}
	return nil, domain.PipelineExhausted{Err: root}
}

// videoPath downloads the media file and structures it, cleaning the file
// up on every exit path.
func (p *Pipeline) videoPath(ctx context.Context, url string, stage *Stage) (*ports.VideoStructuring, error) {
	if p.videos == nil {
		return nil, fmt.Errorf("video fetcher not configured")
	}

	filePath, err := p.videos.DownloadVideo(ctx, url)
	if err != nil {
		return nil, err
	}
	defer func() {
		if removeErr := os.Remove(filePath); removeErr != nil && !os.IsNotExist(removeErr) {
			p.warn("remove downloaded media", "path", filePath, "error", removeErr)
		}
	}()

	*stage = StageStructuringVideo
	return p.structurer.StructureFromVideo(ctx, filePath, url)
}

func (p *Pipeline) fetchPage(ctx context.Context, url string) (*domain.ScrapedPage, error) {
	if p.pages == nil {
		return nil, domain.FetchError{URL: url, Err: fmt.Errorf("page fetcher not configured")}
	}
	return p.pages.FetchPage(ctx, url)
}

// persist stores the final recipe when the caller asked for it.
func (p *Pipeline) persist(ctx context.Context, req Request, result *domain.PipelineResult) error {
	if !req.Persist || p.repository == nil {
		return nil
	}

	id, err := p.repository.Save(ctx, result.Recipe, req.TagIDs, req.FolderID)
	if err != nil {
		return fmt.Errorf("persist recipe: %w", err)
	}
	result.Recipe.ID = id
	return nil
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
