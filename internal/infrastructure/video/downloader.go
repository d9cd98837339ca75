// Package video acquires a local media file for a social post by running
// yt-dlp through an ordered cascade of download strategies, from the most
// efficient format selection down to "anything that plays".
package video

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"RecipeSnap/internal/config"
	"RecipeSnap/internal/domain"
	"RecipeSnap/internal/infrastructure/credentials"
	"RecipeSnap/internal/platform"
	"RecipeSnap/internal/ports"
	pkglog "RecipeSnap/pkg/logger"
)

// commandRunner executes one external command and returns its combined
// output. Swappable in tests.
type commandRunner func(ctx context.Context, name string, args ...string) (string, error)

func execRunner(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return string(out), err
}

// strategy is one format-selection attempt, most specific first.
type strategy struct {
	name string
	args []string
}

var strategies = []strategy{
	{
		name: "bounded_mux",
		args: []string{"-f", "bv*[height<=720]+ba/b[height<=720]", "--merge-output-format", "mp4"},
	},
	{
		name: "best",
		args: []string{"-f", "best"},
	},
	{
		// No format selector at all: accept whatever the extractor offers.
		name: "any",
	},
}

// Downloader implements ports.VideoFetcher via yt-dlp.
type Downloader struct {
	cfg      config.VideoConfig
	registry *platform.Registry
	creds    *credentials.Store
	logger   *slog.Logger
	procLog  *log.Logger
	run      commandRunner
}

var _ ports.VideoFetcher = (*Downloader)(nil)

// NewDownloader wires the yt-dlp based fetcher.
func NewDownloader(cfg config.VideoConfig, registry *platform.Registry, creds *credentials.Store, logger *slog.Logger) *Downloader {
	if registry == nil {
		registry = platform.NewRegistry()
	}
	if cfg.YtDlpPath == "" {
		cfg.YtDlpPath = "yt-dlp"
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &Downloader{
		cfg:      cfg,
		registry: registry,
		creds:    creds,
		logger:   logger,
		procLog:  pkglog.New("yt-dlp"),
		run:      execRunner,
	}
}

// DownloadVideo walks the strategy cascade. An attempt counts as successful
// when a non-empty output file exists, regardless of the process exit
// status: yt-dlp sometimes fails only while persisting session state after
// the download itself finished. Partial files are removed between attempts.
func (d *Downloader) DownloadVideo(ctx context.Context, url string) (string, error) {
	outBase := filepath.Join(d.cfg.TempDir, "recipesnap-"+uuid.NewString())
	template := outBase + ".%(ext)s"

	var (
		lastErr     error
		rateLimited bool
		authWalled  bool
	)

	for _, s := range strategies {
		if ctx.Err() != nil {
			break
		}

		args, cleanup, err := d.buildArgs(url, template, s)
		if err != nil {
			lastErr = err
			continue
		}

		output, runErr := d.runAttempt(ctx, args)
		cleanup()

		if path, ok := findOutput(outBase); ok {
			if runErr != nil {
				d.debug("download succeeded despite tool error", "url", url, "strategy", s.name, "error", runErr)
			}
			return path, nil
		}

		cause := classifyOutput(output)
		switch cause {
		case domain.DownloadRateLimited:
			rateLimited = true
		case domain.DownloadAuthRequired:
			authWalled = true
		}

		if runErr != nil {
			lastErr = fmt.Errorf("strategy %s: %w", s.name, runErr)
		} else {
			lastErr = fmt.Errorf("strategy %s: no output file produced", s.name)
		}
		d.debug("download attempt failed", "url", url, "strategy", s.name, "cause", string(cause), "error", lastErr)
		d.echoOutput(output)

		removePartials(outBase)
	}

	removePartials(outBase)

	cause := domain.DownloadExhausted
	if rateLimited {
		cause = domain.DownloadRateLimited
	} else if authWalled {
		cause = domain.DownloadAuthRequired
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return "", domain.DownloadError{URL: url, Cause: cause, Err: lastErr}
}

// buildArgs assembles the yt-dlp invocation. Credential material is handed
// over only as a disposable copy; the cleanup removes it after the attempt.
func (d *Downloader) buildArgs(url, template string, s strategy) ([]string, func(), error) {
	args := []string{"--no-playlist", "--no-progress", "-o", template}
	args = append(args, s.args...)

	cleanup := func() {}

	if p, ok := d.registry.Resolve(url); ok && p.Referer != "" {
		args = append(args, "--referer", p.Referer)
	}

	if d.creds != nil {
		set, err := d.creds.CredentialsFor(url)
		if err != nil {
			return nil, cleanup, fmt.Errorf("resolve credentials: %w", err)
		}
		if set != nil {
			copyPath, removeCopy, err := d.creds.DisposableCopy(set)
			if err != nil {
				return nil, cleanup, fmt.Errorf("copy credentials: %w", err)
			}
			cleanup = removeCopy
			args = append(args, "--cookies", copyPath)
		}
	}

	args = append(args, url)
	return args, cleanup, nil
}

func (d *Downloader) runAttempt(ctx context.Context, args []string) (string, error) {
	timeout := d.cfg.AttemptTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return d.run(attemptCtx, d.cfg.YtDlpPath, args...)
}

// classifyOutput maps tool output onto a download cause so error messages
// stay actionable.
func classifyOutput(output string) domain.DownloadCause {
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "429") ||
		strings.Contains(lower, "rate-limit") ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "too many requests"):
		return domain.DownloadRateLimited
	case strings.Contains(lower, "login required") ||
		strings.Contains(lower, "log in") ||
		strings.Contains(lower, "sign in") ||
		strings.Contains(lower, "requested content is not available") ||
		strings.Contains(lower, "only available for registered users") ||
		strings.Contains(lower, "cookies"):
		return domain.DownloadAuthRequired
	default:
		return domain.DownloadExhausted
	}
}

// findOutput locates the finished media file for an output template base.
// In-progress artifacts (.part, .ytdl) never count.
func findOutput(outBase string) (string, bool) {
	matches, err := filepath.Glob(outBase + ".*")
	if err != nil {
		return "", false
	}
	for _, match := range matches {
		ext := filepath.Ext(match)
		if ext == ".part" || ext == ".ytdl" || ext == ".tmp" {
			continue
		}
		info, err := os.Stat(match)
		if err != nil || info.Size() == 0 {
			continue
		}
		return match, true
	}
	return "", false
}

// removePartials deletes everything a failed attempt left behind so the next
// strategy starts clean.
func removePartials(outBase string) {
	matches, err := filepath.Glob(outBase + "*")
	if err != nil {
		return
	}
	for _, match := range matches {
		_ = os.Remove(match)
	}
}

func (d *Downloader) debug(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}

// echoOutput replays tool output of a failed attempt line by line.
func (d *Downloader) echoOutput(output string) {
	if d.procLog == nil {
		return
	}
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimRight(line, "\r"); line != "" {
			d.procLog.Println(line)
		}
	}
}
