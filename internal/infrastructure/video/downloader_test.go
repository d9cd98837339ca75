package video

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"RecipeSnap/internal/config"
	"RecipeSnap/internal/domain"
	"RecipeSnap/internal/platform"
)

func newTestDownloader(t *testing.T, run commandRunner) *Downloader {
	t.Helper()
	d := NewDownloader(config.VideoConfig{TempDir: t.TempDir()}, platform.NewRegistry(), nil, nil)
	d.run = run
	d.procLog = nil
	return d
}

// outputTemplate extracts the value of the -o flag from an invocation.
func outputTemplate(t *testing.T, args []string) string {
	t.Helper()
	for i, arg := range args {
		if arg == "-o" && i+1 < len(args) {
			return args[i+1]
		}
	}
	t.Fatal("no -o flag in args")
	return ""
}

func writeOutput(t *testing.T, template, ext, content string) string {
	t.Helper()
	path := strings.Replace(template, ".%(ext)s", "."+ext, 1)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDownloadVideoFirstStrategySucceeds(t *testing.T) {
	t.Parallel()

	calls := 0
	d := newTestDownloader(t, func(_ context.Context, _ string, args ...string) (string, error) {
		calls++
		writeOutput(t, outputTemplate(t, args), "mp4", "media")
		return "", nil
	})

	path, err := d.DownloadVideo(context.Background(), "https://www.instagram.com/p/abc/")
	if err != nil {
		t.Fatalf("DownloadVideo: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if filepath.Ext(path) != ".mp4" {
		t.Fatalf("ext = %s, want .mp4", filepath.Ext(path))
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("output missing: %v", err)
	}
}

func TestDownloadVideoToleratesToolErrorWhenFileExists(t *testing.T) {
	t.Parallel()

	d := newTestDownloader(t, func(_ context.Context, _ string, args ...string) (string, error) {
		writeOutput(t, outputTemplate(t, args), "mp4", "media")
		return "ERROR: unable to write session state", errors.New("exit status 1")
	})

	path, err := d.DownloadVideo(context.Background(), "https://www.tiktok.com/@u/video/1")
	if err != nil {
		t.Fatalf("DownloadVideo: %v", err)
	}
	if path == "" {
		t.Fatal("expected a path")
	}
}

func TestDownloadVideoFallsThroughCascade(t *testing.T) {
	t.Parallel()

	calls := 0
	d := newTestDownloader(t, func(_ context.Context, _ string, args ...string) (string, error) {
		calls++
		if calls < 3 {
			return "ERROR: requested format is not available", errors.New("exit status 1")
		}
		writeOutput(t, outputTemplate(t, args), "webm", "media")
		return "", nil
	})

	path, err := d.DownloadVideo(context.Background(), "https://www.instagram.com/reel/xyz/")
	if err != nil {
		t.Fatalf("DownloadVideo: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if filepath.Ext(path) != ".webm" {
		t.Fatalf("ext = %s, want .webm", filepath.Ext(path))
	}
}

func TestDownloadVideoIgnoresPartialFiles(t *testing.T) {
	t.Parallel()

	d := newTestDownloader(t, func(_ context.Context, _ string, args ...string) (string, error) {
		template := outputTemplate(t, args)
		partial := strings.Replace(template, ".%(ext)s", ".mp4.part", 1)
		if err := os.WriteFile(partial, []byte("half"), 0o644); err != nil {
			t.Fatal(err)
		}
		return "ERROR: interrupted", errors.New("exit status 1")
	})

	_, err := d.DownloadVideo(context.Background(), "https://www.instagram.com/p/abc/")
	if err == nil {
		t.Fatal("expected failure")
	}

	leftovers, globErr := filepath.Glob(filepath.Join(d.cfg.TempDir, "*"))
	if globErr != nil {
		t.Fatal(globErr)
	}
	if len(leftovers) != 0 {
		t.Fatalf("leftover files after failed download: %v", leftovers)
	}
}

func TestDownloadVideoReportsRateLimit(t *testing.T) {
	t.Parallel()

	d := newTestDownloader(t, func(_ context.Context, _ string, _ ...string) (string, error) {
		return "ERROR: HTTP Error 429: Too Many Requests", errors.New("exit status 1")
	})

	_, err := d.DownloadVideo(context.Background(), "https://www.tiktok.com/@u/video/1")
	var dlErr domain.DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("error type = %T, want DownloadError", err)
	}
	if dlErr.Cause != domain.DownloadRateLimited {
		t.Fatalf("cause = %s, want %s", dlErr.Cause, domain.DownloadRateLimited)
	}
}

func TestDownloadVideoReportsAuthWall(t *testing.T) {
	t.Parallel()

	d := newTestDownloader(t, func(_ context.Context, _ string, _ ...string) (string, error) {
		return "ERROR: [Instagram] abc: login required, use --cookies", errors.New("exit status 1")
	})

	_, err := d.DownloadVideo(context.Background(), "https://www.instagram.com/p/abc/")
	var dlErr domain.DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("error type = %T, want DownloadError", err)
	}
	if dlErr.Cause != domain.DownloadAuthRequired {
		t.Fatalf("cause = %s, want %s", dlErr.Cause, domain.DownloadAuthRequired)
	}
}

func TestDownloadVideoExhaustedCause(t *testing.T) {
	t.Parallel()

	d := newTestDownloader(t, func(_ context.Context, _ string, _ ...string) (string, error) {
		return "ERROR: unable to extract video data", errors.New("exit status 1")
	})

	_, err := d.DownloadVideo(context.Background(), "https://www.instagram.com/p/abc/")
	var dlErr domain.DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("error type = %T, want DownloadError", err)
	}
	if dlErr.Cause != domain.DownloadExhausted {
		t.Fatalf("cause = %s, want %s", dlErr.Cause, domain.DownloadExhausted)
	}
}

func TestDownloadVideoPassesReferer(t *testing.T) {
	t.Parallel()

	var seen []string
	d := newTestDownloader(t, func(_ context.Context, _ string, args ...string) (string, error) {
		seen = append([]string(nil), args...)
		writeOutput(t, outputTemplate(t, args), "mp4", "media")
		return "", nil
	})

	if _, err := d.DownloadVideo(context.Background(), "https://www.tiktok.com/@u/video/1"); err != nil {
		t.Fatalf("DownloadVideo: %v", err)
	}

	joined := strings.Join(seen, " ")
	if !strings.Contains(joined, "--referer") {
		t.Fatalf("args missing --referer: %v", seen)
	}
}

func TestClassifyOutput(t *testing.T) {
	t.Parallel()

	cases := []struct {
		output string
		want   domain.DownloadCause
	}{
		{"HTTP Error 429: Too Many Requests", domain.DownloadRateLimited},
		{"WARNING: rate-limit reached, retrying", domain.DownloadRateLimited},
		{"ERROR: login required to access this post", domain.DownloadAuthRequired},
		{"Sign in to confirm you're not a bot", domain.DownloadAuthRequired},
		{"ERROR: unable to extract video data", domain.DownloadExhausted},
		{"", domain.DownloadExhausted},
	}
	for _, tc := range cases {
		if got := classifyOutput(tc.output); got != tc.want {
			t.Errorf("classifyOutput(%q) = %s, want %s", tc.output, got, tc.want)
		}
	}
}
