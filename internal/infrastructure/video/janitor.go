package video

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Janitor sweeps the temp media directory on a ticker and removes files
// older than the configured age. Downloads normally clean up after
// themselves; the janitor catches files orphaned by crashes or kills.
type Janitor struct {
	dir      string
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
}

// NewJanitor builds a sweeper for dir. Files younger than maxAge survive.
func NewJanitor(dir string, maxAge time.Duration, logger *slog.Logger) *Janitor {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Janitor{
		dir:      dir,
		maxAge:   maxAge,
		interval: maxAge / 2,
		logger:   logger,
	}
}

// Start begins sweeping in the background.
func (j *Janitor) Start(ctx context.Context) {
	if j.stop != nil {
		return
	}

	j.stop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()
		j.Sweep(time.Now())
		for {
			select {
			case t := <-ticker.C:
				j.Sweep(t)
			case <-ctx.Done():
				return
			case <-j.stop:
				return
			}
		}
	}()
}

// Stop halts the sweep goroutine.
func (j *Janitor) Stop() {
	if j.stop == nil {
		return
	}
	close(j.stop)
	j.stop = nil
}

// Sweep removes stale media files. Only files the downloader created are
// touched; anything else in the directory is left alone.
func (j *Janitor) Sweep(now time.Time) {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if j.logger != nil {
			j.logger.Warn("temp dir sweep failed", "dir", j.dir, "error", err)
		}
		return
	}

	cutoff := now.Add(-j.maxAge)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "recipesnap-") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			if j.logger != nil {
				j.logger.Warn("stale media removal failed", "path", path, "error", err)
			}
			continue
		}
		if j.logger != nil {
			j.logger.Debug("removed stale media file", "path", path)
		}
	}
}
