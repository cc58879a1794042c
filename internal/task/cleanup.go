package task

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vidra/vidra-api/internal/config"
)

// Janitor periodically removes aged artifacts from the download
// directory. Artifacts uploaded to cloud storage are deleted right
// after upload; this sweep catches local-storage artifacts and the
// leftovers of failed runs.
type Janitor struct {
	dir      string
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewJanitor creates a Janitor for the given download directory.
func NewJanitor(cfg config.CleanupConfig, dir string, logger *slog.Logger) *Janitor {
	interval := time.Duration(cfg.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Janitor{
		dir:        dir,
		maxAge:     time.Duration(cfg.MaxAgeHours) * time.Hour,
		interval:   interval,
		logger:     logger,
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start begins the periodic sweep. A zero max age disables the janitor.
func (j *Janitor) Start() {
	if j.maxAge <= 0 {
		j.logger.Info("artifact cleanup disabled")
		return
	}

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		j.logger.Info("artifact cleanup started",
			"dir", j.dir,
			"max_age", j.maxAge,
			"interval", j.interval)

		for {
			select {
			case <-j.ctx.Done():
				return
			case <-ticker.C:
				j.Sweep()
			}
		}
	}()
}

// Stop shuts the janitor down and waits for an in-flight sweep.
func (j *Janitor) Stop() {
	j.cancelFunc()
	j.wg.Wait()
}

// Sweep removes every regular file in the download directory whose
// modification time is older than the configured max age.
func (j *Janitor) Sweep() {
	cutoff := time.Now().Add(-j.maxAge)

	entries, err := os.ReadDir(j.dir)
	if err != nil {
		j.logger.Error("cannot scan download directory", "dir", j.dir, "error", err)
		return
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
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
			j.logger.Warn("failed to remove aged artifact", "path", path, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		j.logger.Info("removed aged artifacts", "count", removed, "dir", j.dir)
	}
}
