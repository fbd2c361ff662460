package tasks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// newCacheCleanupTask removes generated images older than cache.max_age. A
// zero max age keeps everything.
func newCacheCleanupTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "cache_cleanup")

	return func(ctx context.Context) error {
		maxAge := deps.Config.Cache.MaxAge
		if maxAge <= 0 {
			log.DebugContext(ctx, "Cache cleanup disabled by zero max age")
			return nil
		}

		removed, err := cleanDir(ctx, deps.Config.Cache.Dir, time.Now().Add(-maxAge))
		if err != nil {
			log.ErrorContext(ctx, "Cache cleanup failed", "error", err, "removed", removed)
			return fmt.Errorf("cache cleanup failed: %w", err)
		}

		log.InfoContext(ctx, "Cache cleanup completed", "dir", deps.Config.Cache.Dir, "removed", removed)
		return nil
	}
}

// cleanDir deletes regular files in dir last modified before cutoff. It does
// not descend into subdirectories. A missing dir is not an error.
func cleanDir(ctx context.Context, dir string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	removed := 0
	var errs []error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
