package service

import (
	"context"
	"path"
	"time"

	"github.com/itchan-dev/tinychan/internal/domain"
	"github.com/itchan-dev/tinychan/internal/logger"
)

// GCStorage lists the media names the post store still references.
type GCStorage interface {
	MediaNames(ctx context.Context, board domain.BoardId) ([]string, error)
}

// GCMediaStorage is the filesystem side of the collector.
type GCMediaStorage interface {
	ListFiles(dir string) ([]string, error)
	ModTime(filePath string) (time.Time, error)
	DeleteFile(filePath string) error
	MediaDir(board domain.BoardId) string
	ThumbDir(board domain.BoardId) string
}

// MediaGarbageCollector removes uploads that no post references, e.g. files
// left behind when the process died between saving a file and committing
// its post.
type MediaGarbageCollector struct {
	storage         GCStorage
	media           GCMediaStorage
	boards          []domain.BoardId
	safetyThreshold time.Duration
	now             func() time.Time
}

// CleanupStats describes a single collection run.
type CleanupStats struct {
	FilesScanned  int
	OrphanedFiles int
	FilesDeleted  int
	Errors        []string
}

// NewMediaGarbageCollector creates a collector over boards. Files younger than
// safetyThreshold are kept since their post may still be committing.
func NewMediaGarbageCollector(storage GCStorage, media GCMediaStorage, boards []domain.BoardId, safetyThreshold time.Duration) *MediaGarbageCollector {
	return &MediaGarbageCollector{
		storage:         storage,
		media:           media,
		boards:          boards,
		safetyThreshold: safetyThreshold,
		now:             time.Now,
	}
}

// StartBackgroundCleanup runs a cleanup every interval until ctx is done.
func (gc *MediaGarbageCollector) StartBackgroundCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	logger.Log.Info("started media garbage collector", "interval", interval, "safety_threshold", gc.safetyThreshold)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				stats, err := gc.RunCleanup(ctx)
				if err != nil {
					logger.Log.Error("media cleanup failed", "error", err)
					continue
				}
				if stats.OrphanedFiles > 0 || len(stats.Errors) > 0 {
					logger.Log.Info("media cleanup completed",
						"scanned", stats.FilesScanned,
						"orphans", stats.OrphanedFiles,
						"deleted", stats.FilesDeleted,
						"errors", len(stats.Errors))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RunCleanup executes a single collection over every board.
func (gc *MediaGarbageCollector) RunCleanup(ctx context.Context) (CleanupStats, error) {
	var stats CleanupStats
	for _, board := range gc.boards {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := gc.cleanBoard(ctx, board, &stats); err != nil {
			return stats, err
		}
	}
	orphanedFilesTotal.Add(float64(stats.FilesDeleted))
	return stats, nil
}

func (gc *MediaGarbageCollector) cleanBoard(ctx context.Context, board domain.BoardId, stats *CleanupStats) error {
	names, err := gc.storage.MediaNames(ctx, board)
	if err != nil {
		return err
	}
	referenced := make(map[string]bool, len(names))
	for _, name := range names {
		referenced[name] = true
	}

	for _, dir := range []string{gc.media.MediaDir(board), gc.media.ThumbDir(board)} {
		files, err := gc.media.ListFiles(dir)
		if err != nil {
			return err
		}
		stats.FilesScanned += len(files)

		for _, file := range files {
			if referenced[path.Base(file)] {
				continue
			}
			modTime, err := gc.media.ModTime(file)
			if err != nil {
				stats.Errors = append(stats.Errors, err.Error())
				continue
			}
			if gc.now().Sub(modTime) < gc.safetyThreshold {
				continue
			}

			stats.OrphanedFiles++
			if err := gc.media.DeleteFile(file); err != nil {
				stats.Errors = append(stats.Errors, err.Error())
				continue
			}
			stats.FilesDeleted++
		}
	}
	return nil
}
