package usecase

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// Cleanup removes stale chunks that earlier runs left in the staging
// directory, judged by the timestamp embedded in the chunk name. Chunks
// from the current or recent runs are never touched.
type Cleanup struct {
	scanner       ChunkScanner
	logger        Logger
	retentionDays int
}

func NewCleanup(scanner ChunkScanner, logger Logger, retentionDays int) *Cleanup {
	return &Cleanup{
		scanner:       scanner,
		logger:        logger,
		retentionDays: retentionDays,
	}
}

// Execute deletes chunks older than the retention window. A retention of
// zero or less disables cleanup entirely.
func (uc *Cleanup) Execute(ctx context.Context, stagingDir string) error {
	if uc.retentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -uc.retentionDays)
	uc.logger.Infof("cleaning staging chunks older than %d day(s)", uc.retentionDays)

	chunks, err := uc.scanner.Discover(stagingDir)
	if err != nil {
		return err
	}

	deleted := 0
	for _, chunk := range chunks {
		name := filepath.Base(chunk.Path)
		ts, err := extractTimestamp(name)
		if err != nil {
			uc.logger.Warnf("could not parse timestamp from %s: %v", name, err)
			continue
		}
		if !ts.Before(cutoff) {
			continue
		}
		if err := os.Remove(chunk.Path); err != nil {
			uc.logger.Errorf("failed to delete stale chunk %s: %v", chunk.Path, err)
			continue
		}
		uc.logger.Infof("deleted stale chunk: %s", chunk.Path)
		deleted++
	}

	uc.logger.Infof("cleanup removed %d stale chunk(s) from %s", deleted, stagingDir)
	return nil
}
