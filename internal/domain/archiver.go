package domain

import "context"

// Archiver turns a source directory into an ordered list of chunk files in
// the staging directory. An empty source yields an empty list and no error;
// the caller decides that nothing needs transferring.
type Archiver interface {
	Archive(ctx context.Context, sourceDir, stagingDir string, chunkSize int64) ([]Chunk, error)
}
