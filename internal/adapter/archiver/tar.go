package archiver

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/semmidev/kibotos/internal/domain"
)

// TimestampLayout is embedded in every chunk base name so that backups from
// different runs never collide and sort by creation time.
const TimestampLayout = "20060102_150405"

// TarArchiver streams a directory into a tar archive, optionally through
// gzip, and splits the stream into fixed-size chunk files. No external
// tar/split processes are involved.
type TarArchiver struct {
	compress bool
	now      func() time.Time
}

func NewTar(compress bool) *TarArchiver {
	return &TarArchiver{
		compress: compress,
		now:      time.Now,
	}
}

// Archive walks sourceDir and produces ordered chunk files in stagingDir.
// Symbolic links are stored as links, never dereferenced. An empty source
// directory yields an empty chunk list and no error. On failure the
// partially written chunks are left in place for inspection.
func (a *TarArchiver) Archive(ctx context.Context, sourceDir, stagingDir string, chunkSize int64) ([]domain.Chunk, error) {
	if chunkSize <= 0 {
		return nil, &domain.CompressionError{
			Source: sourceDir,
			Err:    fmt.Errorf("chunk size must be positive, got %d", chunkSize),
		}
	}

	sourceDir, err := filepath.Abs(sourceDir)
	if err != nil {
		return nil, &domain.CompressionError{Source: sourceDir, Err: err}
	}

	info, err := os.Stat(sourceDir)
	if err != nil {
		return nil, &domain.CompressionError{Source: sourceDir, Err: err}
	}
	if !info.IsDir() {
		return nil, &domain.CompressionError{
			Source: sourceDir,
			Err:    fmt.Errorf("not a directory"),
		}
	}

	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return nil, &domain.CompressionError{Source: sourceDir, Err: err}
	}
	if len(entries) == 0 {
		return nil, nil
	}

	base := ChunkBase(filepath.Base(sourceDir), a.now(), a.compress)
	cw := newChunkWriter(stagingDir, base, chunkSize)

	if err := a.writeStream(ctx, sourceDir, cw); err != nil {
		_ = cw.Close()
		return nil, &domain.CompressionError{Source: sourceDir, Err: err}
	}

	if err := cw.Close(); err != nil {
		return nil, &domain.CompressionError{Source: sourceDir, Err: err}
	}

	return cw.Chunks(), nil
}

func (a *TarArchiver) writeStream(ctx context.Context, sourceDir string, out io.Writer) error {
	var gz *gzip.Writer
	w := out
	if a.compress {
		gz = gzip.NewWriter(out)
		w = gz
	}
	tw := tar.NewWriter(w)

	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == sourceDir {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return writeEntry(tw, sourceDir, path, d)
	})
	if err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return err
	}
	if gz != nil {
		return gz.Close()
	}
	return nil
}

func writeEntry(tw *tar.Writer, sourceDir, path string, d fs.DirEntry) error {
	// DirEntry.Info is lstat for symlinks, so link targets are never
	// followed and their sizes never counted.
	info, err := d.Info()
	if err != nil {
		return err
	}

	link := ""
	if info.Mode()&os.ModeSymlink != 0 {
		link, err = os.Readlink(path)
		if err != nil {
			return err
		}
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}

	rel, err := filepath.Rel(sourceDir, path)
	if err != nil {
		return err
	}
	hdr.Name = filepath.ToSlash(rel)
	if d.IsDir() {
		hdr.Name += "/"
	}

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}

	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("archiving %s: %w", rel, err)
	}
	return nil
}

// ChunkBase builds the common prefix all chunks of one run share:
// backup_<source-basename>_<timestamp>.<tar|tar.gz>
func ChunkBase(sourceBase string, ts time.Time, compress bool) string {
	ext := "tar"
	if compress {
		ext = "tar.gz"
	}
	return fmt.Sprintf("backup_%s_%s.%s", sourceBase, ts.Format(TimestampLayout), ext)
}

// Reassemble concatenates chunk files in the given order into dst. With the
// chunks in lexicographic suffix order this reproduces the original archive
// stream byte for byte.
func Reassemble(chunkPaths []string, dst io.Writer) error {
	for _, p := range chunkPaths {
		f, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("failed to open chunk %s: %w", p, err)
		}
		if _, err := io.Copy(dst, f); err != nil {
			f.Close()
			return fmt.Errorf("failed to read chunk %s: %w", p, err)
		}
		f.Close()
	}
	return nil
}
