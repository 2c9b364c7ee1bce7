package archiver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/semmidev/kibotos/internal/domain"
)

// maxChunks is bounded by the two-letter suffix space, split(1) style.
const maxChunks = 26 * 26

// ErrSuffixExhausted means the archive stream needed more than maxChunks
// chunks. Rerun with a larger chunk size.
var ErrSuffixExhausted = errors.New("chunk name suffixes exhausted")

// chunkWriter splits a byte stream into consecutive files of exactly
// chunkSize bytes, except the final file which holds the remainder. Files
// are named <base>.aa, <base>.ab, ... so lexicographic order equals
// creation order.
type chunkWriter struct {
	dir       string
	base      string
	chunkSize int64

	file    *os.File
	written int64
	index   int
	chunks  []domain.Chunk
}

func newChunkWriter(dir, base string, chunkSize int64) *chunkWriter {
	return &chunkWriter{
		dir:       dir,
		base:      base,
		chunkSize: chunkSize,
	}
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		if w.file == nil {
			if err := w.open(); err != nil {
				return total, err
			}
		}

		space := w.chunkSize - w.written
		n := int64(len(p))
		if n > space {
			n = space
		}

		wrote, err := w.file.Write(p[:n])
		total += wrote
		w.written += int64(wrote)
		if err != nil {
			return total, err
		}
		p = p[n:]

		if w.written == w.chunkSize {
			if err := w.roll(); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// Close finalizes the trailing partial chunk, if any.
func (w *chunkWriter) Close() error {
	if w.file == nil {
		return nil
	}
	return w.roll()
}

// Chunks returns the chunk files produced so far, in creation order.
func (w *chunkWriter) Chunks() []domain.Chunk {
	return w.chunks
}

func (w *chunkWriter) open() error {
	if w.index >= maxChunks {
		return ErrSuffixExhausted
	}
	path := filepath.Join(w.dir, fmt.Sprintf("%s.%s", w.base, suffix(w.index)))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chunk file: %w", err)
	}
	w.file = f
	w.written = 0
	return nil
}

func (w *chunkWriter) roll() error {
	name := w.file.Name()
	size := w.written
	if err := w.file.Close(); err != nil {
		return err
	}
	w.chunks = append(w.chunks, domain.Chunk{
		Path:   name,
		Suffix: suffix(w.index),
		Size:   size,
	})
	w.file = nil
	w.written = 0
	w.index++
	return nil
}

func suffix(i int) string {
	return string([]byte{'a' + byte(i/26), 'a' + byte(i%26)})
}
