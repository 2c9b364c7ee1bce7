package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/semmidev/kibotos/internal/domain"
	"golang.org/x/sys/unix"
)

// chunkPattern matches the chunk naming convention
// backup_<source>_<YYYYMMDD_HHMMSS>.<tar|tar.gz>.<suffix> for both the
// compressed and plain archive families.
var chunkPattern = regexp.MustCompile(`^backup_.+_\d{8}_\d{6}\.tar(\.gz)?\.[a-z]{2}$`)

// Guard validates the staging directory before any chunk is written.
type Guard struct{}

func NewGuard() *Guard {
	return &Guard{}
}

// Check fails with a domain.EnvironmentError when dir does not exist, is
// not writable, or has less than required bytes free. No side effects.
func (g *Guard) Check(dir string, required int64) error {
	info, err := os.Stat(dir)
	if err != nil {
		return &domain.EnvironmentError{Dir: dir, Reason: "does not exist", Err: err}
	}
	if !info.IsDir() {
		return &domain.EnvironmentError{Dir: dir, Reason: "not a directory"}
	}

	if err := unix.Access(dir, unix.W_OK); err != nil {
		return &domain.EnvironmentError{Dir: dir, Reason: "no write permission", Err: err}
	}

	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return &domain.EnvironmentError{Dir: dir, Reason: "statfs failed", Err: err}
	}

	free := int64(st.Bavail) * int64(st.Bsize)
	if free < required {
		return &domain.EnvironmentError{
			Dir:    dir,
			Reason: fmt.Sprintf("not enough free space: %d bytes free, %d required", free, required),
		}
	}

	return nil
}

// Scanner discovers previously produced chunks for transfer-only runs.
type Scanner struct{}

func NewScanner() *Scanner {
	return &Scanner{}
}

// Discover returns the chunk files in dir matching the naming convention,
// sorted lexicographically, which is creation order. An empty result is not
// an error; the caller treats it as nothing to transfer.
func (s *Scanner) Discover(dir string) ([]domain.Chunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read staging directory: %w", err)
	}

	var chunks []domain.Chunk
	for _, entry := range entries {
		if entry.IsDir() || !chunkPattern.MatchString(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}
		name := entry.Name()
		chunks = append(chunks, domain.Chunk{
			Path:   filepath.Join(dir, name),
			Suffix: name[len(name)-2:],
			Size:   info.Size(),
		})
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Path < chunks[j].Path
	})

	return chunks, nil
}
