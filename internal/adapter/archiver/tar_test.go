package archiver

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/semmidev/kibotos/internal/domain"
	. "github.com/smartystreets/goconvey/convey"
)

type tarEntry struct {
	typeflag byte
	size     int64
	linkname string
	content  string
}

func readTarEntries(r io.Reader) (map[string]tarEntry, error) {
	entries := make(map[string]tarEntry)
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, tr); err != nil {
			return nil, err
		}
		entries[hdr.Name] = tarEntry{
			typeflag: hdr.Typeflag,
			size:     hdr.Size,
			linkname: hdr.Linkname,
			content:  buf.String(),
		}
	}
}

func chunkPaths(chunks []domain.Chunk) []string {
	paths := make([]string, len(chunks))
	for i, c := range chunks {
		paths[i] = c.Path
	}
	return paths
}

func TestTarArchiver(t *testing.T) {
	Convey("Given a source directory with files, a subdirectory and a symlink", t, func() {
		sourceDir, err := os.MkdirTemp("", "archiver_src")
		So(err, ShouldBeNil)
		defer os.RemoveAll(sourceDir)

		stagingDir, err := os.MkdirTemp("", "archiver_staging")
		So(err, ShouldBeNil)
		defer os.RemoveAll(stagingDir)

		big := strings.Repeat("0123456789abcdef", 512) // 8 KiB
		So(os.WriteFile(filepath.Join(sourceDir, "notes.txt"), []byte("hello backup"), 0644), ShouldBeNil)
		So(os.MkdirAll(filepath.Join(sourceDir, "sub"), 0755), ShouldBeNil)
		So(os.WriteFile(filepath.Join(sourceDir, "sub", "data.bin"), []byte(big), 0644), ShouldBeNil)
		So(os.Symlink("sub/data.bin", filepath.Join(sourceDir, "data.lnk")), ShouldBeNil)

		Convey("When archiving without compression into 1 KiB chunks", func() {
			chunks, err := NewTar(false).Archive(context.Background(), sourceDir, stagingDir, 1024)

			Convey("It should split the stream into fixed-size chunks", func() {
				So(err, ShouldBeNil)
				So(len(chunks), ShouldBeGreaterThan, 1)

				var total int64
				for _, c := range chunks[:len(chunks)-1] {
					So(c.Size, ShouldEqual, 1024)
					total += c.Size
				}
				last := chunks[len(chunks)-1]
				So(last.Size, ShouldBeGreaterThan, 0)
				So(last.Size, ShouldBeLessThanOrEqualTo, 1024)
				total += last.Size

				So(int64(len(chunks)), ShouldEqual, (total+1023)/1024)
			})

			Convey("Chunk names should sort lexicographically in creation order", func() {
				So(err, ShouldBeNil)
				paths := chunkPaths(chunks)
				sorted := append([]string(nil), paths...)
				sort.Strings(sorted)
				So(paths, ShouldResemble, sorted)
				So(filepath.Base(paths[0]), ShouldEndWith, ".tar.aa")
			})

			Convey("Reassembling the chunks should reproduce the directory entries", func() {
				So(err, ShouldBeNil)
				var buf bytes.Buffer
				So(Reassemble(chunkPaths(chunks), &buf), ShouldBeNil)

				entries, err := readTarEntries(&buf)
				So(err, ShouldBeNil)
				So(entries["notes.txt"].content, ShouldEqual, "hello backup")
				So(entries["sub/data.bin"].content, ShouldEqual, big)
				So(entries, ShouldContainKey, "sub/")

				Convey("And the symlink is stored as a link, not dereferenced", func() {
					link := entries["data.lnk"]
					So(link.typeflag, ShouldEqual, byte(tar.TypeSymlink))
					So(link.linkname, ShouldEqual, "sub/data.bin")
					So(link.size, ShouldEqual, 0)
				})
			})
		})

		Convey("When archiving with gzip compression", func() {
			chunks, err := NewTar(true).Archive(context.Background(), sourceDir, stagingDir, 1<<20)

			Convey("The chunk family should carry the tar.gz extension", func() {
				So(err, ShouldBeNil)
				So(len(chunks), ShouldEqual, 1)
				So(filepath.Base(chunks[0].Path), ShouldContainSubstring, ".tar.gz.")
			})

			Convey("Decompressing the reassembled stream should reproduce the entries", func() {
				So(err, ShouldBeNil)
				var buf bytes.Buffer
				So(Reassemble(chunkPaths(chunks), &buf), ShouldBeNil)

				gz, err := gzip.NewReader(&buf)
				So(err, ShouldBeNil)
				defer gz.Close()

				entries, err := readTarEntries(gz)
				So(err, ShouldBeNil)
				So(entries["notes.txt"].content, ShouldEqual, "hello backup")
				So(entries["sub/data.bin"].content, ShouldEqual, big)
			})
		})

		Convey("When a run is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := NewTar(false).Archive(ctx, sourceDir, stagingDir, 1024)

			Convey("It should fail with a CompressionError", func() {
				var cerr *domain.CompressionError
				So(err, ShouldNotBeNil)
				So(errors.As(err, &cerr), ShouldBeTrue)
			})
		})
	})

	Convey("Given an empty source directory", t, func() {
		sourceDir, err := os.MkdirTemp("", "archiver_empty")
		So(err, ShouldBeNil)
		defer os.RemoveAll(sourceDir)

		stagingDir, err := os.MkdirTemp("", "archiver_staging")
		So(err, ShouldBeNil)
		defer os.RemoveAll(stagingDir)

		Convey("Archiving should produce zero chunks and no error", func() {
			chunks, err := NewTar(true).Archive(context.Background(), sourceDir, stagingDir, 1024)
			So(err, ShouldBeNil)
			So(chunks, ShouldBeEmpty)

			left, err := os.ReadDir(stagingDir)
			So(err, ShouldBeNil)
			So(left, ShouldBeEmpty)
		})
	})

	Convey("Given an invalid invocation", t, func() {
		stagingDir, err := os.MkdirTemp("", "archiver_staging")
		So(err, ShouldBeNil)
		defer os.RemoveAll(stagingDir)

		Convey("A missing source directory should fail with a CompressionError", func() {
			_, err := NewTar(false).Archive(context.Background(), "/does/not/exist", stagingDir, 1024)
			var cerr *domain.CompressionError
			So(err, ShouldNotBeNil)
			So(errors.As(err, &cerr), ShouldBeTrue)
		})

		Convey("A non-positive chunk size should fail with a CompressionError", func() {
			sourceDir, err := os.MkdirTemp("", "archiver_src")
			So(err, ShouldBeNil)
			defer os.RemoveAll(sourceDir)

			_, aerr := NewTar(false).Archive(context.Background(), sourceDir, stagingDir, 0)
			var cerr *domain.CompressionError
			So(aerr, ShouldNotBeNil)
			So(errors.As(aerr, &cerr), ShouldBeTrue)
		})
	})
}

func TestChunkSuffixes(t *testing.T) {
	Convey("Chunk suffixes follow split(1) order", t, func() {
		So(suffix(0), ShouldEqual, "aa")
		So(suffix(1), ShouldEqual, "ab")
		So(suffix(25), ShouldEqual, "az")
		So(suffix(26), ShouldEqual, "ba")
		So(suffix(maxChunks-1), ShouldEqual, "zz")

		Convey("And are strictly increasing lexicographically", func() {
			for i := 1; i < maxChunks; i++ {
				So(suffix(i-1) < suffix(i), ShouldBeTrue)
			}
		})
	})
}
