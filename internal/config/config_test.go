package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/semmidev/kibotos/internal/domain"
	"github.com/spf13/pflag"
	. "github.com/smartystreets/goconvey/convey"
)

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Bool("verbose", false, "")
	fs.Bool("yes", false, "")
	fs.Bool("transfer-only", false, "")
	fs.Bool("archive-only", false, "")
	fs.Bool("gzip", false, "")
	fs.String("source", "~", "")
	fs.Int64("chunk-size", DefaultChunkSize, "")
	fs.String("host", "home_server", "")
	fs.String("remote-dir", DefaultRemoteDir, "")
	return fs
}

func TestLoad(t *testing.T) {
	Convey("Given no config file and no flags", t, func() {
		cfg, err := Load("", nil)

		Convey("The defaults mirror the classic invocation", func() {
			So(err, ShouldBeNil)
			So(cfg.Backup.StagingDir, ShouldEqual, "/home/tmp")
			So(cfg.Backup.ChunkSize, ShouldEqual, int64(DefaultChunkSize))
			So(cfg.Backup.Compress, ShouldBeFalse)
			So(cfg.Destination.Type, ShouldEqual, "sftp")
			So(cfg.Destination.Host, ShouldEqual, "home_server")
			So(cfg.Destination.RemoteDir, ShouldEqual, DefaultRemoteDir)
			So(cfg.Mode(), ShouldEqual, domain.ModeFull)
		})
	})

	Convey("Given a config file", t, func() {
		dir, err := os.MkdirTemp("", "config_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(dir)

		path := filepath.Join(dir, "config.yaml")
		yaml := `
backup:
  staging_dir: /mnt/scratch
  chunk_size: 1048576
  compress: true
destination:
  type: sftp
  host: nas
  remote_dir: /srv/backups
`
		So(os.WriteFile(path, []byte(yaml), 0644), ShouldBeNil)

		Convey("Its values override the defaults", func() {
			cfg, err := Load(path, nil)
			So(err, ShouldBeNil)
			So(cfg.Backup.StagingDir, ShouldEqual, "/mnt/scratch")
			So(cfg.Backup.ChunkSize, ShouldEqual, int64(1048576))
			So(cfg.Backup.Compress, ShouldBeTrue)
			So(cfg.Destination.Host, ShouldEqual, "nas")
		})

		Convey("Changed flags override the file", func() {
			flags := testFlags()
			So(flags.Parse([]string{"--host", "other_box", "--chunk-size", "2048"}), ShouldBeNil)

			cfg, err := Load(path, flags)
			So(err, ShouldBeNil)
			So(cfg.Destination.Host, ShouldEqual, "other_box")
			So(cfg.Backup.ChunkSize, ShouldEqual, int64(2048))
			// Untouched flag defaults do not mask the file.
			So(cfg.Backup.StagingDir, ShouldEqual, "/mnt/scratch")
		})

		Convey("A missing file is an error", func() {
			_, err := Load(filepath.Join(dir, "nope.yaml"), nil)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given conflicting mode flags", t, func() {
		flags := testFlags()
		So(flags.Parse([]string{"--transfer-only", "--archive-only"}), ShouldBeNil)

		_, err := Load("", flags)

		Convey("Load fails with a ConfigurationError", func() {
			var cfgErr *domain.ConfigurationError
			So(err, ShouldNotBeNil)
			So(errors.As(err, &cfgErr), ShouldBeTrue)
			So(cfgErr.Reason, ShouldContainSubstring, "mutually exclusive")
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given a baseline valid config", t, func() {
		base := func() *Config {
			return &Config{
				Backup: BackupConfig{
					StagingDir: "/home/tmp",
					ChunkSize:  DefaultChunkSize,
				},
				Destination: DestinationConfig{Type: "sftp", Host: "home_server"},
			}
		}

		Convey("It validates", func() {
			So(base().Validate(), ShouldBeNil)
		})

		Convey("A non-positive chunk size is rejected", func() {
			cfg := base()
			cfg.Backup.ChunkSize = 0
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("An unknown destination type is rejected", func() {
			cfg := base()
			cfg.Destination.Type = "carrier-pigeon"
			err := cfg.Validate()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "unknown destination type")
		})

		Convey("S3 requires a bucket", func() {
			cfg := base()
			cfg.Destination.Type = "s3"
			err := cfg.Validate()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "bucket")
		})

		Convey("Google Drive requires credentials and a folder", func() {
			cfg := base()
			cfg.Destination.Type = "gdrive"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("An enabled telegram notifier requires a token", func() {
			cfg := base()
			cfg.Notifier.Telegram.Enabled = true
			So(cfg.Validate(), ShouldNotBeNil)
		})
	})
}

func TestMode(t *testing.T) {
	Convey("Mode derivation from the exclusive flags", t, func() {
		cfg := &Config{}
		So(cfg.Mode(), ShouldEqual, domain.ModeFull)

		cfg.Backup.ArchiveOnly = true
		So(cfg.Mode(), ShouldEqual, domain.ModeArchiveOnly)

		cfg.Backup.ArchiveOnly = false
		cfg.Backup.TransferOnly = true
		So(cfg.Mode(), ShouldEqual, domain.ModeTransferOnly)
	})
}

func TestJob(t *testing.T) {
	Convey("Job construction expands the home shorthand", t, func() {
		cfg, err := Load("", nil)
		So(err, ShouldBeNil)

		job, err := cfg.Job()
		So(err, ShouldBeNil)

		home, err := os.UserHomeDir()
		So(err, ShouldBeNil)
		So(job.Source, ShouldEqual, home)
		So(job.Mode, ShouldEqual, domain.ModeFull)
		So(job.ChunkSize, ShouldEqual, int64(DefaultChunkSize))
	})
}
