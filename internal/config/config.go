package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/semmidev/kibotos/internal/domain"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultChunkSize is 6 GiB, small enough to fit on most scratch volumes
// and transfer targets.
const DefaultChunkSize = 6 * 1024 * 1024 * 1024

// DefaultRemoteDir is where chunks land when no remote directory override
// is given.
const DefaultRemoteDir = "/var/backups/kibotos"

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Backup      BackupConfig      `mapstructure:"backup"`
	Destination DestinationConfig `mapstructure:"destination"`
	Notifier    NotifierConfig    `mapstructure:"notifier"`
}

type AppConfig struct {
	Name      string `mapstructure:"name"`
	LogLevel  string `mapstructure:"log_level"`
	LogFile   string `mapstructure:"log_file"`
	Verbose   bool   `mapstructure:"verbose"`
	AssumeYes bool   `mapstructure:"assume_yes"`
}

type BackupConfig struct {
	Source        string `mapstructure:"source"`
	StagingDir    string `mapstructure:"staging_dir"`
	ChunkSize     int64  `mapstructure:"chunk_size"`
	Compress      bool   `mapstructure:"compress"`
	TransferOnly  bool   `mapstructure:"transfer_only"`
	ArchiveOnly   bool   `mapstructure:"archive_only"`
	RetentionDays int    `mapstructure:"retention_days"`
	Schedule      string `mapstructure:"schedule"`
}

type DestinationConfig struct {
	Type      string `mapstructure:"type"`
	RemoteDir string `mapstructure:"remote_dir"`

	// SFTP
	Host                  string `mapstructure:"host"`
	Port                  int    `mapstructure:"port"`
	User                  string `mapstructure:"user"`
	IdentityFile          string `mapstructure:"identity_file"`
	KnownHostsFile        string `mapstructure:"known_hosts_file"`
	InsecureIgnoreHostKey bool   `mapstructure:"insecure_ignore_host_key"`

	// AWS S3
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`

	// Google Drive
	CredentialsFile string `mapstructure:"credentials_file"`
	FolderID        string `mapstructure:"folder_id"`
}

type NotifierConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// flagKeys maps command-line flag names onto viper config keys so that
// flags override the config file which overrides the defaults.
var flagKeys = map[string]string{
	"verbose":       "app.verbose",
	"yes":           "app.assume_yes",
	"source":        "backup.source",
	"chunk-size":    "backup.chunk_size",
	"gzip":          "backup.compress",
	"transfer-only": "backup.transfer_only",
	"archive-only":  "backup.archive_only",
	"host":          "destination.host",
	"remote-dir":    "destination.remote_dir",
}

// Load reads the optional config file at path, layers the given flag set on
// top, and validates the result. An empty path means defaults plus flags.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("app.name", "kibotos")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_file", "backup.log")
	v.SetDefault("backup.source", "~")
	v.SetDefault("backup.staging_dir", "/home/tmp")
	v.SetDefault("backup.chunk_size", int64(DefaultChunkSize))
	v.SetDefault("destination.type", "sftp")
	v.SetDefault("destination.host", "home_server")
	v.SetDefault("destination.remote_dir", DefaultRemoteDir)
	v.SetDefault("destination.port", 22)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Backup.TransferOnly && c.Backup.ArchiveOnly {
		return &domain.ConfigurationError{
			Reason: "transfer-only and archive-only are mutually exclusive",
		}
	}

	if c.Backup.StagingDir == "" {
		return &domain.ConfigurationError{Reason: "backup.staging_dir is required"}
	}
	if c.Backup.ChunkSize <= 0 {
		return &domain.ConfigurationError{Reason: "backup.chunk_size must be positive"}
	}

	switch c.Destination.Type {
	case "sftp":
		if c.Destination.Host == "" {
			return &domain.ConfigurationError{Reason: "destination.host is required for sftp"}
		}
	case "s3":
		if c.Destination.Bucket == "" {
			return &domain.ConfigurationError{Reason: "destination.bucket is required for s3"}
		}
	case "gdrive":
		if c.Destination.CredentialsFile == "" || c.Destination.FolderID == "" {
			return &domain.ConfigurationError{
				Reason: "destination.credentials_file and destination.folder_id are required for gdrive",
			}
		}
	default:
		return &domain.ConfigurationError{
			Reason: fmt.Sprintf("unknown destination type: %s", c.Destination.Type),
		}
	}

	if c.Notifier.Telegram.Enabled && c.Notifier.Telegram.BotToken == "" {
		return &domain.ConfigurationError{Reason: "notifier.telegram.bot_token is required"}
	}

	return nil
}

// Mode derives the job mode from the mutually exclusive flags. Validate has
// already rejected the both-set case.
func (c *Config) Mode() domain.Mode {
	switch {
	case c.Backup.TransferOnly:
		return domain.ModeTransferOnly
	case c.Backup.ArchiveOnly:
		return domain.ModeArchiveOnly
	default:
		return domain.ModeFull
	}
}

// Job builds the immutable work unit for this invocation.
func (c *Config) Job() (domain.Job, error) {
	source, err := expandPath(c.Backup.Source)
	if err != nil {
		return domain.Job{}, fmt.Errorf("resolve source directory: %w", err)
	}

	return domain.Job{
		Source:     source,
		StagingDir: c.Backup.StagingDir,
		ChunkSize:  c.Backup.ChunkSize,
		Compress:   c.Backup.Compress,
		Host:       c.Destination.Host,
		RemoteDir:  c.Destination.RemoteDir,
		Mode:       c.Mode(),
		CreatedAt:  time.Now(),
	}, nil
}

func expandPath(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
	}
	return filepath.Abs(p)
}
