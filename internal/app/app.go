package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/semmidev/kibotos/internal/adapter/archiver"
	"github.com/semmidev/kibotos/internal/adapter/notifier"
	"github.com/semmidev/kibotos/internal/adapter/staging"
	"github.com/semmidev/kibotos/internal/adapter/transport"
	"github.com/semmidev/kibotos/internal/config"
	"github.com/semmidev/kibotos/internal/domain"
	"github.com/semmidev/kibotos/internal/infrastructure/logger"
	"github.com/semmidev/kibotos/internal/infrastructure/progress"
	"github.com/semmidev/kibotos/internal/infrastructure/prompt"
	"github.com/semmidev/kibotos/internal/infrastructure/scheduler"
	"github.com/semmidev/kibotos/internal/usecase"
)

type Notifier interface {
	Notify(message string) error
}

type App struct {
	config    *config.Config
	logger    *logger.Logger
	job       domain.Job
	archiver  domain.Archiver
	guard     *staging.Guard
	scanner   *staging.Scanner
	sink      domain.ProgressSink
	cleanupUC *usecase.Cleanup
	notifier  Notifier
	scheduler *scheduler.Scheduler

	// Transports dial out, so they are only built once the operator has
	// confirmed the run.
	newTransport func() (domain.Transport, error)
}

func New(cfg *config.Config) (*App, error) {
	level := cfg.App.LogLevel
	if cfg.App.Verbose {
		level = "debug"
	}
	log, err := logger.New(level, cfg.App.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	job, err := cfg.Job()
	if err != nil {
		return nil, err
	}

	var sink domain.ProgressSink
	if cfg.App.Verbose {
		sink = progress.NewVerbose(os.Stdout)
	} else {
		sink = progress.NewBar()
	}

	scanner := staging.NewScanner()

	a := &App{
		config:       cfg,
		logger:       log,
		job:          job,
		archiver:     archiver.NewTar(cfg.Backup.Compress),
		guard:        staging.NewGuard(),
		scanner:      scanner,
		sink:         sink,
		cleanupUC:    usecase.NewCleanup(scanner, log, cfg.Backup.RetentionDays),
		newTransport: transportFactory(&cfg.Destination),
	}

	if cfg.Notifier.Telegram.Enabled {
		tg, err := notifier.NewTelegram(&cfg.Notifier.Telegram)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telegram notifier: %w", err)
		}
		a.notifier = tg
		log.Infof("telegram notifications enabled")
	}

	if cfg.Backup.Schedule != "" {
		a.scheduler = scheduler.New(log)
	}

	return a, nil
}

func transportFactory(cfg *config.DestinationConfig) func() (domain.Transport, error) {
	switch cfg.Type {
	case "s3":
		return func() (domain.Transport, error) { return transport.NewS3(cfg) }
	case "gdrive":
		return func() (domain.Transport, error) { return transport.NewGDrive(cfg) }
	default:
		return func() (domain.Transport, error) { return transport.NewSFTP(cfg) }
	}
}

func (a *App) Run(ctx context.Context) error {
	if a.scheduler != nil {
		return a.runScheduled(ctx)
	}

	if !a.config.App.AssumeYes {
		fmt.Println(a.summary())
		ok, err := prompt.Confirm("Do you want to proceed")
		if err != nil {
			return err
		}
		if !ok {
			a.logger.Infof("operation cancelled by operator before any action")
			fmt.Println("Operation cancelled.")
			return nil
		}
	}

	return a.runOnce(ctx)
}

func (a *App) runScheduled(ctx context.Context) error {
	spec := a.config.Backup.Schedule
	if err := a.scheduler.AddJob("backup", spec, a.runOnce); err != nil {
		return fmt.Errorf("failed to schedule backup: %w", err)
	}
	a.scheduler.Start()
	a.logger.Infof("scheduler started: %s", spec)

	<-ctx.Done()
	return nil
}

func (a *App) runOnce(ctx context.Context) error {
	var tp domain.Transport
	if a.job.Mode != domain.ModeArchiveOnly {
		var err error
		tp, err = a.newTransport()
		if err != nil {
			a.logger.Errorf("failed to open transport to %s: %v", a.job.Host, err)
			a.notify(fmt.Sprintf("❌ Backup failed: could not reach %s", a.job.Host))
			return err
		}
		defer tp.Close()
	}

	uc := usecase.NewBackup(a.archiver, tp, a.guard, a.scanner, a.sink, a.logger)
	report, err := uc.Execute(ctx, a.job)

	if cleanupErr := a.cleanupUC.Execute(ctx, a.job.StagingDir); cleanupErr != nil {
		a.logger.Warnf("staging cleanup failed: %v", cleanupErr)
	}

	a.notify(a.resultMessage(report, err))
	return err
}

func (a *App) notify(message string) {
	if a.notifier == nil {
		return
	}
	if err := a.notifier.Notify(message); err != nil {
		a.logger.Warnf("notification failed: %v", err)
	}
}

// summary mirrors what the run will do so the operator can confirm it.
func (a *App) summary() string {
	lines := []string{"Summary of actions:"}

	switch a.job.Mode {
	case domain.ModeTransferOnly:
		lines = append(lines,
			fmt.Sprintf("- Transfer existing backup chunks from %s to %s", a.job.StagingDir, a.destination()))
	case domain.ModeArchiveOnly:
		lines = append(lines,
			fmt.Sprintf("- Archive the directory: %s", a.job.Source),
			fmt.Sprintf("- Chunks will be staged in %s", a.job.StagingDir))
	default:
		lines = append(lines,
			fmt.Sprintf("- Archive the directory: %s", a.job.Source),
			fmt.Sprintf("- Transfer chunks to %s", a.destination()),
			"- Remove local chunks after each successful transfer")
	}

	if a.job.Compress {
		lines = append(lines, "- Using gzip compression")
	}
	if a.job.ChunkSize != config.DefaultChunkSize {
		lines = append(lines, fmt.Sprintf("- Using custom chunk size: %d bytes", a.job.ChunkSize))
	}
	if a.config.App.Verbose {
		lines = append(lines, "- Verbose mode: detailed output will be displayed")
	}

	return strings.Join(lines, "\n")
}

func (a *App) destination() string {
	d := &a.config.Destination
	switch d.Type {
	case "s3":
		return fmt.Sprintf("s3://%s/%s", d.Bucket, d.Prefix)
	case "gdrive":
		return fmt.Sprintf("gdrive folder %s", d.FolderID)
	default:
		return fmt.Sprintf("%s:%s", d.Host, a.job.RemoteDir)
	}
}

func (a *App) resultMessage(report *domain.Report, err error) string {
	if err != nil || report == nil {
		return fmt.Sprintf("❌ Backup of %s failed. See %s for details.", a.job.Source, a.config.App.LogFile)
	}
	if len(report.Transfers) == 0 && report.Archived == 0 {
		return fmt.Sprintf("ℹ️ Backup of %s: nothing to do.", a.job.Source)
	}
	return fmt.Sprintf(
		"✅ Backup completed\n\n📁 Source: %s\n📦 Chunks: %d archived, %d transferred, %d deleted locally",
		a.job.Source, report.Archived, len(report.Transfers)-report.Failed(), report.Deleted())
}

func (a *App) Shutdown() {
	a.logger.Infof("shutting down")
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	a.logger.Close()
}
