package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/semmidev/kibotos/internal/domain"
)

// State names the phases of one backup run. Every transition is written to
// the audit log.
type State string

const (
	StateIdle         State = "idle"
	StateValidating   State = "validating-environment"
	StateArchiving    State = "archiving"
	StateCollecting   State = "collecting-existing"
	StateTransferring State = "transferring"
	StateDone         State = "done"
)

// SpaceGuard checks the staging directory before any chunk is written.
type SpaceGuard interface {
	Check(dir string, required int64) error
}

// ChunkScanner discovers previously produced chunks for transfer-only runs.
type ChunkScanner interface {
	Discover(dir string) ([]domain.Chunk, error)
}

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

// Backup drives one job through its states: validate the staging area,
// archive the source into chunks, then transfer the chunks one at a time,
// deleting each local chunk only after its transfer is confirmed.
type Backup struct {
	archiver  domain.Archiver
	transport domain.Transport
	guard     SpaceGuard
	scanner   ChunkScanner
	sink      domain.ProgressSink
	logger    Logger
	state     State
}

func NewBackup(
	archiver domain.Archiver,
	transport domain.Transport,
	guard SpaceGuard,
	scanner ChunkScanner,
	sink domain.ProgressSink,
	logger Logger,
) *Backup {
	if sink == nil {
		sink = domain.NopSink{}
	}
	return &Backup{
		archiver:  archiver,
		transport: transport,
		guard:     guard,
		scanner:   scanner,
		sink:      sink,
		logger:    logger,
		state:     StateIdle,
	}
}

func (uc *Backup) State() State {
	return uc.state
}

// Execute runs the job to completion. Per-chunk transfer failures do not
// abort the run: every chunk is attempted exactly once and the job is
// reported failed afterwards if any of them failed.
func (uc *Backup) Execute(ctx context.Context, job domain.Job) (*domain.Report, error) {
	uc.state = StateIdle
	report := &domain.Report{}

	var chunks []domain.Chunk
	var err error

	switch job.Mode {
	case domain.ModeFull, domain.ModeArchiveOnly, domain.ModeTransferOnly:
	default:
		return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("unknown mode %q", job.Mode)}
	}

	if job.Mode == domain.ModeTransferOnly {
		uc.setState(StateCollecting, job)
		chunks, err = uc.scanner.Discover(job.StagingDir)
		if err != nil {
			uc.logger.Errorf("chunk discovery in %s failed: %v", job.StagingDir, err)
			return nil, err
		}
		if len(chunks) == 0 {
			uc.logger.Warnf("no chunks found in %s, nothing to transfer", job.StagingDir)
			uc.setState(StateDone, job)
			return report, nil
		}
		uc.logger.Infof("found %d chunk(s) to transfer", len(chunks))
	} else {
		uc.setState(StateValidating, job)
		if err := uc.guard.Check(job.StagingDir, job.ChunkSize); err != nil {
			uc.logger.Errorf("environment check failed: %v", err)
			return nil, err
		}

		uc.setState(StateArchiving, job)
		uc.logger.Infof("archiving %s (compress=%t, chunk size=%d)", job.Source, job.Compress, job.ChunkSize)
		chunks, err = uc.archiver.Archive(ctx, job.Source, job.StagingDir, job.ChunkSize)
		if err != nil {
			uc.logger.Errorf("archive step failed: %v", err)
			return nil, err
		}
		report.Archived = len(chunks)

		if len(chunks) == 0 {
			uc.logger.Warnf("source %s produced no chunks, nothing to do", job.Source)
			uc.setState(StateDone, job)
			return report, nil
		}
		uc.logger.Infof("archive complete: %d chunk(s) in %s", len(chunks), job.StagingDir)

		if job.Mode == domain.ModeArchiveOnly {
			uc.logger.Infof("archive-only mode, chunks left in %s", job.StagingDir)
			uc.setState(StateDone, job)
			return report, nil
		}
	}

	uc.setState(StateTransferring, job)
	for _, chunk := range chunks {
		report.Transfers = append(report.Transfers, uc.transferChunk(ctx, job, chunk))
	}
	uc.setState(StateDone, job)

	if failed := report.Failed(); failed > 0 {
		return report, fmt.Errorf("%d of %d chunk transfers failed", failed, len(chunks))
	}
	return report, nil
}

func (uc *Backup) transferChunk(ctx context.Context, job domain.Job, chunk domain.Chunk) domain.TransferResult {
	name := filepath.Base(chunk.Path)
	uc.logger.Infof("transfer start: %s (%d bytes) -> %s", name, chunk.Size, job.Host)

	uc.sink.Begin(name, chunk.Size)
	err := uc.transport.Upload(ctx, chunk.Path, uc.sink.Update)
	uc.sink.End(name, err)

	if err != nil {
		terr := &domain.TransferError{Path: chunk.Path, Host: job.Host, Err: err}
		uc.logger.Errorf("transfer failed: %v (chunk kept for retry)", terr)
		return domain.TransferResult{Chunk: chunk, Err: terr}
	}
	uc.logger.Infof("transfer complete: %s", name)

	result := domain.TransferResult{Chunk: chunk}
	if job.Mode != domain.ModeTransferOnly {
		if rmErr := os.Remove(chunk.Path); rmErr != nil {
			uc.logger.Warnf("failed to delete transferred chunk %s: %v", chunk.Path, rmErr)
		} else {
			result.Deleted = true
			uc.logger.Infof("deleted local chunk: %s", chunk.Path)
		}
	}
	return result
}

func (uc *Backup) setState(s State, job domain.Job) {
	uc.state = s
	uc.logger.Infof("state: %s (mode=%s)", s, job.Mode)
}
