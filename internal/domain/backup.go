package domain

import "time"

// Mode selects which halves of the backup pipeline run.
type Mode string

const (
	// ModeFull archives the source and transfers the resulting chunks,
	// deleting each local chunk after its transfer is confirmed.
	ModeFull Mode = "full"
	// ModeArchiveOnly produces chunks in the staging directory and stops.
	ModeArchiveOnly Mode = "archive-only"
	// ModeTransferOnly transfers chunks already present in the staging
	// directory. Chunks are kept locally after transfer.
	ModeTransferOnly Mode = "transfer-only"
)

// Job is the unit of work for one invocation. Immutable once built.
type Job struct {
	Source     string
	StagingDir string
	ChunkSize  int64
	Compress   bool
	Host       string
	RemoteDir  string
	Mode       Mode
	CreatedAt  time.Time
}

// Chunk is one fixed-size slice of the archive stream, materialized as a
// file in the staging directory. Its filename sorts lexicographically in
// creation order, which is what makes reassembly deterministic.
type Chunk struct {
	Path   string
	Suffix string
	Size   int64
}

// TransferResult is the outcome of one chunk's upload attempt.
type TransferResult struct {
	Chunk   Chunk
	Err     error
	Deleted bool
}

func (r TransferResult) Succeeded() bool {
	return r.Err == nil
}

// Report summarizes a finished job. All chunks are attempted exactly once;
// the job as a whole failed if any transfer did.
type Report struct {
	Archived  int
	Transfers []TransferResult
}

func (r *Report) Failed() int {
	n := 0
	for _, t := range r.Transfers {
		if t.Err != nil {
			n++
		}
	}
	return n
}

func (r *Report) Deleted() int {
	n := 0
	for _, t := range r.Transfers {
		if t.Deleted {
			n++
		}
	}
	return n
}
