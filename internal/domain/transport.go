package domain

import "context"

// ProgressFunc receives monotonically increasing transferred byte counts
// for a single upload. total is the size of the local file.
type ProgressFunc func(transferred, total int64)

// Transport uploads exactly one local file to the destination configured at
// construction time. A nil error means the full byte count reached the
// remote path; there is no partial-transfer state to resume from.
type Transport interface {
	Upload(ctx context.Context, localPath string, progress ProgressFunc) error
	Close() error
}

// ProgressSink observes the lifecycle of one upload. Verbose and quiet
// terminal modes are just two implementations of this interface.
type ProgressSink interface {
	Begin(name string, total int64)
	Update(transferred, total int64)
	End(name string, err error)
}

// NopSink discards all progress events.
type NopSink struct{}

func (NopSink) Begin(string, int64) {}
func (NopSink) Update(int64, int64) {}
func (NopSink) End(string, error)   {}
