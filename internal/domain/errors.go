package domain

import "fmt"

// ConfigurationError reports an invalid invocation, such as conflicting
// mode flags. Fatal, raised before any side effect.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// EnvironmentError reports an unusable staging directory: missing, not
// writable, or without enough free space. Fatal, raised before archiving.
type EnvironmentError struct {
	Dir    string
	Reason string
	Err    error
}

func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("staging directory %s: %s", e.Dir, e.Reason)
}

func (e *EnvironmentError) Unwrap() error {
	return e.Err
}

// CompressionError reports a failed archive step. Partially written chunks
// are left in the staging directory for inspection.
type CompressionError struct {
	Source string
	Err    error
}

func (e *CompressionError) Error() string {
	return fmt.Sprintf("archiving %s: %v", e.Source, e.Err)
}

func (e *CompressionError) Unwrap() error {
	return e.Err
}

// TransferError reports a failed upload of a single chunk. Non-fatal to the
// job: the chunk stays on disk and the remaining chunks are still attempted.
type TransferError struct {
	Path string
	Host string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transferring %s to %s: %v", e.Path, e.Host, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
