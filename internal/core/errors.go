package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("database file does not exist")
	ErrNoFilePath        = errors.New("database does not point to a valid file")
	ErrReadOnly          = errors.New("database file is read-only")
	ErrUnmergedChanges   = errors.New("database file has unmerged changes")
	ErrKeyNotTransformed = errors.New("key not transformed, refusing to write with a stale key")
	ErrNoKey             = errors.New("no key material configured")
)

// FormatError reports a codec encode/decode failure.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid database format: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid database format: %s", e.Reason)
}

func (e *FormatError) Unwrap() error { return e.Err }

// KdfError reports a failed key derivation.
type KdfError struct {
	Err error
}

func (e *KdfError) Error() string {
	return fmt.Sprintf("key derivation failed: %v", e.Err)
}

func (e *KdfError) Unwrap() error { return e.Err }

// DeviceError reports challenge-response hardware I/O failure.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("challenge-response device error: %v", e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// WriteError reports a failure during the write phase of a save. The
// previously saved file is untouched.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write database: %v", e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// CommitError reports a failure while moving a fully written database
// into place. The original file is untouched; if a backup was made it
// still exists.
type CommitError struct {
	Err error
	// TempFile is the path of the surviving temporary file holding the
	// complete new database, if it was deliberately kept for recovery.
	TempFile string
}

func (e *CommitError) Error() string {
	if e.TempFile != "" {
		return fmt.Sprintf("failed to commit database: %v\nnew database preserved at %s", e.Err, e.TempFile)
	}
	return fmt.Sprintf("failed to commit database: %v", e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }
