package errors

import "errors"

// Sync errors. None of these are fatal to the process; callers match them
// with errors.Is to pick a recovery path.
var (
	ErrTransientNetwork       = errors.New("remote store unreachable")
	ErrLocalStorageCorruption = errors.New("local ledger unreadable")
	ErrRemoteRejection        = errors.New("remote store rejected the write")
)

// Note errors.
var (
	ErrNoteNotFound = errors.New("note not found")
	ErrEmptyNote    = errors.New("note has no title or content")
	ErrInvalidMode  = errors.New("invalid note mode")
)
