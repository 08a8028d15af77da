package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidFormat      = errors.New("invalid format")
	ErrFileSystem         = errors.New("file system error")
	ErrCorruptionDetected = errors.New("corruption detected")
	// ErrRollbackFailed means the live settings may be inconsistent and a
	// human has to look at it. Never retried automatically.
	ErrRollbackFailed = errors.New("rollback failed")

	ErrInvalidInterval = errors.New("interval must be between 1 and 60 minutes")
	ErrInvalidSetting  = errors.New("invalid setting")
	ErrAlreadyRunning  = errors.New("monitor is already running")
	ErrMonitorStopped  = errors.New("monitor stopped after repeated scan errors")
)

// Error carries the operation and path an error kind occurred on.
type Error struct {
	Kind error
	Op   string
	Path string
	Err  error
}

// NewError wraps err as kind for op on path.
func NewError(kind error, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg = fmt.Sprintf("%s %s", msg, e.Path)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", msg, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", msg, e.Kind)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
