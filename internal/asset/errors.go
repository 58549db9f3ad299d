package asset

import (
	"strings"
)

// Kind categorizes an asset error.
type Kind string

const (
	KindLoadingFailed         Kind = "loading_failed"
	KindInvalidFileExtension  Kind = "invalid_file_extension"
	KindNotLoaded             Kind = "not_loaded"
	KindReloadingFailed       Kind = "reloading_failed"
	KindLockPoisoned          Kind = "lock_poisoned"
	KindWatcherInitialization Kind = "watcher_initialization"
	KindPathConflict          Kind = "path_conflict"
)

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrLoadingFailed         = &Error{Kind: KindLoadingFailed}
	ErrInvalidFileExtension  = &Error{Kind: KindInvalidFileExtension}
	ErrNotLoaded             = &Error{Kind: KindNotLoaded}
	ErrReloadingFailed       = &Error{Kind: KindReloadingFailed}
	ErrLockPoisoned          = &Error{Kind: KindLockPoisoned}
	ErrWatcherInitialization = &Error{Kind: KindWatcherInitialization}
	ErrPathConflict          = &Error{Kind: KindPathConflict}
)

// Error is the structured error returned by asset constructors, resources,
// managers and the watcher.
type Error struct {
	Kind    Kind
	ID      string
	Path    string
	Message string
	Cause   error
}

func NewError(kind Kind, path, message string, cause error) *Error {
	return &Error{Kind: kind, Path: path, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.ID != "" {
		b.WriteString(" [")
		b.WriteString(e.ID)
		b.WriteByte(']')
	}
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// withID returns a copy of err tagged with id when err is an untagged *Error.
func withID(err error, id string) error {
	typed, ok := err.(*Error)
	if !ok || typed.ID != "" {
		return err
	}
	copied := *typed
	copied.ID = id
	return &copied
}

// BatchError reports the reload that aborted a ReloadManyByPath batch.
// Remaining holds the input paths that were not attempted.
type BatchError struct {
	ID        string
	Path      string
	Err       error
	Remaining []string
}

func (e *BatchError) Error() string {
	return "reload " + e.ID + " (" + e.Path + "): " + e.Err.Error()
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
