package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnreadableFile = errors.New("unreadable file")
	ErrEmptyDocument  = errors.New("empty document")
	ErrWriteFailure   = errors.New("write failure")
	ErrConfiguration  = errors.New("configuration error")
)

// FileError records a per-file failure. Kind is one of the sentinel errors
// above, so callers can match it with errors.Is.
type FileError struct {
	Path string
	Kind error
	Err  error
}

func NewFileError(path string, kind, err error) *FileError {
	return &FileError{Path: path, Kind: kind, Err: err}
}

func (e *FileError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Path, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Path, e.Kind, e.Err)
}

func (e *FileError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
