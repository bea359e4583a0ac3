package writer

import (
	"errors"
	"fmt"
)

var (
	// ErrSinkWrite marks a record that could not be persisted.
	ErrSinkWrite = errors.New("sink write failed")

	// ErrEmptyText is returned for records without extracted text; they are
	// never written.
	ErrEmptyText = errors.New("record has empty text")

	ErrClosed = errors.New("writer is shutting down")
)

type SinkWriteError struct {
	Op   string
	Path string
	Err  error
}

func (e *SinkWriteError) Error() string {
	return fmt.Sprintf("sink: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *SinkWriteError) Unwrap() error {
	return e.Err
}

func (e *SinkWriteError) Is(target error) bool {
	return target == ErrSinkWrite || errors.Is(e.Err, target)
}
