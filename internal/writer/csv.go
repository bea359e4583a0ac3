package writer

import (
	"bytes"
	"encoding/csv"
	"os"
)

type MapperFunc[T any] func(T) []string

type HeaderFunc func() []string

// csvEncoder appends one row per record. The header goes in only when the
// file is new or empty, so restarting a run keeps a single header row.
type csvEncoder[T any] struct {
	path   string
	mapper MapperFunc[T]
	header HeaderFunc
}

func (e *csvEncoder[T]) append(item T) error {
	file, err := os.OpenFile(e.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return &SinkWriteError{Op: "open", Path: e.path, Err: err}
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return &SinkWriteError{Op: "stat", Path: e.path, Err: err}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if info.Size() == 0 {
		if err := w.Write(e.header()); err != nil {
			return &SinkWriteError{Op: "header", Path: e.path, Err: err}
		}
	}
	if err := w.Write(e.mapper(item)); err != nil {
		return &SinkWriteError{Op: "row", Path: e.path, Err: err}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &SinkWriteError{Op: "row", Path: e.path, Err: err}
	}

	if _, err := file.Write(buf.Bytes()); err != nil {
		return &SinkWriteError{Op: "write", Path: e.path, Err: err}
	}
	return nil
}

func (e *csvEncoder[T]) close() error {
	return nil
}
