package ocr

import (
	"errors"
	"fmt"
)

var (
	// ErrEngine marks any failure of the recognition engine, including
	// unreadable input and timeouts.
	ErrEngine = errors.New("ocr engine failed")

	ErrTimeout = errors.New("ocr timed out")
)

// EngineError wraps errors with the operation and image that failed.
type EngineError struct {
	Op   string
	Path string
	Err  error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("ocr: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

func (e *EngineError) Is(target error) bool {
	return target == ErrEngine || errors.Is(e.Err, target)
}
