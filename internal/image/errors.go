package image

import (
	"errors"
	"fmt"
)

// ErrDecode is returned when the source bytes are not a readable image.
var ErrDecode = errors.New("image could not be decoded")

// DecodeError carries the path of the unreadable image.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}
