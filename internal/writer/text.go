package writer

import (
	"os"

	"github.com/DanelSchwartz/TeleScan-OCR/internal/data"
)

// textEncoder appends "Key: value" blocks separated by a blank line.
type textEncoder struct {
	path string
}

func (e *textEncoder) append(rec data.MatchRecord) error {
	file, err := os.OpenFile(e.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return &SinkWriteError{Op: "open", Path: e.path, Err: err}
	}
	defer file.Close()

	if _, err := file.WriteString(data.MapTextBlock(rec)); err != nil {
		return &SinkWriteError{Op: "write", Path: e.path, Err: err}
	}
	return nil
}

func (e *textEncoder) close() error {
	return nil
}
