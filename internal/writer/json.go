package writer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/DanelSchwartz/TeleScan-OCR/internal/data"
)

// renameFile is swapped in tests to simulate a crash before commit.
var renameFile = os.Rename

// jsonEncoder keeps the output as one JSON array. Every append rewrites the
// whole array into a temp file and renames it over the previous version.
type jsonEncoder struct {
	path string
}

func (e *jsonEncoder) append(rec data.MatchRecord) error {
	records, err := ReadJSON(e.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return &SinkWriteError{Op: "load", Path: e.path, Err: err}
	}
	records = append(records, rec)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return &SinkWriteError{Op: "encode", Path: e.path, Err: err}
	}

	if err := writeAtomic(e.path, buf.Bytes()); err != nil {
		return &SinkWriteError{Op: "write", Path: e.path, Err: err}
	}
	return nil
}

func (e *jsonEncoder) close() error {
	return nil
}

// ReadJSON loads the records of a JSON export. A missing file reports
// os.ErrNotExist; an empty file holds no records.
func ReadJSON(path string) ([]data.MatchRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var records []data.MatchRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return records, nil
}

func writeAtomic(path string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := renameFile(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}
