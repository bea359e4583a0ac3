package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/DanelSchwartz/TeleScan-OCR/internal/data"
)

type Format string

const (
	FormatJSON   Format = "json"
	FormatCSV    Format = "csv"
	FormatTXT    Format = "txt"
	FormatSQLite Format = "sqlite"
)

const filenamePrefix = "export"

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatTXT, FormatSQLite:
		return f, nil
	case "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// Extension is the file extension used for the format's output file.
func (f Format) Extension() string {
	if f == FormatSQLite {
		return "db"
	}
	return string(f)
}

// OutputPath is where records of the given format land inside dir.
func OutputPath(dir string, f Format) string {
	return filepath.Join(dir, filenamePrefix+"."+f.Extension())
}

type encoder interface {
	append(rec data.MatchRecord) error
	close() error
}

type writeRequest struct {
	record     data.MatchRecord
	responseCh chan error
}

// Writer appends match records to one output file. All appends go through a
// single worker goroutine, so concurrent callers never interleave writes.
type Writer struct {
	queue    chan writeRequest
	shutdown chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
	format   Format
	path     string
	enc      encoder
}

func NewWriter(format Format, outputDir string) (*Writer, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, &SinkWriteError{Op: "mkdir", Path: outputDir, Err: err}
	}
	path := OutputPath(outputDir, format)

	var enc encoder
	switch format {
	case FormatJSON:
		enc = &jsonEncoder{path: path}
	case FormatCSV:
		enc = &csvEncoder[data.MatchRecord]{path: path, mapper: data.MapCSVRecord, header: data.GetCSVHeader}
	case FormatTXT:
		enc = &textEncoder{path: path}
	case FormatSQLite:
		db, err := openSQLite(path)
		if err != nil {
			return nil, &SinkWriteError{Op: "open", Path: path, Err: err}
		}
		enc = db
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}

	w := &Writer{
		queue:    make(chan writeRequest),
		shutdown: make(chan struct{}),
		format:   format,
		path:     path,
		enc:      enc,
	}
	w.startWorker()
	return w, nil
}

func (w *Writer) Path() string {
	return w.path
}

func (w *Writer) Format() Format {
	return w.format
}

func (w *Writer) startWorker() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case req := <-w.queue:
				req.responseCh <- w.enc.append(req.record)
			case <-w.shutdown:
				return
			}
		}
	}()
}

// Append persists one record. Records with empty text are rejected with
// ErrEmptyText before reaching the output file.
func (w *Writer) Append(rec data.MatchRecord) error {
	if strings.TrimSpace(rec.Text) == "" {
		return ErrEmptyText
	}

	responseCh := make(chan error, 1)
	select {
	case w.queue <- writeRequest{record: rec, responseCh: responseCh}:
		return <-responseCh
	case <-w.shutdown:
		return ErrClosed
	}
}

func (w *Writer) Close() error {
	var err error
	w.once.Do(func() {
		close(w.shutdown)
		w.wg.Wait()
		err = w.enc.close()
	})
	return err
}
