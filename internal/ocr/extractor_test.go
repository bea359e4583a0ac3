package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DanelSchwartz/TeleScan-OCR/internal/logger"
)

type fakeEngine struct {
	text  string
	err   error
	delay time.Duration
	langs []string
}

func (f *fakeEngine) ProcessImage(ctx context.Context, imagePath string, languages []string) (string, error) {
	f.langs = languages
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

func (f *fakeEngine) Close() error { return nil }

func tempImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "variant.png")
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtract_TrimsText(t *testing.T) {
	// Arrange
	engine := &fakeEngine{text: "\n  Special Offer \n\n"}
	ex := NewExtractor(engine, "", time.Second, logger.Nop())
	path := tempImage(t)

	// Act
	res := ex.Extract(context.Background(), path)

	// Assert
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Text != "Special Offer" {
		t.Errorf("expected trimmed text, got %q", res.Text)
	}
	if res.Filename != path {
		t.Errorf("expected filename %s, got %s", path, res.Filename)
	}
	if len(engine.langs) != 4 || engine.langs[1] != "heb" {
		t.Errorf("expected default languages, got %v", engine.langs)
	}
}

func TestExtract_EmptyTextIsNotAnError(t *testing.T) {
	ex := NewExtractor(&fakeEngine{text: "   "}, "eng", time.Second, logger.Nop())

	res := ex.Extract(context.Background(), tempImage(t))

	if res.Err != nil {
		t.Errorf("expected no error, got %v", res.Err)
	}
	if !res.Empty() {
		t.Errorf("expected empty result")
	}
}

func TestExtract_EngineFailure(t *testing.T) {
	cause := errors.New("tesseract crashed")
	ex := NewExtractor(&fakeEngine{err: cause}, "eng", time.Second, logger.Nop())

	res := ex.Extract(context.Background(), tempImage(t))

	if !errors.Is(res.Err, ErrEngine) || !errors.Is(res.Err, cause) {
		t.Errorf("expected engine error wrapping cause, got %v", res.Err)
	}
	if !res.Empty() || res.Text != "" {
		t.Errorf("failed extraction must resolve to empty text")
	}
}

func TestExtract_UnreadableFile(t *testing.T) {
	ex := NewExtractor(&fakeEngine{text: "never"}, "eng", time.Second, logger.Nop())

	res := ex.Extract(context.Background(), filepath.Join(t.TempDir(), "missing.png"))

	if !errors.Is(res.Err, ErrEngine) {
		t.Errorf("expected engine error, got %v", res.Err)
	}
	if res.Text != "" {
		t.Errorf("expected no text, got %q", res.Text)
	}
}

func TestExtract_Timeout(t *testing.T) {
	ex := NewExtractor(&fakeEngine{text: "late", delay: time.Second}, "eng", 20*time.Millisecond, logger.Nop())

	start := time.Now()
	res := ex.Extract(context.Background(), tempImage(t))

	if !errors.Is(res.Err, ErrTimeout) || !errors.Is(res.Err, ErrEngine) {
		t.Errorf("expected timeout engine error, got %v", res.Err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("extract did not honour timeout, took %s", elapsed)
	}
}

func TestParseLanguages(t *testing.T) {
	got := ParseLanguages(" eng + heb++ara ")
	if len(got) != 3 || got[0] != "eng" || got[2] != "ara" {
		t.Errorf("unexpected languages %v", got)
	}
}

func TestNewEngine_Unknown(t *testing.T) {
	if _, err := NewEngine(context.Background(), EngineConfig{Type: "abbyy"}); err == nil {
		t.Errorf("expected error for unknown engine")
	}
}
