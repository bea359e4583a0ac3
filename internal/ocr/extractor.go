package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a single recognition call.
const DefaultTimeout = 60 * time.Second

// Extractor runs the engine off the caller's goroutine and folds every
// failure into Result.Err.
type Extractor struct {
	engine    OCREngine
	languages []string
	timeout   time.Duration
	log       zerolog.Logger
}

func NewExtractor(engine OCREngine, languages string, timeout time.Duration, log zerolog.Logger) *Extractor {
	if strings.TrimSpace(languages) == "" {
		languages = DefaultLanguages
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Extractor{
		engine:    engine,
		languages: ParseLanguages(languages),
		timeout:   timeout,
		log:       log,
	}
}

func (e *Extractor) Languages() string {
	return strings.Join(e.languages, "+")
}

func (e *Extractor) Extract(ctx context.Context, imagePath string) Result {
	start := time.Now()
	res := e.extract(ctx, imagePath)
	res.Filename = imagePath
	res.Duration = time.Since(start)

	if res.Err != nil {
		e.log.Error().Err(res.Err).Str("file", imagePath).Msg("OCR processing error")
		return res
	}
	e.log.Debug().
		Str("file", imagePath).
		Int("text_length", len(res.Text)).
		Dur("duration", res.Duration).
		Msg("OCR processing completed")
	return res
}

func (e *Extractor) extract(ctx context.Context, imagePath string) Result {
	if info, err := os.Stat(imagePath); err != nil {
		return Result{Err: &EngineError{Op: "open", Path: imagePath, Err: err}}
	} else if !info.Mode().IsRegular() {
		return Result{Err: &EngineError{Op: "open", Path: imagePath, Err: fmt.Errorf("not a regular file")}}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		text, err := e.engine.ProcessImage(ctx, imagePath, e.languages)
		done <- outcome{text: text, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out.err = ctx.Err()
	}

	if out.err != nil {
		err := out.err
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %v", ErrTimeout, e.timeout, out.err)
		}
		return Result{Err: &EngineError{Op: "recognize", Path: imagePath, Err: err}}
	}
	return Result{Text: strings.TrimSpace(out.text)}
}

func (e *Extractor) Close() error {
	return e.engine.Close()
}
