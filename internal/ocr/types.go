package ocr

import (
	"context"
	"strings"
	"time"
)

// DefaultLanguages covers Latin, Hebrew, Arabic and Cyrillic scripts.
const DefaultLanguages = "eng+heb+ara+rus"

// Result is the outcome of one recognition call. Err is set when the engine
// failed or timed out; callers treat that like empty text but can still tell
// the two apart.
type Result struct {
	Filename string
	Text     string
	Err      error
	Duration time.Duration
}

// Empty reports whether nothing usable was extracted.
func (r Result) Empty() bool {
	return r.Err != nil || r.Text == ""
}

type OCREngine interface {
	ProcessImage(ctx context.Context, imagePath string, languages []string) (string, error)
	Close() error
}

// ParseLanguages splits a '+'-joined language set.
func ParseLanguages(s string) []string {
	var langs []string
	for _, l := range strings.Split(s, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return langs
}
