package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/DanelSchwartz/TeleScan-OCR/internal/image"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/source"
	"github.com/rs/zerolog"
)

// messageFiles tracks every file on disk that belongs to one message.
type messageFiles struct {
	paths []string
}

func (f *messageFiles) add(paths ...string) {
	f.paths = append(f.paths, paths...)
}

// except returns the tracked paths other than keep.
func (f *messageFiles) except(keep string) []string {
	out := make([]string, 0, len(f.paths))
	for _, p := range f.paths {
		if p != keep {
			out = append(out, p)
		}
	}
	return out
}

func (p *Pipeline) download(ctx context.Context, msg source.Message, size source.PhotoSize, files *messageFiles) (string, error) {
	if err := os.MkdirAll(p.opts.WorkDir, 0o755); err != nil {
		return "", fmt.Errorf("creating work directory: %w", err)
	}
	raw := source.RawPath(p.opts.WorkDir, msg, size)
	files.add(raw)

	ctx, cancel := context.WithTimeout(ctx, p.opts.DownloadTimeout)
	defer cancel()
	if err := p.clients.Source.Download(ctx, msg, size, raw); err != nil {
		return "", err
	}
	return raw, nil
}

// normalize fans the raw photo out into variants and narrows them to the
// ones OCR should see.
func (p *Pipeline) normalize(raw string, files *messageFiles) ([]image.Variant, error) {
	variants, err := p.clients.Images.Normalize(raw)
	for _, v := range variants {
		files.add(v.Path)
	}
	if err != nil {
		return nil, err
	}
	if p.opts.Variants != VariantsSharpest || len(variants) < 2 {
		return variants, nil
	}

	best, err := p.clients.Images.Sharpest(variants)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StageSelect, err)
	}
	return []image.Variant{best}, nil
}

func (p *Pipeline) clean(files *messageFiles, log zerolog.Logger) {
	log.Debug().Int("files", len(files.paths)).Msg("cleaning up message files")
	p.clients.Images.Cleanup(files.paths...)
}
