package pipeline

import (
	"context"

	"github.com/DanelSchwartz/TeleScan-OCR/internal/image"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/match"
	"github.com/rs/zerolog"
)

type recognition struct {
	variant  image.Variant
	text     string
	decision match.Decision
}

// recognize runs OCR over the candidates in order and returns the first one
// whose text the matcher accepts, or nil. An engine failure ends the message.
func (p *Pipeline) recognize(ctx context.Context, candidates []image.Variant, log zerolog.Logger) (*recognition, error) {
	for _, v := range candidates {
		res := p.clients.Extractor.Extract(ctx, v.Path)
		p.clients.Metrics.OCRDuration.Observe(res.Duration.Seconds())
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Empty() {
			log.Debug().Str("variant", v.Name).Msg("no text extracted")
			continue
		}

		d := p.clients.Matcher.Decide(res.Text)
		log.Debug().
			Str("variant", v.Name).
			Bool("matched", d.Matched).
			Str("keyword", d.Keyword).
			Float64("score", d.Score).
			Msg("text scored")
		if d.Matched {
			return &recognition{variant: v, text: res.Text, decision: d}, nil
		}
	}
	return nil, nil
}
