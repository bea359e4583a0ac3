package pipeline

import (
	"context"

	"github.com/DanelSchwartz/TeleScan-OCR/internal/data"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/metrics"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/source"
	"github.com/rs/zerolog"
)

// processMessage walks one message to Retained or Cleaned. Every file it
// creates is tracked in files so each exit path can dispose of them.
func (p *Pipeline) processMessage(ctx context.Context, msg source.Message, results *writeResult[data.MatchRecord], log zerolog.Logger) {
	p.clients.Metrics.InFlight.Inc()
	defer p.clients.Metrics.InFlight.Dec()

	log = log.With().Int64("chat_id", msg.ChatID).Int("message_id", msg.ID).Logger()

	size, ok := msg.LargestPhoto()
	if !ok {
		log.Debug().Msg("message has no photo, skipping")
		p.outcome(results, metrics.OutcomeNoPhoto)
		return
	}

	files := &messageFiles{}
	fail := func(stage string, err error) {
		serr := &StageError{Stage: stage, ChatID: msg.ChatID, MessageID: msg.ID, Err: err}
		log.Error().Err(err).Str("stage", stage).Msg("message processing failed")
		p.clients.Metrics.StageErrors.WithLabelValues(stage).Inc()
		results.addFailure(messageKey(msg), serr)
		p.clean(files, log)
		p.outcome(results, metrics.OutcomeFailed)
	}

	raw, err := p.download(ctx, msg, size, files)
	if err != nil {
		fail(StageDownload, err)
		return
	}

	if p.opts.CheckClarity {
		clarity, err := p.clients.Images.Clarity(raw)
		if err != nil {
			fail(StageClarity, err)
			return
		}
		if !clarity.Clear {
			log.Info().Float64("variance", clarity.Variance).Msg("image too blurry, skipping OCR")
			p.clean(files, log)
			p.outcome(results, metrics.OutcomeCleaned)
			return
		}
	}

	candidates, err := p.normalize(raw, files)
	if err != nil {
		fail(StageNormalize, err)
		return
	}
	if len(candidates) == 0 {
		log.Info().Msg("normalization produced no variants")
		p.clean(files, log)
		p.outcome(results, metrics.OutcomeCleaned)
		return
	}

	hit, err := p.recognize(ctx, candidates, log)
	if err != nil {
		fail(StageExtract, err)
		return
	}
	if hit == nil {
		log.Info().Msg("no keyword match, cleaning up")
		p.clean(files, log)
		p.outcome(results, metrics.OutcomeCleaned)
		return
	}

	rec := buildRecord(msg, hit)
	if err := p.retain(rec, hit.variant.Path, files, log); err != nil {
		p.clients.Metrics.SinkErrors.Inc()
		fail(StageSink, err)
		return
	}
	results.addWrite(messageKey(msg), rec)
	p.outcome(results, metrics.OutcomeRetained)
}
