package pipeline

import (
	"github.com/DanelSchwartz/TeleScan-OCR/internal/data"
	"github.com/rs/zerolog"
)

// retain persists the record and deletes every other file of the message.
// If the sink fails the caller cleans up everything, retained file included,
// so no file outlives a lost record.
func (p *Pipeline) retain(rec data.MatchRecord, keep string, files *messageFiles, log zerolog.Logger) error {
	if err := p.clients.Sink.Append(rec); err != nil {
		log.Error().Err(err).Str("file", keep).Msg("match record lost: failed to write to sink")
		return err
	}
	p.clients.Images.Cleanup(files.except(keep)...)
	log.Info().
		Str("file", keep).
		Str("link", rec.MessageLink).
		Str("accuracy", rec.Accuracy).
		Msg("match retained")
	return nil
}
