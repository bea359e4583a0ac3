package pipeline

import (
	"context"
	"fmt"

	"github.com/DanelSchwartz/TeleScan-OCR/internal/data"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/source"
	"github.com/rs/zerolog"
)

// fetchHistory sends the newest HistoryLimit messages of each target chat
// and closes out when done.
func (p *Pipeline) fetchHistory(ctx context.Context, out chan<- source.Message, results *writeResult[data.MatchRecord], log zerolog.Logger) error {
	defer close(out)

	chats, err := p.targetChats(ctx)
	if err != nil {
		return err
	}

	for _, chat := range chats {
		if ctx.Err() != nil {
			log.Debug().Msg("[fetchHistory]: context cancelled")
			return nil
		}

		clog := log.With().Int64("chat_id", chat.ID).Str("chat", chat.Title).Logger()
		msgs, err := p.clients.Source.History(ctx, chat.ID, p.opts.HistoryLimit)
		if err != nil {
			clog.Error().Err(err).Str("stage", StageFetch).Msg("failed to read chat history")
			p.clients.Metrics.StageErrors.WithLabelValues(StageFetch).Inc()
			results.addFailure(fmt.Sprintf("%d", chat.ID), &StageError{Stage: StageFetch, ChatID: chat.ID, Err: err})
			continue
		}
		if len(msgs) > p.opts.HistoryLimit {
			msgs = msgs[:p.opts.HistoryLimit]
		}
		clog.Info().Int("messages", len(msgs)).Msg("scanning chat history")

		for _, msg := range msgs {
			select {
			case out <- msg:
			case <-ctx.Done():
				clog.Debug().Int("message_id", msg.ID).Msg("[fetchHistory]: context done while sending message")
				return nil
			}
		}
	}
	return nil
}

// fetchLive forwards the subscription until ctx is cancelled.
func (p *Pipeline) fetchLive(ctx context.Context, out chan<- source.Message, log zerolog.Logger) error {
	var chatID int64
	if !p.opts.Chat.IsZero() {
		chat, err := p.clients.Source.Resolve(ctx, p.opts.Chat)
		if err != nil {
			close(out)
			return fmt.Errorf("resolving target chat: %w", err)
		}
		chatID = chat.ID
	}

	updates, err := p.clients.Source.Subscribe(ctx, chatID)
	if err != nil {
		close(out)
		return fmt.Errorf("subscribing to chat %d: %w", chatID, err)
	}
	log.Info().Int64("chat_id", chatID).Msg("listening for new messages")
	forwardChan(ctx, updates, out)
	log.Info().Msg("live subscription stopped")
	return nil
}

func (p *Pipeline) targetChats(ctx context.Context) ([]source.Chat, error) {
	if !p.opts.Chat.IsZero() {
		chat, err := p.clients.Source.Resolve(ctx, p.opts.Chat)
		if err != nil {
			return nil, fmt.Errorf("resolving target chat: %w", err)
		}
		return []source.Chat{chat}, nil
	}
	chats, err := p.clients.Source.Chats(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	return chats, nil
}

// outcome records a terminal state for one message.
func (p *Pipeline) outcome(results *writeResult[data.MatchRecord], outcome string) {
	p.clients.Metrics.Messages.WithLabelValues(outcome).Inc()
	results.addOutcome(outcome)
}

