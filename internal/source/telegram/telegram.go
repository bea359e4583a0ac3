// Package telegram adapts the Telegram Bot API to source.Client.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/DanelSchwartz/TeleScan-OCR/internal/source"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const pollTimeout = 60

type Client struct {
	api *tgbotapi.BotAPI
	log zerolog.Logger
}

func New(token string, log zerolog.Logger) (*Client, error) {
	if token == "" {
		return nil, errors.New("telegram: bot token is required")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connecting bot: %w", err)
	}
	log.Info().Str("bot", api.Self.UserName).Msg("authorized on telegram")
	return &Client{api: api, log: log}, nil
}

// Chats is not offered by the Bot API; bots cannot enumerate dialogs.
func (c *Client) Chats(ctx context.Context, limit int) ([]source.Chat, error) {
	return nil, fmt.Errorf("telegram bot: listing chats: %w", source.ErrUnsupported)
}

func (c *Client) Resolve(ctx context.Context, ref source.ChatRef) (source.Chat, error) {
	cfg := tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: ref.ID}}
	if ref.Username != "" {
		cfg.ChatConfig = tgbotapi.ChatConfig{SuperGroupUsername: "@" + ref.Username}
	}
	chat, err := c.api.GetChat(cfg)
	if err != nil {
		return source.Chat{}, fmt.Errorf("resolving %s: %w: %v", ref, source.ErrChatNotFound, err)
	}
	return source.Chat{ID: chat.ID, Title: chat.Title, Username: chat.UserName}, nil
}

// History is not offered by the Bot API; bots only see new updates.
func (c *Client) History(ctx context.Context, chatID int64, limit int) ([]source.Message, error) {
	return nil, fmt.Errorf("telegram bot: reading history: %w", source.ErrUnsupported)
}

func (c *Client) Subscribe(ctx context.Context, chatID int64) (<-chan source.Message, error) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := c.api.GetUpdatesChan(u)

	out := make(chan source.Message)
	go func() {
		defer close(out)
		defer c.api.StopReceivingUpdates()
		for {
			select {
			case <-ctx.Done():
				c.log.Debug().Msg("subscription cancelled")
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				msg := update.Message
				if msg == nil {
					msg = update.ChannelPost
				}
				if msg == nil || msg.Chat == nil {
					continue
				}
				if chatID != 0 && msg.Chat.ID != chatID {
					continue
				}
				select {
				case out <- convertMessage(msg):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (c *Client) Download(ctx context.Context, msg source.Message, size source.PhotoSize, dst string) error {
	wrap := func(err error) error {
		return &source.DownloadError{ChatID: msg.ChatID, MessageID: msg.ID, Err: err}
	}

	url, err := c.api.GetFileDirectURL(size.Ref)
	if err != nil {
		return wrap(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return wrap(err)
	}
	resp, err := c.api.Client.Do(req)
	if err != nil {
		return wrap(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return wrap(fmt.Errorf("unexpected status %s", resp.Status))
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return wrap(err)
	}
	file, err := os.Create(dst)
	if err != nil {
		return wrap(err)
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		os.Remove(dst)
		return wrap(err)
	}
	if err := file.Close(); err != nil {
		os.Remove(dst)
		return wrap(err)
	}
	return nil
}

func (c *Client) Close() error {
	return nil
}

func convertMessage(m *tgbotapi.Message) source.Message {
	msg := source.Message{
		ID:     m.MessageID,
		ChatID: m.Chat.ID,
		Date:   time.Unix(int64(m.Date), 0).UTC(),
	}
	switch {
	case m.From != nil:
		msg.SenderID = m.From.ID
	case m.SenderChat != nil:
		msg.SenderID = m.SenderChat.ID
	}
	for _, p := range m.Photo {
		msg.Photos = append(msg.Photos, source.PhotoSize{
			Type:   fmt.Sprintf("%dx%d", p.Width, p.Height),
			Width:  p.Width,
			Height: p.Height,
			Size:   int64(p.FileSize),
			Ref:    p.FileID,
		})
	}
	return msg
}
