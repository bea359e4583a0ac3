// Package export reads a Telegram Desktop JSON export (result.json) as a
// message source. It serves historical scans without network access.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/DanelSchwartz/TeleScan-OCR/internal/source"
	"github.com/rs/zerolog"
)

const resultFile = "result.json"

type exportedChat struct {
	ID       int64             `json:"id"`
	Name     string            `json:"name"`
	Type     string            `json:"type"`
	Messages []exportedMessage `json:"messages"`
}

type exportedMessage struct {
	ID            int    `json:"id"`
	Type          string `json:"type"`
	Date          string `json:"date"`
	DateUnixtime  string `json:"date_unixtime"`
	FromID        string `json:"from_id"`
	ActorID       string `json:"actor_id"`
	Photo         string `json:"photo"`
	PhotoFileSize int64  `json:"photo_file_size"`
	File          string `json:"file"`
	FileSize      int64  `json:"file_size"`
	MimeType      string `json:"mime_type"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
}

type exportFile struct {
	exportedChat
	Chats struct {
		List []exportedChat `json:"list"`
	} `json:"chats"`
}

type Client struct {
	root  string
	chats []exportedChat
	log   zerolog.Logger
}

// New loads the export at path, either the export directory or its
// result.json file.
func New(path string, log zerolog.Logger) (*Client, error) {
	file := path
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		file = filepath.Join(path, resultFile)
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("export: reading %s: %w", file, err)
	}
	var parsed exportFile
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("export: parsing %s: %w", file, err)
	}

	chats := parsed.Chats.List
	if len(chats) == 0 && parsed.ID != 0 {
		chats = []exportedChat{parsed.exportedChat}
	}
	log.Info().Str("file", file).Int("chats", len(chats)).Msg("export loaded")
	return &Client{root: filepath.Dir(file), chats: chats, log: log}, nil
}

func (c *Client) Chats(ctx context.Context, limit int) ([]source.Chat, error) {
	out := make([]source.Chat, 0, len(c.chats))
	for _, ch := range c.chats {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, source.Chat{ID: ch.ID, Title: ch.Name})
	}
	return out, nil
}

func (c *Client) Resolve(ctx context.Context, ref source.ChatRef) (source.Chat, error) {
	for _, ch := range c.chats {
		if ref.ID != 0 && sameChat(ch.ID, ref.ID) {
			return source.Chat{ID: ch.ID, Title: ch.Name}, nil
		}
		if ref.Username != "" && strings.EqualFold(ch.Name, ref.Username) {
			return source.Chat{ID: ch.ID, Title: ch.Name}, nil
		}
	}
	return source.Chat{}, fmt.Errorf("resolving %s: %w", ref, source.ErrChatNotFound)
}

// History returns the newest limit messages of the chat, newest first.
// Service messages are skipped.
func (c *Client) History(ctx context.Context, chatID int64, limit int) ([]source.Message, error) {
	var chat *exportedChat
	for i := range c.chats {
		if sameChat(c.chats[i].ID, chatID) {
			chat = &c.chats[i]
			break
		}
	}
	if chat == nil {
		return nil, fmt.Errorf("chat %d: %w", chatID, source.ErrChatNotFound)
	}

	var out []source.Message
	for i := len(chat.Messages) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		m := chat.Messages[i]
		if m.Type != "message" {
			continue
		}
		out = append(out, c.convert(chat.ID, m))
	}
	return out, nil
}

func (c *Client) Subscribe(ctx context.Context, chatID int64) (<-chan source.Message, error) {
	return nil, fmt.Errorf("export: live subscription: %w", source.ErrUnsupported)
}

// Download copies the exported photo to dst.
func (c *Client) Download(ctx context.Context, msg source.Message, size source.PhotoSize, dst string) error {
	wrap := func(err error) error {
		return &source.DownloadError{ChatID: msg.ChatID, MessageID: msg.ID, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return wrap(err)
	}

	in, err := os.Open(filepath.Join(c.root, filepath.FromSlash(size.Ref)))
	if err != nil {
		return wrap(err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return wrap(err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return wrap(err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return wrap(err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return wrap(err)
	}
	return nil
}

func (c *Client) Close() error {
	return nil
}

func (c *Client) convert(chatID int64, m exportedMessage) source.Message {
	msg := source.Message{
		ID:       m.ID,
		ChatID:   chatID,
		SenderID: parsePeerID(m.FromID),
		Date:     parseDate(m),
	}
	if msg.SenderID == 0 {
		msg.SenderID = parsePeerID(m.ActorID)
	}

	switch {
	case included(m.Photo):
		msg.Photos = []source.PhotoSize{{Type: "photo", Width: m.Width, Height: m.Height, Size: m.PhotoFileSize, Ref: m.Photo}}
	case included(m.File) && (strings.HasPrefix(m.MimeType, "image/") || isImageFile(m.File)):
		msg.Photos = []source.PhotoSize{{Type: "file", Width: m.Width, Height: m.Height, Size: m.FileSize, Ref: m.File}}
	}
	return msg
}

// included reports whether the export carries the media file. Skipped media
// is written as a parenthesised placeholder.
func included(ref string) bool {
	return ref != "" && !strings.HasPrefix(ref, "(")
}

func isImageFile(filename string) bool {
	ext := strings.ToLower(filename[strings.LastIndex(filename, ".")+1:])
	return ext == "jpg" || ext == "jpeg" || ext == "png" || ext == "webp" || ext == "tiff" || ext == "bmp"
}

// parsePeerID turns "user123" or "channel456" into its numeric id.
func parsePeerID(s string) int64 {
	digits := strings.TrimLeftFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func parseDate(m exportedMessage) time.Time {
	if sec, err := strconv.ParseInt(m.DateUnixtime, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC()
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", m.Date, time.Local); err == nil {
		return t
	}
	return time.Time{}
}

// sameChat matches export ids against bot-style ids, which prefix channels
// with -100.
func sameChat(exported, id int64) bool {
	if exported == id {
		return true
	}
	abs := id
	if abs < 0 {
		abs = -abs
	}
	return exported == abs || exported == abs-1000000000000
}
