// Package source defines the messaging-platform contract the pipeline reads
// photo messages from. Adapters live in the telegram and export subpackages.
package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Chat is one dialog the client can read from.
type Chat struct {
	ID       int64
	Title    string
	Username string
}

// PhotoSize is one rendition of a photo attachment. Ref is adapter specific:
// a Bot API file id or a path inside an export directory.
type PhotoSize struct {
	Type   string
	Width  int
	Height int
	Size   int64
	Ref    string
}

type Message struct {
	ID       int
	ChatID   int64
	SenderID int64
	Date     time.Time
	Photos   []PhotoSize
}

func (m Message) HasPhoto() bool {
	return len(m.Photos) > 0
}

// LargestPhoto picks the size with the biggest reported byte size. Sizes
// without a byte count fall back to pixel area.
func (m Message) LargestPhoto() (PhotoSize, bool) {
	if len(m.Photos) == 0 {
		return PhotoSize{}, false
	}
	best := m.Photos[0]
	for _, p := range m.Photos[1:] {
		if larger(p, best) {
			best = p
		}
	}
	return best, true
}

func larger(a, b PhotoSize) bool {
	if a.Size > 0 || b.Size > 0 {
		if a.Size != b.Size {
			return a.Size > b.Size
		}
	}
	return a.Width*a.Height > b.Width*b.Height
}

// RawPath is the working file a message's photo is downloaded to. Chat and
// message ids keep names unique across concurrent workers.
func RawPath(workDir string, msg Message, size PhotoSize) string {
	chatID := msg.ChatID
	if chatID < 0 {
		chatID = -chatID
	}
	sizeType := size.Type
	if sizeType == "" {
		sizeType = "photo"
	}
	return filepath.Join(workDir, fmt.Sprintf("%d_%d_%s.jpg", chatID, msg.ID, sizeType))
}

// Client is what the pipeline needs from a messaging platform.
type Client interface {
	// Chats lists recent dialogs, most recent first.
	Chats(ctx context.Context, limit int) ([]Chat, error)
	Resolve(ctx context.Context, ref ChatRef) (Chat, error)
	// History returns at most limit messages of the chat, newest first.
	History(ctx context.Context, chatID int64, limit int) ([]Message, error)
	// Subscribe streams new messages until ctx is cancelled. A zero chatID
	// subscribes to every chat the client can see. The channel is closed
	// when the subscription ends.
	Subscribe(ctx context.Context, chatID int64) (<-chan Message, error)
	Download(ctx context.Context, msg Message, size PhotoSize, dst string) error
	Close() error
}

// ChatRef identifies a chat either by numeric id or by public handle.
type ChatRef struct {
	ID       int64
	Username string
}

func (r ChatRef) IsZero() bool {
	return r.ID == 0 && r.Username == ""
}

func (r ChatRef) String() string {
	if r.Username != "" {
		return "@" + r.Username
	}
	return strconv.FormatInt(r.ID, 10)
}

// ParseChatRef accepts a numeric id, a full or partial t.me link, an @handle
// or a bare handle.
func ParseChatRef(input string) (ChatRef, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return ChatRef{}, fmt.Errorf("empty chat reference")
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ChatRef{ID: id}, nil
	}

	for _, prefix := range []string{"https://t.me/", "http://t.me/", "t.me/"} {
		if strings.HasPrefix(strings.ToLower(s), prefix) {
			s = s[len(prefix):]
			break
		}
	}
	s = strings.TrimPrefix(s, "@")
	s = strings.TrimSuffix(s, "/")
	if i := strings.IndexAny(s, "/?"); i >= 0 {
		s = s[:i]
	}
	if s == "" || strings.ContainsAny(s, " \t") {
		return ChatRef{}, fmt.Errorf("invalid chat reference: %q", input)
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ChatRef{ID: id}, nil
	}
	return ChatRef{Username: s}, nil
}
