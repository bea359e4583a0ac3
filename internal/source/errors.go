package source

import (
	"errors"
	"fmt"
)

var (
	// ErrDownload marks a failed media fetch for one message.
	ErrDownload = errors.New("media download failed")

	// ErrUnsupported is returned by adapters for operations their platform
	// does not offer, e.g. history through the Bot API.
	ErrUnsupported = errors.New("operation not supported by source")

	ErrChatNotFound = errors.New("chat not found")
)

// DownloadError carries the message whose media could not be fetched.
type DownloadError struct {
	ChatID    int64
	MessageID int
	Err       error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download chat %d message %d: %v", e.ChatID, e.MessageID, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

func (e *DownloadError) Is(target error) bool {
	return target == ErrDownload || errors.Is(e.Err, target)
}
