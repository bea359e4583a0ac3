package pipeline

import "fmt"

// Stages a message-local failure can happen in.
const (
	StageFetch     = "fetch"
	StageDownload  = "download"
	StageClarity   = "clarity"
	StageNormalize = "normalize"
	StageSelect    = "select"
	StageExtract   = "extract"
	StageSink      = "sink"
)

// StageError ties a failure to the message and stage it happened in.
type StageError struct {
	Stage     string
	ChatID    int64
	MessageID int
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: chat %d message %d: %v", e.Stage, e.ChatID, e.MessageID, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
