package pipeline

import (
	"github.com/DanelSchwartz/TeleScan-OCR/internal/data"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/source"
)

func buildRecord(msg source.Message, hit *recognition) data.MatchRecord {
	return data.MatchRecord{
		MessageTime:    data.FormatTime(msg.Date),
		SenderID:       msg.SenderID,
		Text:           hit.text,
		MessageID:      msg.ID,
		ChatID:         msg.ChatID,
		MessageLink:    data.MessageLink(msg.ChatID, msg.ID),
		LocalImagePath: hit.variant.Path,
		Accuracy:       data.FormatAccuracy(hit.decision.Score),
	}
}
