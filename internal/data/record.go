package data

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// NotApplicable is reported as accuracy when no keywords were configured.
const NotApplicable = "N/A"

// MatchRecord is the persisted outcome of a positive keyword match.
type MatchRecord struct {
	MessageTime    string `json:"Message Time"`
	SenderID       int64  `json:"Sender ID"`
	Text           string `json:"Text"`
	MessageID      int    `json:"Message ID"`
	ChatID         int64  `json:"Chat ID"`
	MessageLink    string `json:"Message Link"`
	LocalImagePath string `json:"Local Image Path"`
	Accuracy       string `json:"Accuracy"`
}

// MessageLink builds the deep link for a message. Group ids are negative on
// the wire, the link uses the absolute value.
func MessageLink(chatID int64, messageID int) string {
	if chatID < 0 {
		chatID = -chatID
	}
	return fmt.Sprintf("https://t.me/c/%d/%d", chatID, messageID)
}

// FormatAccuracy renders a similarity score as a percentage. NaN means the
// score is not applicable.
func FormatAccuracy(score float64) string {
	if math.IsNaN(score) {
		return NotApplicable
	}
	return fmt.Sprintf("%.2f%%", score*100)
}

func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05-07:00")
}

func GetCSVHeader() []string {
	return []string{"Message Time", "Sender ID", "Text", "Message ID", "Chat ID", "Message Link", "Local Image Path", "Accuracy"}
}

func MapCSVRecord(item MatchRecord) []string {
	return []string{
		item.MessageTime,
		strconv.FormatInt(item.SenderID, 10),
		item.Text,
		strconv.Itoa(item.MessageID),
		strconv.FormatInt(item.ChatID, 10),
		item.MessageLink,
		item.LocalImagePath,
		item.Accuracy,
	}
}

// MapTextBlock renders the record as "Key: value" lines followed by a blank
// line.
func MapTextBlock(item MatchRecord) string {
	var b strings.Builder
	header := GetCSVHeader()
	for i, value := range MapCSVRecord(item) {
		b.WriteString(header[i])
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}
