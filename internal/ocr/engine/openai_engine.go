package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultBaseURL = "http://localhost:11434/v1"
	defaultModel   = "llama3.2-vision"

	noTextMarker = "NO_TEXT"
)

const transcribePrompt = `You are an OCR engine.
Transcribe every piece of text visible in the image exactly as written, keeping line breaks.
Expected languages: %s.
Return only the transcription, without explanations or formatting.
If the image contains no legible text, answer exactly ` + noTextMarker + `.`

// OpenAIEngine transcribes images through any OpenAI-compatible vision
// chat endpoint. Without a base URL it targets a local Ollama server.
type OpenAIEngine struct {
	client *openai.Client
	model  string
}

func NewOpenAIEngine(baseURL, apiKey, model string) *OpenAIEngine {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	if apiKey == "" {
		apiKey = "ollama"
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &OpenAIEngine{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (o *OpenAIEngine) ProcessImage(ctx context.Context, imagePath string, languages []string) (string, error) {
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", http.DetectContentType(imageData), base64.StdEncoding.EncodeToString(imageData))

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: fmt.Sprintf(transcribePrompt, strings.Join(languages, ", ")),
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion response")
	}
	return cleanTranscription(resp.Choices[0].Message.Content), nil
}

func (o *OpenAIEngine) Close() error {
	return nil
}

// cleanTranscription strips markdown fences and maps the no-text marker to
// an empty string.
func cleanTranscription(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.Contains(s[:nl], " ") {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, noTextMarker) {
		return ""
	}
	return s
}
