package ocr

import (
	"context"
	"fmt"

	"github.com/DanelSchwartz/TeleScan-OCR/internal/ocr/engine"
)

// EngineConfig selects and configures the recognition backend.
type EngineConfig struct {
	Type                  string `yaml:"type"`
	VisionCredentialsFile string `yaml:"vision_credentials_file"`
	OpenAIBaseURL         string `yaml:"openai_base_url"`
	OpenAIAPIKey          string `yaml:"openai_api_key"`
	OpenAIModel           string `yaml:"openai_model"`
}

// NewEngine accepts the engine names config.Validate allows.
func NewEngine(ctx context.Context, cfg EngineConfig) (OCREngine, error) {
	switch cfg.Type {
	case "tesseract":
		return engine.NewGosseractEngine(), nil
	case "vision":
		e, err := engine.NewVisionEngine(ctx, cfg.VisionCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("creating vision engine: %w", err)
		}
		return e, nil
	case "openai":
		return engine.NewOpenAIEngine(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	default:
		return nil, fmt.Errorf("unknown engine type: %s", cfg.Type)
	}
}
