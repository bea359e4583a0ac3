package engine

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// GosseractEngine runs the local Tesseract library. A fresh client is used per
// call so concurrent workers never share one.
type GosseractEngine struct {
	clientFactory func() *gosseract.Client
}

func NewGosseractEngine() *GosseractEngine {
	return &GosseractEngine{clientFactory: gosseract.NewClient}
}

func (g *GosseractEngine) ProcessImage(ctx context.Context, imagePath string, languages []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := g.clientFactory()
	defer client.Close()

	if len(languages) > 0 {
		if err := client.SetLanguage(languages...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return "", fmt.Errorf("set page segmentation mode: %w", err)
	}
	if err := client.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("set image %s: %w", imagePath, err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("failed to extract text from image %s: %w", imagePath, err)
	}
	return text, nil
}

func (g *GosseractEngine) Close() error {
	return nil
}
