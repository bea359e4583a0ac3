package engine

import (
	"context"
	"errors"
	"fmt"
	"os"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// Tesseract language codes mapped to the BCP-47 hints Cloud Vision expects.
var visionLanguageHints = map[string]string{
	"eng": "en",
	"heb": "iw",
	"ara": "ar",
	"rus": "ru",
	"ukr": "uk",
	"deu": "de",
	"fra": "fr",
	"spa": "es",
}

// VisionEngine sends images to Google Cloud Vision document text detection.
type VisionEngine struct {
	client *vision.ImageAnnotatorClient
}

// NewVisionEngine uses credentialsFile when set and application default
// credentials otherwise.
func NewVisionEngine(ctx context.Context, credentialsFile string) (*VisionEngine, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating vision client: %w", err)
	}
	return &VisionEngine{client: client}, nil
}

func (v *VisionEngine) ProcessImage(ctx context.Context, imagePath string, languages []string) (string, error) {
	content, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: content},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{LanguageHints: languageHints(languages)},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return "", fmt.Errorf("vision API call failed: %w", err)
	}
	if len(resp.Responses) == 0 {
		return "", errors.New("no response from vision API")
	}

	r := resp.Responses[0]
	if r.Error != nil {
		return "", fmt.Errorf("vision API error: %s", r.Error.Message)
	}
	if r.FullTextAnnotation == nil {
		return "", nil
	}
	return r.FullTextAnnotation.Text, nil
}

func (v *VisionEngine) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

func languageHints(languages []string) []string {
	hints := make([]string, 0, len(languages))
	for _, l := range languages {
		if hint, ok := visionLanguageHints[l]; ok {
			hints = append(hints, hint)
		}
	}
	return hints
}
