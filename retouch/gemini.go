// ABOUTME: Gemini image editor: sends the photo plus an instruction and returns the generated image.
package retouch

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/2389-research/snapboard/blob"
)

// DefaultGeminiModel is the image-capable Gemini model used when none is configured.
const DefaultGeminiModel = "gemini-2.5-flash-image"

// Gemini edits images with the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini editor. baseURL is optional.
func NewGemini(ctx context.Context, apiKey, model, baseURL string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key is empty", ErrNoProvider)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Edit implements edit.Editor.
func (g *Gemini) Edit(ctx context.Context, img blob.Image, instruction string) (blob.Image, error) {
	parts := []*genai.Part{
		genai.NewPartFromBytes(img.Data, img.MIMEType),
		genai.NewPartFromText(instruction),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return blob.Image{}, geminiError(err)
	}

	var refusal string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return blob.NewImage(part.InlineData.Data, part.InlineData.MIMEType), nil
			}
			if part.Text != "" && refusal == "" {
				refusal = part.Text
			}
		}
	}
	if refusal == "" {
		refusal = "no image in response"
	}
	return blob.Image{}, &ProviderError{Provider: "gemini", Message: refusal}
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: "gemini", StatusCode: apiErr.Code, Message: apiErr.Message, Cause: err}
	}
	var apiPtr *genai.APIError
	if errors.As(err, &apiPtr) {
		return &ProviderError{Provider: "gemini", StatusCode: apiPtr.Code, Message: apiPtr.Message, Cause: err}
	}
	return &ProviderError{Provider: "gemini", Message: "request failed", Cause: err}
}
