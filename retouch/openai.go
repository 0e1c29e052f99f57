// ABOUTME: OpenAI image editor using the Images edit endpoint.
// ABOUTME: Supports a custom base URL for OpenAI-compatible gateways.
package retouch

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/2389-research/snapboard/blob"
)

// DefaultOpenAIModel is the image model used when none is configured.
const DefaultOpenAIModel = "gpt-image-1"

// OpenAI edits images with the OpenAI Images API.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI creates an OpenAI editor. baseURL is optional.
func NewOpenAI(apiKey, model, baseURL string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openai api key is empty", ErrNoProvider)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{client: openai.NewClient(opts...), model: model}, nil
}

// Edit implements edit.Editor.
func (o *OpenAI) Edit(ctx context.Context, img blob.Image, instruction string) (blob.Image, error) {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	resp, err := o.client.Images.Edit(ctx, openai.ImageEditParams{
		Image: openai.ImageEditParamsImageUnion{
			OfFile: openai.File(bytes.NewReader(img.Data), "photo"+extFor(mime), mime),
		},
		Prompt: instruction,
		Model:  openai.ImageModel(o.model),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return blob.Image{}, &ProviderError{Provider: "openai", StatusCode: apiErr.StatusCode, Message: apiErr.Message, Cause: err}
		}
		return blob.Image{}, &ProviderError{Provider: "openai", Message: "request failed", Cause: err}
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return blob.Image{}, &ProviderError{Provider: "openai", Message: "no image in response"}
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return blob.Image{}, &ProviderError{Provider: "openai", Message: "decode image", Cause: err}
	}
	return blob.NewImage(data, ""), nil
}

func extFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
