// ABOUTME: Selects and builds the image-edit collaborator from configuration or environment keys.
// ABOUTME: Gemini is preferred when both providers are configured.
package retouch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/2389-research/snapboard/board/edit"
)

// ErrNoProvider means no image model is configured.
var ErrNoProvider = errors.New("no image edit provider configured")

// Provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config selects an image model.
type Config struct {
	// Provider is "gemini", "openai" or empty to detect from keys.
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Retry    RetryPolicy
}

// Status is the secret-free description of the configured provider.
type Status struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	HasAPIKey bool   `json:"has_api_key"`
}

// FromEnv fills in whatever cfg leaves blank from the provider environment
// variables (GEMINI_API_KEY, OPENAI_API_KEY and their _MODEL/_BASE_URL peers).
func FromEnv(cfg Config, getenv func(string) string) Config {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Provider == "" {
		switch {
		case getenv("GEMINI_API_KEY") != "":
			cfg.Provider = ProviderGemini
		case getenv("OPENAI_API_KEY") != "":
			cfg.Provider = ProviderOpenAI
		default:
			return cfg
		}
	}
	prefix := strings.ToUpper(cfg.Provider)
	if cfg.APIKey == "" {
		cfg.APIKey = getenv(prefix + "_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = getenv(prefix + "_IMAGE_MODEL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = getenv(prefix + "_BASE_URL")
	}
	return cfg
}

// Describe reports the provider without exposing its key.
func (c Config) Describe() Status {
	model := c.Model
	if model == "" {
		switch c.Provider {
		case ProviderGemini:
			model = DefaultGeminiModel
		case ProviderOpenAI:
			model = DefaultOpenAIModel
		}
	}
	return Status{Provider: c.Provider, Model: model, HasAPIKey: c.APIKey != ""}
}

// New builds the editor described by cfg, wrapped with its retry policy.
func New(ctx context.Context, cfg Config) (edit.Editor, error) {
	var (
		ed  edit.Editor
		err error
	)
	switch cfg.Provider {
	case ProviderGemini:
		ed, err = NewGemini(ctx, cfg.APIKey, cfg.Model, cfg.BaseURL)
	case ProviderOpenAI:
		ed, err = NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL)
	case "":
		return nil, ErrNoProvider
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrNoProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return Retrying(ed, cfg.Retry), nil
}
