// ABOUTME: Tests for provider selection, retry behavior and the Gemini/OpenAI editors.
// ABOUTME: Provider HTTP APIs are faked with httptest servers.
package retouch_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/2389-research/snapboard/blob"
	"github.com/2389-research/snapboard/board/edit"
	"github.com/2389-research/snapboard/retouch"
)

var (
	srcPNG    = []byte("\x89PNG\r\n\x1a\nsource")
	editedPNG = []byte("\x89PNG\r\n\x1a\nedited")
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		cfg      retouch.Config
		vars     map[string]string
		provider string
		key      string
		model    string
	}{
		{"nothing", retouch.Config{}, nil, "", "", ""},
		{"gemini preferred", retouch.Config{}, map[string]string{"GEMINI_API_KEY": "g", "OPENAI_API_KEY": "o"}, "gemini", "g", ""},
		{"openai only", retouch.Config{}, map[string]string{"OPENAI_API_KEY": "o", "OPENAI_IMAGE_MODEL": "dall-e-2"}, "openai", "o", "dall-e-2"},
		{"explicit provider", retouch.Config{Provider: "OpenAI"}, map[string]string{"GEMINI_API_KEY": "g", "OPENAI_API_KEY": "o"}, "openai", "o", ""},
		{"explicit key kept", retouch.Config{Provider: "gemini", APIKey: "mine"}, map[string]string{"GEMINI_API_KEY": "g"}, "gemini", "mine", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := retouch.FromEnv(tt.cfg, env(tt.vars))
			if got.Provider != tt.provider || got.APIKey != tt.key || got.Model != tt.model {
				t.Errorf("FromEnv = %+v", got)
			}
		})
	}
}

func TestDescribeHidesKey(t *testing.T) {
	st := retouch.Config{Provider: "gemini", APIKey: "secret"}.Describe()
	if st.Model != retouch.DefaultGeminiModel || !st.HasAPIKey {
		t.Errorf("Describe = %+v", st)
	}
	data, _ := json.Marshal(st)
	if strings.Contains(string(data), "secret") {
		t.Errorf("status leaks key: %s", data)
	}
}

func TestNew_NoProvider(t *testing.T) {
	if _, err := retouch.New(context.Background(), retouch.Config{}); !errors.Is(err, retouch.ErrNoProvider) {
		t.Errorf("err = %v", err)
	}
	if _, err := retouch.New(context.Background(), retouch.Config{Provider: "midjourney", APIKey: "k"}); !errors.Is(err, retouch.ErrNoProvider) {
		t.Errorf("unknown provider err = %v", err)
	}
	if _, err := retouch.New(context.Background(), retouch.Config{Provider: "openai"}); !errors.Is(err, retouch.ErrNoProvider) {
		t.Errorf("missing key err = %v", err)
	}
}

func TestProviderErrorRetryable(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		err  *retouch.ProviderError
		want bool
	}{
		{&retouch.ProviderError{StatusCode: 429}, true},
		{&retouch.ProviderError{StatusCode: 503}, true},
		{&retouch.ProviderError{StatusCode: 400}, false},
		{&retouch.ProviderError{StatusCode: 401}, false},
		{&retouch.ProviderError{Cause: cause}, true},
		{&retouch.ProviderError{Message: "no image in response"}, false},
	}
	for _, tt := range tests {
		if got := tt.err.IsRetryable(); got != tt.want {
			t.Errorf("%+v.IsRetryable() = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRetrying(t *testing.T) {
	calls := 0
	flaky := edit.EditorFunc(func(context.Context, blob.Image, string) (blob.Image, error) {
		calls++
		if calls < 3 {
			return blob.Image{}, &retouch.ProviderError{Provider: "fake", StatusCode: 503}
		}
		return blob.NewImage(editedPNG, ""), nil
	})
	var retries []int
	policy := retouch.RetryPolicy{
		MaxRetries: 2,
		OnRetry:    func(_ error, attempt int, _ time.Duration) { retries = append(retries, attempt) },
	}
	out, err := retouch.Retrying(flaky, policy).Edit(context.Background(), blob.NewImage(srcPNG, ""), "x")
	if err != nil || string(out.Data) != string(editedPNG) {
		t.Fatalf("Edit = %q, %v", out.Data, err)
	}
	if len(retries) != 2 || retries[1] != 1 {
		t.Errorf("retries = %v", retries)
	}

	calls = 0
	denied := edit.EditorFunc(func(context.Context, blob.Image, string) (blob.Image, error) {
		calls++
		return blob.Image{}, &retouch.ProviderError{Provider: "fake", StatusCode: 400}
	})
	if _, err := retouch.Retrying(denied, policy).Edit(context.Background(), blob.Image{}, "x"); err == nil || calls != 1 {
		t.Errorf("non-retryable: err = %v after %d calls", err, calls)
	}
}

func TestDefaultRetryPolicy_SingleAttempt(t *testing.T) {
	calls := 0
	busy := edit.EditorFunc(func(context.Context, blob.Image, string) (blob.Image, error) {
		calls++
		return blob.Image{}, &retouch.ProviderError{Provider: "fake", StatusCode: 503}
	})
	if _, err := retouch.Retrying(busy, retouch.DefaultRetryPolicy()).Edit(context.Background(), blob.NewImage(srcPNG, ""), "x"); err == nil {
		t.Fatal("expected the provider error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	p := retouch.RetryPolicy{BaseDelay: time.Second, MaxDelay: 3 * time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}
	for i, w := range want {
		if got := p.Delay(i); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i, got, w)
		}
	}
}

func TestOpenAIEdit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/images/edits") {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("prompt") != "add a hat" {
			http.Error(w, `{"error":{"message":"bad prompt"}}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"created": 1,
			"data":    []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString(editedPNG)}},
		})
	}))
	defer srv.Close()

	ed, err := retouch.NewOpenAI("key", "", srv.URL+"/")
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	out, err := ed.Edit(context.Background(), blob.NewImage(srcPNG, ""), "add a hat")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if string(out.Data) != string(editedPNG) || out.MIMEType != "image/png" {
		t.Errorf("out = %q (%s)", out.Data, out.MIMEType)
	}

	_, err = ed.Edit(context.Background(), blob.NewImage(srcPNG, ""), "other")
	var pe *retouch.ProviderError
	if !errors.As(err, &pe) || pe.IsRetryable() {
		t.Errorf("bad request err = %v", err)
	}
}

func TestGeminiEdit(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"code":429,"message":"slow down","status":"RESOURCE_EXHAUSTED"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{
					"role": "model",
					"parts": []any{
						map[string]any{"text": "here you go"},
						map[string]any{"inlineData": map[string]string{
							"mimeType": "image/png",
							"data":     base64.StdEncoding.EncodeToString(editedPNG),
						}},
					},
				},
			}},
		})
	}))
	defer srv.Close()

	ed, err := retouch.NewGemini(context.Background(), "key", "", srv.URL)
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	out, err := ed.Edit(context.Background(), blob.NewImage(srcPNG, ""), "make it a sketch")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if string(out.Data) != string(editedPNG) {
		t.Errorf("out = %q", out.Data)
	}

	status = http.StatusTooManyRequests
	_, err = ed.Edit(context.Background(), blob.NewImage(srcPNG, ""), "again")
	var pe *retouch.ProviderError
	if !errors.As(err, &pe) || !pe.IsRetryable() {
		t.Errorf("rate limited err = %v", err)
	}
}
