// ABOUTME: Tests for server configuration resolution, the loopback rule and the auth middleware.
package server_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"

	"github.com/2389-research/snapboard/server"
)

func TestConfigFrom_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SNAPBOARD_HOME", home)
	v, err := server.NewViper(t.TempDir())
	if err != nil {
		t.Fatalf("NewViper: %v", err)
	}
	cfg, err := server.ConfigFrom(v)
	if err != nil {
		t.Fatalf("ConfigFrom: %v", err)
	}
	if cfg.Bind != "127.0.0.1:7780" {
		t.Errorf("bind = %q", cfg.Bind)
	}
	if cfg.BlobDir != filepath.Join(home, "blobs") || cfg.Journal != filepath.Join(home, "board.jsonl") {
		t.Errorf("derived paths = %q %q", cfg.BlobDir, cfg.Journal)
	}
	if cfg.EditRetries != 0 {
		t.Errorf("edit retries = %d, want 0", cfg.EditRetries)
	}
}

func TestConfigFrom_EditRetries(t *testing.T) {
	t.Setenv("SNAPBOARD_HOME", t.TempDir())
	t.Setenv("SNAPBOARD_EDIT_RETRIES", "2")
	v, err := server.NewViper(t.TempDir())
	if err != nil {
		t.Fatalf("NewViper: %v", err)
	}
	cfg, err := server.ConfigFrom(v)
	if err != nil {
		t.Fatalf("ConfigFrom: %v", err)
	}
	if cfg.EditRetries != 2 {
		t.Errorf("edit retries = %d, want 2", cfg.EditRetries)
	}

	t.Setenv("SNAPBOARD_EDIT_RETRIES", "-1")
	if _, err := server.ConfigFrom(v); err == nil {
		t.Error("negative edit retries accepted")
	}
}

func TestConfigFrom_ExpandsTilde(t *testing.T) {
	t.Setenv("SNAPBOARD_HOME", "~/snaps")
	t.Setenv("SNAPBOARD_CAMERA_DIR", "~/dcim")
	v, err := server.NewViper(t.TempDir())
	if err != nil {
		t.Fatalf("NewViper: %v", err)
	}
	cfg, err := server.ConfigFrom(v)
	if err != nil {
		t.Fatalf("ConfigFrom: %v", err)
	}
	userHome, err := homedir.Dir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	if cfg.Home != filepath.Join(userHome, "snaps") || cfg.CameraDir != filepath.Join(userHome, "dcim") {
		t.Errorf("home = %q, camera dir = %q", cfg.Home, cfg.CameraDir)
	}
}

func TestConfigFrom_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	doc := "edit_provider: openai\ncatalog: /etc/snap.yaml\n"
	if err := os.WriteFile(filepath.Join(dir, ".snapboard.yaml"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SNAPBOARD_HOME", dir)
	t.Setenv("SNAPBOARD_EDIT_PROVIDER", "gemini")
	v, err := server.NewViper(dir)
	if err != nil {
		t.Fatalf("NewViper: %v", err)
	}
	cfg, err := server.ConfigFrom(v)
	if err != nil {
		t.Fatalf("ConfigFrom: %v", err)
	}
	if cfg.EditProvider != "gemini" {
		t.Errorf("env should win over file, provider = %q", cfg.EditProvider)
	}
	if cfg.Catalog != "/etc/snap.yaml" {
		t.Errorf("catalog = %q", cfg.Catalog)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  server.Config
		want error
	}{
		{"loopback", server.Config{Bind: "127.0.0.1:7780"}, nil},
		{"localhost", server.Config{Bind: "localhost:7780"}, nil},
		{"ipv6 loopback", server.Config{Bind: "[::1]:7780"}, nil},
		{"all interfaces", server.Config{Bind: "0.0.0.0:7780"}, server.ErrNonLoopbackBind},
		{"empty host", server.Config{Bind: ":7780"}, server.ErrNonLoopbackBind},
		{"hostname", server.Config{Bind: "studio.local:7780"}, server.ErrNonLoopbackBind},
		{"remote without token", server.Config{Bind: "0.0.0.0:7780", AllowRemote: true}, server.ErrRemoteWithoutToken},
		{"remote with token", server.Config{Bind: "0.0.0.0:7780", AllowRemote: true, AuthToken: "t"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.want == nil && err != nil {
				t.Errorf("Validate = %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Validate = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := server.LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("missing file: %v", err)
	}
	path := filepath.Join(t.TempDir(), ".env")
	_ = os.WriteFile(path, []byte("SNAPBOARD_TEST_A=file\nSNAPBOARD_TEST_B=file\n"), 0o644)
	t.Setenv("SNAPBOARD_TEST_A", "env")
	t.Setenv("SNAPBOARD_TEST_B", "")
	_ = os.Unsetenv("SNAPBOARD_TEST_B")
	if err := server.LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if os.Getenv("SNAPBOARD_TEST_A") != "env" || os.Getenv("SNAPBOARD_TEST_B") != "file" {
		t.Errorf("A=%q B=%q", os.Getenv("SNAPBOARD_TEST_A"), os.Getenv("SNAPBOARD_TEST_B"))
	}
}

func TestAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := server.AuthMiddleware("s3cret")(ok)

	tests := []struct {
		name   string
		path   string
		header string
		cookie string
		want   int
	}{
		{"health open", "/health", "", "", http.StatusNoContent},
		{"index open", "/", "", "", http.StatusNoContent},
		{"public gallery open", "/api/gallery/public", "", "", http.StatusNoContent},
		{"public image open", "/api/gallery/public/0b7c/image", "", "", http.StatusNoContent},
		{"gallery photos need token", "/api/gallery/photos", "", "", http.StatusUnauthorized},
		{"api needs token", "/api/board", "", "", http.StatusUnauthorized},
		{"api bearer", "/api/board", "Bearer s3cret", "", http.StatusNoContent},
		{"api wrong bearer", "/api/board", "Bearer nope", "", http.StatusUnauthorized},
		{"cookie", "/api/board", "", "s3cret", http.StatusNoContent},
		{"mcp needs token", "/mcp", "", "", http.StatusUnauthorized},
		{"ws query token", "/ws?token=s3cret", "", "", http.StatusNoContent},
		{"ws no token", "/ws", "", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: server.CookieName, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}

	open := server.AuthMiddleware("")(ok)
	w := httptest.NewRecorder()
	open.ServeHTTP(w, httptest.NewRequest("GET", "/api/board", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("empty token should disable auth, got %d", w.Code)
	}
}

func TestLoginHandler(t *testing.T) {
	h := server.LoginHandler("s3cret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/login?token=s3cret", nil))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", w.Code)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != server.CookieName {
		t.Errorf("cookies = %v", cookies)
	}
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/login?token=bad", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d", w.Code)
	}
}
