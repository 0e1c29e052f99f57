// ABOUTME: Bearer token authentication middleware for the board API, websocket and MCP endpoint.
// ABOUTME: Accepts the Authorization header, a snapboard_token cookie, or a token query for websocket upgrades.
package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// CookieName carries the token for browser sessions.
const CookieName = "snapboard_token"

// AuthMiddleware rejects unauthenticated requests to /api, /ws and /mcp. An
// empty token disables the check.
func AuthMiddleware(token string) func(http.Handler) http.Handler {
	expected := "Bearer " + token
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !protected(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), []byte(expected)) == 1 {
				next.ServeHTTP(w, r)
				return
			}
			if cookie, err := r.Cookie(CookieName); err == nil &&
				subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(token)) == 1 {
				next.ServeHTTP(w, r)
				return
			}
			// Browsers cannot set headers on a websocket handshake.
			if r.URL.Path == "/ws" &&
				subtle.ConstantTimeCompare([]byte(r.URL.Query().Get("token")), []byte(token)) == 1 {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
		})
	}
}

func protected(path string) bool {
	switch {
	case path == "/health":
		return false
	case path == "/api/gallery/public" || strings.HasPrefix(path, "/api/gallery/public/"):
		return false
	case path == "/api" || strings.HasPrefix(path, "/api/"):
		return true
	case path == "/ws", path == "/mcp" || strings.HasPrefix(path, "/mcp/"):
		return true
	default:
		return false
	}
}

// LoginHandler sets the session cookie from ?token= and redirects home.
func LoginHandler(expectedToken string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("snapboard: append ?token=YOUR_TOKEN to this URL\n"))
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteStrictMode,
		})
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}
