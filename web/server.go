// ABOUTME: snapboard HTTP server: board JSON API, image blobs, catalog, gallery, websocket and MCP behind one chi router.
// ABOUTME: Every board mutation goes through the board Session so ordering matches the event loop.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/yuin/goldmark"

	"github.com/2389-research/snapboard/blob"
	"github.com/2389-research/snapboard/board"
	"github.com/2389-research/snapboard/board/core"
	"github.com/2389-research/snapboard/camera"
	"github.com/2389-research/snapboard/export"
	"github.com/2389-research/snapboard/gallery"
	"github.com/2389-research/snapboard/retouch"
	"github.com/2389-research/snapboard/server"
)

// exportCacheTTL bounds how long an export of an unchanged board is reused.
const exportCacheTTL = 30 * time.Second

// ServerConfig wires the HTTP server.
type ServerConfig struct {
	Addr    string // listen address (default 127.0.0.1:7780)
	Session *board.Session
	// Gallery enables /api/gallery when set.
	Gallery *gallery.Store
	// Camera serves captures posted without an image body.
	Camera camera.Source
	// MCP is mounted at /mcp when set.
	MCP       http.Handler
	AuthToken string
	Editor    retouch.Status
	Logger    *slog.Logger
}

// Server is the snapboard HTTP server.
type Server struct {
	cfg      ServerConfig
	session  *board.Session
	router   chi.Router
	markdown goldmark.Markdown
	pages    *TemplateEngine
	exports  *export.Cache
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewServer creates a Server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Session == nil {
		return nil, fmt.Errorf("Session must not be nil")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:7780"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	pages, err := NewTemplateEngine()
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:      cfg,
		pages:    pages,
		exports:  export.NewCache(exportCacheTTL),
		session:  cfg.Session,
		markdown: goldmark.New(),
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		logger:   cfg.Logger,
	}
	s.router = s.buildRouter()
	return s, nil
}

// ServeHTTP delegates to the chi router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on the configured address until ctx ends, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx ends.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	s.logger.Info("listening", slog.String("component", "web"), slog.String("addr", ln.Addr().String()))
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(server.AuthMiddleware(s.cfg.AuthToken))

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleBoardPage)
	r.Handle("/static/*", http.FileServer(http.FS(staticFS)))
	if s.cfg.AuthToken != "" {
		r.Get("/login", server.LoginHandler(s.cfg.AuthToken))
	}
	r.Get("/ws", s.handleWebSocket)
	if s.cfg.MCP != nil {
		r.Handle("/mcp", s.cfg.MCP)
		r.Handle("/mcp/*", s.cfg.MCP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/board", s.handleBoard)
		r.Post("/board/capture", s.handleCapture)
		r.Get("/board/export.pdf", s.handleExportPDF)
		r.Get("/board/export.parquet", s.handleExportParquet)
		r.Put("/board/dial", s.handleDialSet)

		r.Route("/cards/{cardID}", func(r chi.Router) {
			r.Get("/", s.handleCard)
			r.Patch("/", s.handlePatchCard)
			r.Delete("/", s.handleDeleteCard)
			r.Post("/edit", s.handleEdit)
		})

		r.Get("/blobs/{ref}", s.handleBlob)
		r.Get("/catalog", s.handleCatalog)

		if s.cfg.Gallery != nil {
			r.Route("/gallery", s.galleryRouter)
		}
	})
	if s.cfg.Gallery != nil {
		r.Get("/gallery", s.handleGalleryPage)
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"camera_unavailable": s.session.CameraUnavailable(),
		"editor":             s.cfg.Editor,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

var errBadRequest = errors.New("bad request")

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	var notFound *core.CardNotFoundError
	switch {
	case errors.As(err, &notFound),
		errors.Is(err, blob.ErrNotFound),
		errors.Is(err, blob.ErrBadRef),
		errors.Is(err, gallery.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidCard),
		errors.Is(err, board.ErrUnknownOption),
		errors.Is(err, gallery.ErrInvalidName),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrEditRejected),
		errors.Is(err, core.ErrIllegalTransition),
		errors.Is(err, core.ErrPointerBusy),
		errors.Is(err, core.ErrCardBusy):
		return http.StatusConflict
	case errors.Is(err, core.ErrCaptureUnavailable),
		errors.Is(err, camera.ErrUnavailable),
		errors.Is(err, core.ErrLoopClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
