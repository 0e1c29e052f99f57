// ABOUTME: HTML pages: the live board shell and the public gallery of shared photos.
package web

import (
	"log/slog"
	"net/http"
)

// handleBoardPage renders the board shell; cards arrive over /api/board and /ws.
func (s *Server) handleBoardPage(w http.ResponseWriter, _ *http.Request) {
	s.render(w, "board.html", PageData{
		Title:       "snapboard",
		Catalog:     s.session.Catalog(),
		GalleryOpen: s.cfg.Gallery != nil,
	})
}

func (s *Server) handleGalleryPage(w http.ResponseWriter, _ *http.Request) {
	photos, err := s.cfg.Gallery.ListPublic(0)
	if err != nil {
		http.Error(w, "gallery unavailable", http.StatusInternalServerError)
		return
	}
	s.render(w, "gallery.html", PageData{
		Title:       "snapboard gallery",
		Catalog:     s.session.Catalog(),
		Photos:      photos,
		GalleryOpen: true,
	})
}

func (s *Server) render(w http.ResponseWriter, page string, data PageData) {
	if err := s.pages.Render(w, page, data); err != nil {
		s.logger.Error("render page", slog.String("component", "web"), slog.String("page", page), slog.Any("err", err))
	}
}
