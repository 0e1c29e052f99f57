// ABOUTME: Gallery API: per-user saved photos with sharing, plus restoring a saved photo onto the board.
// ABOUTME: Users authenticate with the token issued at registration in the X-Gallery-Token header.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/2389-research/snapboard/gallery"
)

// GalleryTokenHeader carries a gallery user's token.
const GalleryTokenHeader = "X-Gallery-Token"

type galleryUserKey struct{}

func (s *Server) galleryRouter(r chi.Router) {
	r.Get("/public", s.handlePublicPhotos)
	r.Get("/public/{photoID}/image", s.handlePublicImage)
	r.Post("/users", s.handleRegister)

	r.Group(func(r chi.Router) {
		r.Use(s.galleryAuth)
		r.Get("/photos", s.handleListPhotos)
		r.Post("/photos", s.handleSavePhoto)
		r.Delete("/photos/{photoID}", s.handleDeletePhoto)
		r.Put("/photos/{photoID}/public", s.handleSharePhoto)
		r.Put("/photos/{photoID}/caption", s.handleCaptionPhoto)
		r.Post("/photos/{photoID}/restore", s.handleRestorePhoto)
	})
}

func (s *Server) galleryAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.cfg.Gallery.UserByToken(r.Header.Get(GalleryTokenHeader))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "gallery token required"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), galleryUserKey{}, user)))
	})
}

func galleryUser(r *http.Request) gallery.User {
	u, _ := r.Context().Value(galleryUserKey{}).(gallery.User)
	return u
}

func photoID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "photoID"))
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("%w: photo id: %v", errBadRequest, err)
	}
	return id, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (s *Server) handlePublicPhotos(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	photos, err := s.cfg.Gallery.ListPublic(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if photos == nil {
		photos = []gallery.Photo{}
	}
	writeJSON(w, http.StatusOK, photos)
}

func (s *Server) handlePublicImage(w http.ResponseWriter, r *http.Request) {
	id, err := photoID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	photo, err := s.cfg.Gallery.PublicPhoto(id)
	if err != nil {
		writeError(w, err)
		return
	}
	img, err := s.session.Image(r.Context(), photo.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", img.MIMEType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(img.Data)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	user, token, err := s.cfg.Gallery.EnsureUser(body.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	if token == "" {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "user already exists"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user, "token": token})
}

func (s *Server) handleListPhotos(w http.ResponseWriter, r *http.Request) {
	photos, err := s.cfg.Gallery.ListPhotos(galleryUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if photos == nil {
		photos = []gallery.Photo{}
	}
	writeJSON(w, http.StatusOK, photos)
}

func (s *Server) handleSavePhoto(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CardID string `json:"card_id"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	id, err := ulid.Parse(body.CardID)
	if err != nil {
		writeError(w, fmt.Errorf("%w: card id: %v", errBadRequest, err))
		return
	}
	card, err := s.session.Card(id)
	if err != nil {
		writeError(w, err)
		return
	}
	photo, err := s.cfg.Gallery.SavePhoto(galleryUser(r).ID, card.Card)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, photo)
}

func (s *Server) handleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	id, err := photoID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.cfg.Gallery.DeletePhoto(galleryUser(r).ID, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSharePhoto(w http.ResponseWriter, r *http.Request) {
	id, err := photoID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body struct {
		Public bool `json:"public"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	s.updatePhoto(w, r, id, s.cfg.Gallery.SetPublic(galleryUser(r).ID, id, body.Public))
}

func (s *Server) handleCaptionPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := photoID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body struct {
		Caption string `json:"caption"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	s.updatePhoto(w, r, id, s.cfg.Gallery.UpdateCaption(galleryUser(r).ID, id, body.Caption))
}

func (s *Server) updatePhoto(w http.ResponseWriter, r *http.Request, id uuid.UUID, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	photo, err := s.cfg.Gallery.Photo(galleryUser(r).ID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, photo)
}

// handleRestorePhoto brings a saved photo back onto the board. It goes through
// capture, so the card develops like a fresh one while already wearing the
// photo's look and edit provenance.
func (s *Server) handleRestorePhoto(w http.ResponseWriter, r *http.Request) {
	id, err := photoID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	photo, err := s.cfg.Gallery.Photo(galleryUser(r).ID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	card, err := s.session.Restore(r.Context(), gallery.ToCard(photo))
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := s.session.Card(card.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}
