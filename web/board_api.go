// ABOUTME: Board JSON API handlers: snapshot, capture, card patch/delete, edits, blobs, catalog and exports.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/2389-research/snapboard/blob"
	"github.com/2389-research/snapboard/board"
	"github.com/2389-research/snapboard/board/catalog"
	"github.com/2389-research/snapboard/board/core"
	"github.com/2389-research/snapboard/camera"
	"github.com/2389-research/snapboard/export"
)

// BoardSnapshot is the full board as served to clients.
type BoardSnapshot struct {
	Cards             []board.CardView `json:"cards"`
	Dial              board.DialState  `json:"dial"`
	CameraUnavailable bool             `json:"camera_unavailable"`
}

func (s *Server) snapshot() (BoardSnapshot, error) {
	cards, err := s.session.Cards()
	if err != nil {
		return BoardSnapshot{}, err
	}
	dial, err := s.session.Dial()
	if err != nil {
		return BoardSnapshot{}, err
	}
	if cards == nil {
		cards = []board.CardView{}
	}
	return BoardSnapshot{Cards: cards, Dial: dial, CameraUnavailable: s.session.CameraUnavailable()}, nil
}

func (s *Server) handleBoard(w http.ResponseWriter, _ *http.Request) {
	snap, err := s.snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleCapture accepts an uploaded still, or fires the server camera when the
// request carries no image.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("filter")
	img, err := camera.DecodeUpload(r)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") && filter == "" {
		filter = r.FormValue("filter")
	}
	if errors.Is(err, camera.ErrUnavailable) && s.cfg.Camera != nil {
		img, err = s.cfg.Camera.Capture(r.Context())
	}
	if err != nil && !errors.Is(err, camera.ErrUnavailable) {
		writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err != nil {
		s.session.CaptureUnavailable(err.Error())
		writeError(w, fmt.Errorf("%w: %v", core.ErrCaptureUnavailable, err))
		return
	}

	card, err := s.session.Capture(r.Context(), img, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func cardID(r *http.Request) (ulid.ULID, error) {
	id, err := ulid.Parse(chi.URLParam(r, "cardID"))
	if err != nil {
		return ulid.ULID{}, fmt.Errorf("%w: card id: %v", errBadRequest, err)
	}
	return id, nil
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	card, err := s.session.Card(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.session.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// cardEdits is the PATCH body; absent fields are left alone and an empty
// caption or filter clears it.
type cardEdits struct {
	Caption *string `json:"caption"`
	Frame   *string `json:"frame"`
	Filter  *string `json:"filter"`
}

func (s *Server) handlePatchCard(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body cardEdits
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&body); err != nil {
		writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if body.Frame != nil {
		frame, err := core.ParseFrame(*body.Frame)
		if err != nil {
			writeError(w, fmt.Errorf("%w: %v", board.ErrUnknownOption, err))
			return
		}
		if err := s.session.SetFrame(id, frame); err != nil {
			writeError(w, err)
			return
		}
	}
	if body.Filter != nil {
		if err := s.session.SetFilter(id, *body.Filter); err != nil {
			writeError(w, err)
			return
		}
	}
	if body.Caption != nil {
		if err := s.session.SetCaption(id, *body.Caption); err != nil {
			writeError(w, err)
			return
		}
	}
	card, err := s.session.Card(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

type editRequest struct {
	Instruction string `json:"instruction"`
	Preset      string `json:"preset"`
}

// handleEdit starts an edit and answers 202 with the card in editing state;
// the result arrives as a board event.
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body editRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&body); err != nil {
		writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if body.Preset != "" {
		_, err = s.session.RequestPreset(id, body.Preset)
	} else {
		_, err = s.session.RequestEdit(id, body.Instruction)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	card, err := s.session.Card(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, card)
}

func (s *Server) handleDialSet(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Index  *int   `json:"index"`
		Filter string `json:"filter"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&body); err != nil {
		writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	index := -1
	switch {
	case body.Index != nil:
		index = *body.Index
	case body.Filter != "":
		index = s.session.Catalog().FilterIndex(body.Filter)
	}
	if index < 0 {
		writeError(w, fmt.Errorf("%w: dial needs an index or a known filter", board.ErrUnknownOption))
		return
	}
	st, err := s.session.DialSet(index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleBlob(w http.ResponseWriter, r *http.Request) {
	ref, err := blob.ParseRef(chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, err)
		return
	}
	img, err := s.session.Image(r.Context(), ref)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", img.MIMEType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("ETag", `"`+ref.String()+`"`)
	_, _ = w.Write(img.Data)
}

type frameView struct {
	catalog.FrameStyle
	DescriptionHTML string `json:"description_html"`
}

type catalogView struct {
	Filters []catalog.Filter     `json:"filters"`
	Frames  []frameView          `json:"frames"`
	Edits   []catalog.EditPreset `json:"edits"`
}

// handleCatalog serves the option catalog with frame descriptions rendered
// from Markdown.
func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	cat := s.session.Catalog()
	view := catalogView{Filters: cat.Filters, Edits: cat.Edits}
	for _, f := range cat.Frames {
		var buf bytes.Buffer
		if err := s.markdown.Convert([]byte(f.Description), &buf); err != nil {
			writeError(w, fmt.Errorf("render frame %s: %w", f.ID, err))
			return
		}
		view.Frames = append(view.Frames, frameView{FrameStyle: f, DescriptionHTML: buf.String()})
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) boardCards() ([]core.Card, error) {
	views, err := s.session.Cards()
	if err != nil {
		return nil, err
	}
	cards := make([]core.Card, len(views))
	for i, v := range views {
		cards[i] = v.Card
	}
	return cards, nil
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, "pdf", "application/pdf", func(ctx context.Context, out io.Writer, cards []core.Card) error {
		return export.PDF(ctx, out, "snapboard", cards, s.session, s.session.Catalog())
	})
}

func (s *Server) handleExportParquet(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, "parquet", "application/vnd.apache.parquet", func(_ context.Context, out io.Writer, cards []core.Card) error {
		return export.Parquet(out, cards)
	})
}

func (s *Server) serveExport(w http.ResponseWriter, r *http.Request, format, contentType string, render export.RenderFunc) {
	cards, err := s.boardCards()
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := s.exports.Render(r.Context(), format, cards, render)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="snapboard.`+format+`"`)
	_, _ = w.Write(data)
}
