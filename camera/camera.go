// ABOUTME: Capture collaborators: sources that supply a still image when the shutter fires.
// ABOUTME: DirSource reads the newest still from a directory; DecodeUpload accepts browser uploads.
package camera

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/2389-research/snapboard/blob"
)

// ErrUnavailable means no image could be supplied.
var ErrUnavailable = errors.New("camera unavailable")

// MaxUploadBytes bounds a single still.
const MaxUploadBytes = 16 << 20

// Source supplies one still per call.
type Source interface {
	Capture(ctx context.Context) (blob.Image, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (blob.Image, error)

// Capture implements Source.
func (f SourceFunc) Capture(ctx context.Context) (blob.Image, error) { return f(ctx) }

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true}

// DirSource serves the newest image file in a directory, such as the drop
// folder of a tethered camera. A still is handed out at most once.
type DirSource struct {
	dir string

	mu   sync.Mutex
	last string
	seen time.Time
}

// NewDirSource watches dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Capture returns the newest still not yet captured.
func (d *DirSource) Capture(ctx context.Context) (blob.Image, error) {
	if err := ctx.Err(); err != nil {
		return blob.Image{}, err
	}
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return blob.Image{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var newest string
	var newestAt time.Time
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestAt) {
			newest, newestAt = e.Name(), info.ModTime()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if newest == "" || (newest == d.last && !newestAt.After(d.seen)) {
		return blob.Image{}, fmt.Errorf("%w: no new still in %s", ErrUnavailable, d.dir)
	}
	data, err := os.ReadFile(filepath.Join(d.dir, newest))
	if err != nil {
		return blob.Image{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(data) == 0 {
		return blob.Image{}, fmt.Errorf("%w: %s is empty", ErrUnavailable, newest)
	}
	d.last, d.seen = newest, newestAt
	return blob.NewImage(data, ""), nil
}

// DecodeUpload extracts a still from a capture request. It accepts a multipart
// form with an "image" file, a raw image body, or a data URL body such as a
// browser canvas produces.
func DecodeUpload(r *http.Request) (blob.Image, error) {
	body := http.MaxBytesReader(nil, r.Body, MaxUploadBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch {
	case mediaType == "multipart/form-data":
		r.Body = body
		if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
			return blob.Image{}, fmt.Errorf("parse upload: %w", err)
		}
		file, hdr, err := r.FormFile("image")
		if errors.Is(err, http.ErrMissingFile) {
			return blob.Image{}, ErrUnavailable
		}
		if err != nil {
			return blob.Image{}, fmt.Errorf("read upload: %w", err)
		}
		defer func() { _ = file.Close() }()
		data, err := io.ReadAll(file)
		if err != nil {
			return blob.Image{}, fmt.Errorf("read upload: %w", err)
		}
		return nonEmpty(blob.NewImage(data, hdr.Header.Get("Content-Type")))
	default:
		data, err := io.ReadAll(body)
		if err != nil {
			return blob.Image{}, fmt.Errorf("read upload: %w", err)
		}
		if strings.HasPrefix(string(data[:min(len(data), 5)]), "data:") {
			return DecodeDataURL(string(data))
		}
		declared := mediaType
		if !strings.HasPrefix(declared, "image/") {
			declared = ""
		}
		return nonEmpty(blob.NewImage(data, declared))
	}
}

// DecodeDataURL decodes a base64 data URL.
func DecodeDataURL(s string) (blob.Image, error) {
	s = strings.TrimSpace(s)
	header, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return blob.Image{}, fmt.Errorf("invalid data URL")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return blob.Image{}, fmt.Errorf("decode data URL: %w", err)
	}
	return nonEmpty(blob.NewImage(data, strings.TrimSuffix(header, ";base64")))
}

func nonEmpty(img blob.Image) (blob.Image, error) {
	if img.Empty() {
		return blob.Image{}, ErrUnavailable
	}
	return img, nil
}
