// ABOUTME: Content-addressed storage for card image payloads.
// ABOUTME: References are "sha256:<hex>" digests, so identical images share one entry.
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/2389-research/snapboard/board/core"
)

const refPrefix = "sha256:"

var (
	// ErrNotFound indicates no payload is stored under the reference.
	ErrNotFound = errors.New("blob not found")

	// ErrBadRef indicates a malformed content reference.
	ErrBadRef = errors.New("malformed content reference")

	// ErrEmpty indicates an attempt to store an image with no bytes.
	ErrEmpty = errors.New("empty image")
)

// Image is an encoded still plus its media type.
type Image struct {
	Data     []byte
	MIMEType string
}

// Empty reports whether the image carries no bytes.
func (i Image) Empty() bool { return len(i.Data) == 0 }

// NewImage wraps data, sniffing the media type when mime is empty.
func NewImage(data []byte, mime string) Image {
	if mime == "" && len(data) > 0 {
		mime = http.DetectContentType(data)
	}
	return Image{Data: data, MIMEType: mime}
}

// Store persists image payloads under their content reference.
type Store interface {
	Put(ctx context.Context, img Image) (core.ContentRef, error)
	Get(ctx context.Context, ref core.ContentRef) (Image, error)
	Delete(ctx context.Context, ref core.ContentRef) error
}

// RefFor computes the content reference of data.
func RefFor(data []byte) core.ContentRef {
	sum := sha256.Sum256(data)
	return core.ContentRef(refPrefix + hex.EncodeToString(sum[:]))
}

// digest validates ref and returns its hex digest.
func digest(ref core.ContentRef) (string, error) {
	s := string(ref)
	if !strings.HasPrefix(s, refPrefix) {
		return "", fmt.Errorf("%w: %q", ErrBadRef, s)
	}
	hexPart := s[len(refPrefix):]
	if len(hexPart) != sha256.Size*2 {
		return "", fmt.Errorf("%w: %q", ErrBadRef, s)
	}
	if _, err := hex.DecodeString(hexPart); err != nil {
		return "", fmt.Errorf("%w: %q", ErrBadRef, s)
	}
	return hexPart, nil
}

// ParseRef validates a reference string from an untrusted source.
func ParseRef(s string) (core.ContentRef, error) {
	ref := core.ContentRef(s)
	if _, err := digest(ref); err != nil {
		return "", err
	}
	return ref, nil
}
