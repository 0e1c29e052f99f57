// ABOUTME: In-memory blob store for tests and ephemeral boards.
package blob

import (
	"context"
	"sync"

	"github.com/2389-research/snapboard/board/core"
)

// Memory is a mutex-guarded map of payloads.
type Memory struct {
	mu    sync.RWMutex
	items map[core.ContentRef]Image
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[core.ContentRef]Image)}
}

func (m *Memory) Put(_ context.Context, img Image) (core.ContentRef, error) {
	if img.Empty() {
		return "", ErrEmpty
	}
	ref := RefFor(img.Data)
	data := make([]byte, len(img.Data))
	copy(data, img.Data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[ref] = NewImage(data, img.MIMEType)
	return ref, nil
}

func (m *Memory) Get(_ context.Context, ref core.ContentRef) (Image, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	img, ok := m.items[ref]
	if !ok {
		return Image{}, ErrNotFound
	}
	return img, nil
}

func (m *Memory) Delete(_ context.Context, ref core.ContentRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, ref)
	return nil
}

// Len returns the number of stored payloads.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
