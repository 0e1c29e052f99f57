// ABOUTME: Tests for the export cache covering hits, format and board keys, TTL expiry and error handling.
package export

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/2389-research/snapboard/board/core"
)

type countingRenderer struct {
	calls atomic.Int64
	err   error
}

func (r *countingRenderer) render(_ context.Context, w io.Writer, cards []core.Card) error {
	r.calls.Add(1)
	if r.err != nil {
		return r.err
	}
	_, err := io.WriteString(w, "sheet")
	return err
}

func sampleCards() []core.Card {
	return []core.Card{core.NewCard("sha256:00", core.Point{X: 100, Y: 50}, 2)}
}

func TestCacheReturnsCachedResult(t *testing.T) {
	r := &countingRenderer{}
	c := NewCache(time.Minute)
	cards := sampleCards()

	for i := 0; i < 3; i++ {
		data, err := c.Render(context.Background(), "pdf", cards, r.render)
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		if string(data) != "sheet" {
			t.Errorf("data = %q", data)
		}
	}
	if r.calls.Load() != 1 {
		t.Errorf("expected 1 render, got %d", r.calls.Load())
	}
}

func TestCacheKeysOnFormatAndBoard(t *testing.T) {
	r := &countingRenderer{}
	c := NewCache(time.Minute)
	cards := sampleCards()
	ctx := context.Background()

	_, _ = c.Render(ctx, "pdf", cards, r.render)
	_, _ = c.Render(ctx, "parquet", cards, r.render)
	moved := []core.Card{cards[0].Clone()}
	moved[0].Position.X += 10
	_, _ = c.Render(ctx, "pdf", moved, r.render)

	if r.calls.Load() != 3 || c.Len() != 3 {
		t.Errorf("calls = %d, entries = %d, want 3 and 3", r.calls.Load(), c.Len())
	}
}

func TestCacheExpires(t *testing.T) {
	r := &countingRenderer{}
	c := NewCache(time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }
	cards := sampleCards()

	_, _ = c.Render(context.Background(), "pdf", cards, r.render)
	now = now.Add(2 * time.Minute)
	_, _ = c.Render(context.Background(), "pdf", cards, r.render)
	if r.calls.Load() != 2 {
		t.Errorf("expired entry should re-render, calls = %d", r.calls.Load())
	}
	if c.Len() != 1 {
		t.Errorf("expired entry should be pruned, entries = %d", c.Len())
	}
}

func TestCacheDoesNotCacheErrors(t *testing.T) {
	r := &countingRenderer{err: errors.New("no paper")}
	c := NewCache(time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := c.Render(context.Background(), "pdf", sampleCards(), r.render); err == nil {
			t.Fatal("expected error")
		}
	}
	if r.calls.Load() != 2 || c.Len() != 0 {
		t.Errorf("calls = %d, entries = %d", r.calls.Load(), c.Len())
	}
}

func TestCacheBoundedAndClear(t *testing.T) {
	r := &countingRenderer{}
	c := NewCache(time.Hour)
	for i := 0; i < maxCacheEntries+3; i++ {
		cards := sampleCards()
		cards[0].Position.X = float64(i)
		_, _ = c.Render(context.Background(), "pdf", cards, r.render)
	}
	if c.Len() > maxCacheEntries {
		t.Errorf("entries = %d, bound %d", c.Len(), maxCacheEntries)
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("entries after Clear = %d", c.Len())
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	r := &countingRenderer{}
	c := NewCache(time.Minute)
	cards := sampleCards()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Render(context.Background(), "pdf", cards, r.render); err != nil {
				t.Errorf("Render: %v", err)
			}
		}()
	}
	wg.Wait()
	if c.Len() != 1 {
		t.Errorf("entries = %d", c.Len())
	}
}
