// ABOUTME: Opens the persistent board behind every interactive command: journal, blobs, catalog, editor and camera.
// ABOUTME: The journal is repaired, replayed into the store, then records every durable event the loop emits.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389-research/snapboard/blob"
	"github.com/2389-research/snapboard/board"
	"github.com/2389-research/snapboard/board/catalog"
	"github.com/2389-research/snapboard/board/journal"
	"github.com/2389-research/snapboard/camera"
	"github.com/2389-research/snapboard/retouch"
	"github.com/2389-research/snapboard/server"
)

// blobCacheBytes bounds diskv's in-memory cache of recently read images.
const blobCacheBytes = 64 << 20

// runtime is an open board and the resources it holds.
type runtime struct {
	session *board.Session
	blobs   *blob.Disk
	camera  camera.Source
	editor  retouch.Status
	journal *journal.Journal
}

func openBoard(ctx context.Context, cfg *server.Config, logger *slog.Logger) (*runtime, error) {
	kept, err := journal.Repair(cfg.Journal)
	if err != nil {
		return nil, err
	}
	store, next, err := journal.Restore(cfg.Journal, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("board restored",
		slog.String("component", "cli"),
		slog.String("journal", cfg.Journal),
		slog.Int("events", kept),
		slog.Int("cards", store.Len()))

	cat, err := catalog.LoadOrDefault(cfg.Catalog)
	if err != nil {
		return nil, err
	}

	retry := retouch.DefaultRetryPolicy()
	retry.MaxRetries = cfg.EditRetries
	rcfg := retouch.FromEnv(retouch.Config{
		Provider: cfg.EditProvider,
		Model:    cfg.EditModel,
		Retry:    retry,
	}, nil)
	rcfg.Retry.OnRetry = func(err error, attempt int, delay time.Duration) {
		logger.Warn("image edit retry",
			slog.String("component", "retouch"),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("err", err))
	}
	editor, err := retouch.New(ctx, rcfg)
	switch {
	case errors.Is(err, retouch.ErrNoProvider) && rcfg.Provider == "":
		logger.Warn("no image model configured; AI edits are disabled", slog.String("component", "cli"))
	case err != nil:
		return nil, fmt.Errorf("image editor: %w", err)
	}

	var cam camera.Source
	if cfg.CameraDir != "" {
		cam = camera.NewDirSource(cfg.CameraDir)
	}

	j, err := journal.Open(cfg.Journal)
	if err != nil {
		return nil, err
	}

	blobs := blob.OpenDisk(cfg.BlobDir, blobCacheBytes)
	session, err := board.New(ctx, board.Options{
		Config:  board.DefaultConfig(),
		Blobs:   blobs,
		Editor:  editor,
		Catalog: cat,
		Store:   store,
		NextSeq: next,
		Record:  j.Recorder(logger),
		Logger:  logger,
	})
	if err != nil {
		_ = j.Close()
		return nil, err
	}
	return &runtime{session: session, blobs: blobs, camera: cam, editor: rcfg.Describe(), journal: j}, nil
}

// Close shuts the board down and syncs the journal.
func (rt *runtime) Close() error {
	rt.session.Close()
	return rt.journal.Close()
}
