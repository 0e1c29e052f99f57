// ABOUTME: Append-only JSONL journal of durable board events, with replay and tail repair.
// ABOUTME: Restore rebuilds a Store from the journal, skipping events it cannot apply, so a board survives restarts.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/2389-research/snapboard/board/core"
)

// Journal appends board events to a file, one JSON object per line.
type Journal struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	closed bool
}

// Open opens (or creates) the journal at path in append mode.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{path: path, file: file}, nil
}

// Path returns the journal file location.
func (j *Journal) Path() string { return j.path }

// Append writes one event and fsyncs.
func (j *Journal) Append(ev core.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.write(ev); err != nil {
		return err
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("fsync journal: %w", err)
	}
	return nil
}

func (j *Journal) write(ev core.Event) error {
	if j.closed {
		return os.ErrClosed
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := j.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Sync flushes written events to stable storage.
func (j *Journal) Sync() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	return j.file.Sync()
}

// Close syncs and closes the journal file. Later writes are discarded.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	syncErr := j.file.Sync()
	if err := j.file.Close(); err != nil {
		return err
	}
	return syncErr
}

// Recorder returns a function that writes every durable event to the journal
// as it is emitted. It is meant for core.Loop.SetRecorder, so it sees each
// event exactly once and in order. Lines reach the OS immediately and stable
// storage on Sync or Close. Write failures are logged and do not stop the board.
func (j *Journal) Recorder(logger *slog.Logger) func(core.Event) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ev core.Event) {
		if !core.Durable(ev.Payload) {
			return
		}
		j.mu.Lock()
		err := j.write(ev)
		j.mu.Unlock()
		if err != nil && !errors.Is(err, os.ErrClosed) {
			logger.Error("journal write failed",
				slog.String("component", "board.journal"),
				slog.Uint64("seq", ev.Seq),
				slog.Any("err", err))
		}
	}
}

// Replay reads every event in the journal in order. A missing file yields no events.
func Replay(path string) ([]core.Event, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open journal for replay: %w", err)
	}
	defer func() { _ = file.Close() }()

	var events []core.Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var ev core.Event
		if err := json.Unmarshal([]byte(text), &ev); err != nil {
			return nil, fmt.Errorf("parse journal line %d: %w", line, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return events, nil
}

// Restore replays the journal into a fresh Store. It returns the store and the
// sequence number the next event should carry. Events the store rejects are
// logged and skipped so one bad line never keeps a board from opening.
func Restore(path string, logger *slog.Logger) (*core.Store, uint64, error) {
	if logger == nil {
		logger = slog.Default()
	}
	events, err := Replay(path)
	if err != nil {
		return nil, 0, err
	}
	store := core.NewStore()
	next := uint64(1)
	skipped := 0
	for _, ev := range events {
		if err := store.Apply(ev.Payload); err != nil {
			skipped++
			logger.Warn("skipping journal event",
				slog.String("component", "board.journal"),
				slog.Uint64("seq", ev.Seq),
				slog.String("type", ev.Payload.EventPayloadType()),
				slog.Any("err", err))
		}
		if ev.Seq >= next {
			next = ev.Seq + 1
		}
	}
	if skipped > 0 {
		logger.Warn("journal replayed with skipped events",
			slog.String("component", "board.journal"),
			slog.Int("skipped", skipped),
			slog.Int("events", len(events)))
	}
	return store, next, nil
}

// Repair rewrites the journal keeping only complete, parseable lines. The
// rewrite goes through a temp file and an atomic rename. It returns the
// number of events kept.
func Repair(path string) (int, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open journal for repair: %w", err)
	}

	var valid []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var ev core.Event
		if json.Unmarshal([]byte(text), &ev) == nil {
			valid = append(valid, text)
		}
	}
	scanErr := scanner.Err()
	_ = file.Close()
	if scanErr != nil {
		return 0, fmt.Errorf("scan journal for repair: %w", scanErr)
	}

	tmpPath := path + ".tmp"
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("create temp journal: %w", err)
	}
	w := bufio.NewWriter(tmp)
	for _, text := range valid {
		if _, err := w.WriteString(text + "\n"); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
			return 0, fmt.Errorf("write temp journal: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("flush temp journal: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("fsync temp journal: %w", err)
	}
	_ = tmp.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		return 0, fmt.Errorf("replace journal: %w", err)
	}
	if dir, err := os.Open(filepath.Dir(path)); err == nil {
		_ = dir.Sync()
		_ = dir.Close()
	}
	return len(valid), nil
}
