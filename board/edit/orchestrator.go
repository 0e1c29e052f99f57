// ABOUTME: Edit orchestrator: drives a card through idle -> editing -> idle around an image-edit call.
// ABOUTME: The collaborator runs off the board goroutine; its result hops back through Dispatch.
package edit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/2389-research/snapboard/blob"
	"github.com/2389-research/snapboard/board/core"
)

// Editor transforms an image according to a natural-language instruction.
type Editor interface {
	Edit(ctx context.Context, img blob.Image, instruction string) (blob.Image, error)
}

// EditorFunc adapts a function to Editor.
type EditorFunc func(ctx context.Context, img blob.Image, instruction string) (blob.Image, error)

func (f EditorFunc) Edit(ctx context.Context, img blob.Image, instruction string) (blob.Image, error) {
	return f(ctx, img, instruction)
}

// Outcome is the single result of an accepted edit request.
type Outcome struct {
	CardID  ulid.ULID
	Content core.ContentRef
	Err     error
}

// Options wires an Orchestrator to its board.
type Options struct {
	Store  *core.Store
	Blobs  blob.Store
	Editor Editor
	// Dispatch hands completions back to the goroutine that owns Store. It
	// reports false once that goroutine has stopped.
	Dispatch func(func()) bool
	// Done is closed when the owning goroutine stops, so work it accepted
	// but never ran still produces an outcome. Nil means never.
	Done <-chan struct{}
	// Emit publishes EditFailed notifications.
	Emit func(core.EventPayload)
	// Timeout bounds one collaborator call; zero means no bound.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Orchestrator runs edit requests for one board. Request must run on the
// goroutine that owns the Store.
type Orchestrator struct {
	store    *core.Store
	blobs    blob.Store
	editor   Editor
	dispatch func(func()) bool
	done     <-chan struct{}
	emit     func(core.EventPayload)
	timeout  time.Duration
	logger   *slog.Logger
	inflight map[ulid.ULID]string
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		store:    opts.Store,
		blobs:    opts.Blobs,
		editor:   opts.Editor,
		dispatch: opts.Dispatch,
		done:     opts.Done,
		emit:     opts.Emit,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
		inflight: make(map[ulid.ULID]string),
	}
	if o.dispatch == nil {
		o.dispatch = func(fn func()) bool { fn(); return true }
	}
	if o.emit == nil {
		o.emit = func(core.EventPayload) {}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Request starts an edit of card id. It fails fast with ErrEditRejected when
// the instruction is blank or the card is not idle; otherwise the card is
// editing when Request returns and the returned channel yields exactly one Outcome.
func (o *Orchestrator) Request(ctx context.Context, id ulid.ULID, instruction string) (<-chan Outcome, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, fmt.Errorf("%w: empty instruction", core.ErrEditRejected)
	}
	if o.editor == nil {
		return nil, fmt.Errorf("%w: no editor configured", core.ErrEditRejected)
	}
	card, ok := o.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %w", core.ErrEditRejected, &core.CardNotFoundError{CardID: id})
	}
	if card.Status != core.StatusIdle {
		return nil, fmt.Errorf("%w: card %s is %s", core.ErrEditRejected, id, card.Status)
	}
	if err := o.store.Update(id, core.CardPatch{Status: core.Ptr(core.StatusEditing)}); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrEditRejected, err)
	}
	o.inflight[id] = instruction

	o.logger.Info("edit started",
		slog.String("component", "board.edit"),
		slog.String("card_id", id.String()),
		slog.String("instruction", instruction))

	out := make(chan Outcome, 1)
	go o.run(ctx, id, card.Content, instruction, out)
	return out, nil
}

// InFlight returns the number of edits awaiting a collaborator response.
func (o *Orchestrator) InFlight() int {
	return len(o.inflight)
}

func (o *Orchestrator) run(ctx context.Context, id ulid.ULID, src core.ContentRef, instruction string, out chan<- Outcome) {
	var once sync.Once
	delivered := make(chan struct{})
	deliver := func(res Outcome) {
		once.Do(func() {
			out <- res
			close(out)
			close(delivered)
		})
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	var ref core.ContentRef
	img, err := o.blobs.Get(ctx, src)
	if err == nil {
		var edited blob.Image
		edited, err = o.editor.Edit(ctx, img, instruction)
		if err == nil && edited.Empty() {
			err = fmt.Errorf("editor returned no image")
		}
		if err == nil {
			ref, err = o.blobs.Put(ctx, edited)
		}
	}

	if o.dispatch(func() { deliver(o.complete(id, instruction, ref, err)) }) {
		select {
		case <-delivered:
			return
		case <-o.done:
		}
	}
	o.logger.Info("edit abandoned, board closed",
		slog.String("component", "board.edit"),
		slog.String("card_id", id.String()))
	deliver(Outcome{CardID: id, Err: core.ErrLoopClosed})
}

// complete is the single exit from editing for one request.
func (o *Orchestrator) complete(id ulid.ULID, instruction string, ref core.ContentRef, callErr error) Outcome {
	delete(o.inflight, id)

	card, ok := o.store.Get(id)
	if !ok || card.Status != core.StatusEditing {
		o.logger.Info("edit result discarded",
			slog.String("component", "board.edit"),
			slog.String("card_id", id.String()))
		return Outcome{CardID: id, Err: &core.CardNotFoundError{CardID: id}}
	}

	if callErr != nil {
		if err := o.store.Update(id, core.CardPatch{Status: core.Ptr(core.StatusIdle)}); err != nil {
			o.logger.Error("edit rollback failed",
				slog.String("component", "board.edit"),
				slog.String("card_id", id.String()),
				slog.Any("err", err))
		}
		o.emit(core.EditFailedPayload{CardID: id, Instruction: instruction, Reason: callErr.Error()})
		o.logger.Warn("edit failed",
			slog.String("component", "board.edit"),
			slog.String("card_id", id.String()),
			slog.Any("err", callErr))
		return Outcome{CardID: id, Err: fmt.Errorf("%w: %w", core.ErrEditFailed, callErr)}
	}

	err := o.store.Update(id, core.CardPatch{
		Content:    &ref,
		Status:     core.Ptr(core.StatusIdle),
		Provenance: core.Ptr(instruction),
	})
	if err != nil {
		return Outcome{CardID: id, Err: err}
	}
	o.logger.Info("edit applied",
		slog.String("component", "board.edit"),
		slog.String("card_id", id.String()),
		slog.String("content", ref.String()))
	return Outcome{CardID: id, Content: ref}
}
