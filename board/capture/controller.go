// ABOUTME: Capture controller: turns a captured still into a developing card and develops it on a timer.
// ABOUTME: Pending develop timers are indexed by card id so deleting a card cancels its timer.
package capture

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/2389-research/snapboard/board/core"
)

// Config holds the presentation-tuned constants of the camera.
type Config struct {
	// Slot is where a freshly ejected card appears.
	Slot core.Point
	// JitterDegrees bounds the random initial rotation to [-JitterDegrees, +JitterDegrees].
	JitterDegrees float64
	// DevelopDelay is how long a card stays developing.
	DevelopDelay time.Duration
	// SettleOffset is subtracted from Y when a card finishes developing.
	SettleOffset float64
	// FlashDuration is how long the flash signal stays on.
	FlashDuration time.Duration
}

// DefaultConfig returns the camera's standard timings and geometry.
func DefaultConfig() Config {
	return Config{
		Slot:          core.Point{X: 100, Y: 200},
		JitterDegrees: 3,
		DevelopDelay:  6 * time.Second,
		SettleOffset:  170,
		FlashDuration: 250 * time.Millisecond,
	}
}

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs fn after d on some other goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type systemScheduler struct{}

func (systemScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// SystemScheduler schedules with time.AfterFunc.
func SystemScheduler() Scheduler { return systemScheduler{} }

// Options wires a Controller to its board.
type Options struct {
	Store *core.Store
	// Dispatch hands timer callbacks back to the goroutine that owns Store.
	Dispatch func(func())
	// Emit publishes presentation signals such as the flash.
	Emit      func(core.EventPayload)
	Scheduler Scheduler
	// Rand returns a value in [0, 1). Defaults to math/rand/v2.
	Rand   func() float64
	Config Config
	Logger *slog.Logger
}

// Controller owns the develop timers of one board. All methods must run on
// the goroutine that owns the Store.
type Controller struct {
	store    *core.Store
	dispatch func(func())
	emit     func(core.EventPayload)
	sched    Scheduler
	rand     func() float64
	cfg      Config
	logger   *slog.Logger

	timers map[ulid.ULID]Timer
	flash  Timer
}

// New creates a Controller.
func New(opts Options) *Controller {
	c := &Controller{
		store:    opts.Store,
		dispatch: opts.Dispatch,
		emit:     opts.Emit,
		sched:    opts.Scheduler,
		rand:     opts.Rand,
		cfg:      opts.Config,
		logger:   opts.Logger,
		timers:   make(map[ulid.ULID]Timer),
	}
	if c.dispatch == nil {
		c.dispatch = func(fn func()) { fn() }
	}
	if c.emit == nil {
		c.emit = func(core.EventPayload) {}
	}
	if c.sched == nil {
		c.sched = SystemScheduler()
	}
	if c.rand == nil {
		c.rand = rand.Float64
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Capture places a developing card for content and starts its develop timer.
// An empty reference means the camera produced nothing; no card is created.
func (c *Controller) Capture(content core.ContentRef, filter string) (core.Card, error) {
	if content.IsZero() {
		c.emit(core.CaptureUnavailablePayload{Reason: "no image payload"})
		return core.Card{}, core.ErrCaptureUnavailable
	}

	jitter := (c.rand()*2 - 1) * c.cfg.JitterDegrees
	card := core.NewCard(content, c.cfg.Slot, jitter)
	if filter != "" {
		card.Filter = core.Ptr(filter)
	}
	if err := c.store.Create(card); err != nil {
		return core.Card{}, fmt.Errorf("capture: %w", err)
	}

	c.fireFlash()
	c.Schedule(card.ID)

	c.logger.Info("card captured",
		slog.String("component", "board.capture"),
		slog.String("card_id", card.ID.String()),
		slog.Float64("rotation", jitter))
	return card, nil
}

// Schedule starts (or restarts) the develop timer for a developing card.
func (c *Controller) Schedule(id ulid.ULID) {
	if t, ok := c.timers[id]; ok {
		t.Stop()
	}
	c.timers[id] = c.sched.AfterFunc(c.cfg.DevelopDelay, func() {
		c.dispatch(func() { c.develop(id) })
	})
}

// Forget cancels a pending develop timer. Unknown ids are ignored.
func (c *Controller) Forget(id ulid.ULID) {
	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
}

// Pending returns the number of cards still waiting to develop.
func (c *Controller) Pending() int {
	return len(c.timers)
}

// Stop cancels every pending timer.
func (c *Controller) Stop() {
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	if c.flash != nil {
		c.flash.Stop()
		c.flash = nil
	}
}

func (c *Controller) develop(id ulid.ULID) {
	delete(c.timers, id)
	card, ok := c.store.Get(id)
	if !ok || card.Status != core.StatusDeveloping {
		return
	}
	settled := card.Position.Sub(core.Point{Y: c.cfg.SettleOffset})
	err := c.store.Update(id, core.CardPatch{
		Status:   core.Ptr(core.StatusIdle),
		Position: &settled,
	})
	if err != nil {
		c.logger.Error("develop failed",
			slog.String("component", "board.capture"),
			slog.String("card_id", id.String()),
			slog.Any("err", err))
		return
	}
	c.logger.Debug("card developed",
		slog.String("component", "board.capture"),
		slog.String("card_id", id.String()))
}

func (c *Controller) fireFlash() {
	if c.flash != nil {
		c.flash.Stop()
	}
	c.emit(core.FlashPayload{On: true})
	var t Timer
	t = c.sched.AfterFunc(c.cfg.FlashDuration, func() {
		c.dispatch(func() {
			// A newer capture owns the flash now.
			if c.flash != t {
				return
			}
			c.flash = nil
			c.emit(core.FlashPayload{On: false})
		})
	})
	c.flash = t
}
