// ABOUTME: Loop is the single goroutine that owns a board Store and runs every mutation to completion.
// ABOUTME: Emitted payloads are stamped with a sequence number and fanned out through an EventBroadcaster.
package core

import (
	"sync"
	"time"
)

// EventBroadcaster fans events out to subscribers. Each subscriber gets a
// buffered channel; Broadcast never blocks and drops events for full buffers.
type EventBroadcaster struct {
	mu          sync.RWMutex
	subscribers []chan Event
}

// NewEventBroadcaster creates a broadcaster with no subscribers.
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{}
}

// Subscribe creates a new buffered channel for receiving events.
func (b *EventBroadcaster) Subscribe() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, 4096)
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Unsubscribe removes ch and closes it. Unknown channels are ignored.
func (b *EventBroadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subscribers {
		if sub == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

// Close closes every subscriber channel.
func (b *EventBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}

// Broadcast delivers event to every subscriber with room in its buffer.
func (b *EventBroadcaster) Broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Loop serializes work onto one goroutine.
type Loop struct {
	work        chan func()
	done        chan struct{}
	closeOnce   sync.Once
	broadcaster *EventBroadcaster
	nextSeq     uint64
	now         func() time.Time
	record      func(Event)
}

// StartLoop launches the loop goroutine. nextSeq is the sequence number of the
// first event it will emit, so a restored board keeps counting where it left off.
func StartLoop(nextSeq uint64) *Loop {
	if nextSeq == 0 {
		nextSeq = 1
	}
	l := &Loop{
		work:        make(chan func(), 256),
		done:        make(chan struct{}),
		broadcaster: NewEventBroadcaster(),
		nextSeq:     nextSeq,
		now:         func() time.Time { return time.Now().UTC() },
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	for {
		select {
		case fn := <-l.work:
			fn()
		case <-l.done:
			return
		}
	}
}

// Do runs fn on the loop and waits for it to finish.
// Calling Do from inside loop work deadlocks; use Post there.
func (l *Loop) Do(fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrLoopClosed
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopClosed
	}
}

// Post queues fn to run on the loop without waiting. It returns false once the loop is closed.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.work <- fn:
		return true
	case <-l.done:
		return false
	}
}

// SetRecorder installs fn to receive every event synchronously on the loop,
// before subscribers see it. Subscribers may miss events; the recorder never
// does. Call it before posting any work.
func (l *Loop) SetRecorder(fn func(Event)) {
	l.record = fn
}

// Emit stamps p, records it and broadcasts it. Only loop work may call Emit.
func (l *Loop) Emit(p EventPayload) Event {
	ev := Event{Seq: l.nextSeq, Timestamp: l.now(), Payload: p}
	l.nextSeq++
	if l.record != nil {
		l.record(ev)
	}
	l.broadcaster.Broadcast(ev)
	return ev
}

// Subscribe returns a channel that receives every emitted event.
func (l *Loop) Subscribe() chan Event {
	return l.broadcaster.Subscribe()
}

// Unsubscribe detaches and closes a subscription.
func (l *Loop) Unsubscribe(ch chan Event) {
	l.broadcaster.Unsubscribe(ch)
}

// Done is closed when the loop stops.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Close stops the loop and closes all subscriptions. Queued work is discarded.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
		l.broadcaster.Close()
	})
}
