package progress

import (
	"sync"

	"github.com/skalenetwork/portal-sub000/portal/models"
)

// Sink receives action progress events in emission order.
type Sink interface {
	Emit(models.ProgressEvent)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(models.ProgressEvent)

func (f SinkFunc) Emit(e models.ProgressEvent) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(models.ProgressEvent) {})

// Multi fans an event out to several sinks, in order.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(e models.ProgressEvent) {
		for _, s := range sinks {
			s.Emit(e)
		}
	})
}

type subscriber struct {
	ch   chan models.ProgressEvent
	done chan struct{}
	once sync.Once
}

// Bus delivers every event exactly once to every subscriber, in order. Emit blocks until each
// subscriber has taken the event or unsubscribed, so a slow subscriber slows the emitter down
// instead of losing events.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
	closed bool
}

var _ Sink = (*Bus)(nil)

func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe registers a subscriber with the given channel buffer. The returned function
// unsubscribes and closes the channel. It is safe to call more than once.
func (b *Bus) Subscribe(buffer int) (<-chan models.ProgressEvent, func()) {
	sub := &subscriber{
		ch:   make(chan models.ProgressEvent, buffer),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	cancel := func() {
		sub.once.Do(func() {
			// unblocks a pending Emit before we take the lock
			close(sub.done)
			b.mu.Lock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub.ch)
			}
			b.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// Emit implements Sink.
func (b *Bus) Emit(e models.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for i := 0; i < b.nextID; i++ {
		sub, ok := b.subs[i]
		if !ok {
			continue
		}
		select {
		case sub.ch <- e:
		case <-sub.done:
		}
	}
}

// Close closes every subscriber channel. Later events are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}

// Recorder is a Sink that keeps every event, for hosts that poll instead of subscribing.
type Recorder struct {
	mu     sync.Mutex
	events []models.ProgressEvent
}

func (r *Recorder) Emit(e models.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []models.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ProgressEvent, len(r.events))
	copy(out, r.events)
	return out
}

// States returns the recorded state labels.
func (r *Recorder) States() []models.ActionState {
	events := r.Events()
	out := make([]models.ActionState, len(events))
	for i, e := range events {
		out[i] = e.ActionState
	}
	return out
}
