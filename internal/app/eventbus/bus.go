// Package eventbus provides a small typed publish/subscribe primitive.
//
// The bus decouples the playback engine and audio service from their
// observers (UI adapters, statistics collectors) without any of them
// importing each other.
package eventbus

import (
	"reflect"
	"sync"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// Topic identifies a named event stream.
type Topic string

// Handler receives the payload published on a topic.
type Handler func(payload any)

// subscription is one registered handler on a topic.
type subscription struct {
	id   string
	fn   Handler
	once bool
}

// Bus delivers published payloads to subscribed handlers.
//
// Handlers on a topic run in registration order. A panicking handler is
// recovered and logged and does not prevent the remaining handlers from
// running.
type Bus struct {
	mu       sync.Mutex
	handlers map[Topic][]*subscription
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		handlers: make(map[Topic][]*subscription),
	}
}

// On registers a handler for a topic and returns its unsubscribe function.
// Unsubscribing twice is safe.
func (b *Bus) On(topic Topic, fn Handler) func() {
	return b.subscribe(topic, fn, false)
}

// Once registers a handler that is removed after its first invocation.
// The removal happens under the bus lock, so the handler can never run
// twice even when emits race.
func (b *Bus) Once(topic Topic, fn Handler) func() {
	return b.subscribe(topic, fn, true)
}

func (b *Bus) subscribe(topic Topic, fn Handler, once bool) func() {
	sub := &subscription{
		id:   uuid.New().String(),
		fn:   fn,
		once: once,
	}

	b.mu.Lock()
	b.handlers[topic] = append(b.handlers[topic], sub)
	b.mu.Unlock()

	return func() {
		b.remove(topic, sub.id)
	}
}

// Off removes handlers from a topic. With no handler arguments every
// handler on the topic is removed; otherwise only the given handlers are.
// Removing a handler that is not registered is a no-op.
func (b *Bus) Off(topic Topic, fns ...Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(fns) == 0 {
		delete(b.handlers, topic)
		return
	}

	subs := b.handlers[topic]
	kept := subs[:0]
	for _, sub := range subs {
		if !matchesAny(sub.fn, fns) {
			kept = append(kept, sub)
		}
	}
	if len(kept) == 0 {
		delete(b.handlers, topic)
		return
	}
	b.handlers[topic] = kept
}

// Emit delivers payload to every handler registered for topic, in
// registration order. Once-handlers are unregistered before they run.
func (b *Bus) Emit(topic Topic, payload any) {
	b.mu.Lock()
	subs := b.handlers[topic]
	toRun := make([]*subscription, len(subs))
	copy(toRun, subs)

	// Drop once-subscriptions while still holding the lock so a racing
	// Emit cannot pick them up again.
	kept := subs[:0]
	for _, sub := range subs {
		if !sub.once {
			kept = append(kept, sub)
		}
	}
	if len(kept) == 0 {
		delete(b.handlers, topic)
	} else {
		b.handlers[topic] = kept
	}
	b.mu.Unlock()

	for _, sub := range toRun {
		invoke(topic, sub.fn, payload)
	}
}

func invoke(topic Topic, fn Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("eventbus: handler panic on topic %s: %v", topic, r)
		}
	}()
	fn(payload)
}

func (b *Bus) remove(topic Topic, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[topic]
	for i, sub := range subs {
		if sub.id == id {
			b.handlers[topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.handlers[topic]) == 0 {
		delete(b.handlers, topic)
	}
}

// matchesAny reports whether fn is one of the given handlers. Function
// values are compared by code pointer, which is what callers passing the
// same named function or stored closure expect.
func matchesAny(fn Handler, fns []Handler) bool {
	p := reflect.ValueOf(fn).Pointer()
	for _, other := range fns {
		if reflect.ValueOf(other).Pointer() == p {
			return true
		}
	}
	return false
}
