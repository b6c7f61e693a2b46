// Package eventbus provides the synchronous, string-keyed subscription
// registry events are delivered through.
//
// Topics are arbitrary strings. The OneBot taxonomy ("notice.group.recall")
// and caller-chosen names share the same table; the registry has no notion
// of a closed topic set.
package eventbus

import (
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sipeed/onebot-go/pkg/events"
	"github.com/sipeed/onebot-go/pkg/logger"
)

// Handler processes one event. A returned error is reported but does not
// stop delivery to other handlers.
type Handler func(ev events.Event) error

// ID identifies a subscription for Unsubscribe.
type ID uint64

// PanicHandler is called when a handler panics. stack is the goroutine stack
// at the point of recovery.
type PanicHandler func(topic string, value any, stack []byte)

// ErrorHandler is called when a handler returns an error.
type ErrorHandler func(topic string, err error)

type listener struct {
	id      ID
	handler Handler
	once    bool
}

// Registry stores listeners per topic and dispatches to them in
// registration order.
type Registry struct {
	topics map[string][]*listener
	mu     sync.RWMutex
	nextID atomic.Uint64

	onPanic PanicHandler
	onError ErrorHandler
}

// Option configures a Registry.
type Option func(*Registry)

// WithPanicHandler sets the hook invoked when a handler panics.
func WithPanicHandler(h PanicHandler) Option {
	return func(r *Registry) {
		r.onPanic = h
	}
}

// WithErrorHandler sets the hook invoked when a handler returns an error.
func WithErrorHandler(h ErrorHandler) Option {
	return func(r *Registry) {
		r.onError = h
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		topics:  make(map[string][]*listener),
		onPanic: defaultPanicHandler,
		onError: defaultErrorHandler,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func defaultPanicHandler(topic string, value any, stack []byte) {
	logger.ErrorCF("eventbus", "Handler panicked", map[string]interface{}{
		"topic": topic,
		"panic": fmt.Sprint(value),
		"stack": string(stack),
	})
}

func defaultErrorHandler(topic string, err error) {
	logger.WarnCF("eventbus", "Handler failed", map[string]interface{}{
		"topic": topic,
		"error": err.Error(),
	})
}

// Subscribe registers a handler for topic.
func (r *Registry) Subscribe(topic string, h Handler) ID {
	return r.add(topic, h, false)
}

// SubscribeOnce registers a handler that is removed before its first call.
func (r *Registry) SubscribeOnce(topic string, h Handler) ID {
	return r.add(topic, h, true)
}

func (r *Registry) add(topic string, h Handler, once bool) ID {
	id := ID(r.nextID.Add(1))

	r.mu.Lock()
	defer r.mu.Unlock()

	r.topics[topic] = append(r.topics[topic], &listener{id: id, handler: h, once: once})
	return id
}

// Unsubscribe removes one subscription. It reports whether it was present.
func (r *Registry) Unsubscribe(topic string, id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.removeLocked(topic, id)
}

func (r *Registry) removeLocked(topic string, id ID) bool {
	list := r.topics[topic]
	for i, l := range list {
		if l.id != id {
			continue
		}
		rest := make([]*listener, 0, len(list)-1)
		rest = append(rest, list[:i]...)
		rest = append(rest, list[i+1:]...)
		if len(rest) == 0 {
			delete(r.topics, topic)
		} else {
			r.topics[topic] = rest
		}
		return true
	}
	return false
}

// UnsubscribeAll removes every listener on the given topics, or on all
// topics when called without arguments.
func (r *Registry) UnsubscribeAll(topics ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(topics) == 0 {
		r.topics = make(map[string][]*listener)
		return
	}
	for _, t := range topics {
		delete(r.topics, t)
	}
}

// ListenerCount returns the number of listeners on topic.
func (r *Registry) ListenerCount(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.topics[topic])
}

// Listeners returns the handlers on topic in registration order.
func (r *Registry) Listeners(topic string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.topics[topic]
	out := make([]Handler, len(list))
	for i, l := range list {
		out[i] = l.handler
	}
	return out
}

// Topics returns the topics that currently have listeners, sorted.
func (r *Registry) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.topics))
	for t := range r.topics {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// HandlerCount returns the total number of registered handlers (for diagnostics).
func (r *Registry) HandlerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, list := range r.topics {
		count += len(list)
	}
	return count
}

// Dispatch calls every handler registered on topic, in registration order,
// in the caller's goroutine. Each handler gets its own copy of ev named
// after topic. Handlers run without the registry lock held and may
// subscribe or unsubscribe freely.
func (r *Registry) Dispatch(topic string, ev events.Event) Result {
	r.mu.RLock()
	snapshot := make([]*listener, len(r.topics[topic]))
	copy(snapshot, r.topics[topic])
	r.mu.RUnlock()

	var res Result
	for _, l := range snapshot {
		if l.once && !r.claim(topic, l.id) {
			// Another dispatch already fired it.
			continue
		}

		res.Delivered++
		if err := r.call(topic, l.handler, ev.WithName(events.Topic(topic))); err != nil {
			res.Errors = append(res.Errors, err)
		}
	}
	return res
}

// claim removes a one-shot listener and reports whether this caller won it.
func (r *Registry) claim(topic string, id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.removeLocked(topic, id)
}

func (r *Registry) call(topic string, h Handler, ev events.Event) (err error) {
	defer func() {
		v := recover()
		if v == nil {
			return
		}
		stack := debug.Stack()
		err = &PanicError{Topic: topic, Value: v, Stack: stack}

		if r.onPanic != nil {
			func() {
				defer func() { _ = recover() }()
				r.onPanic(topic, v, stack)
			}()
		}
	}()

	if err := h(ev); err != nil {
		if r.onError != nil {
			r.onError(topic, err)
		}
		return &HandlerError{Topic: topic, Err: err}
	}
	return nil
}
