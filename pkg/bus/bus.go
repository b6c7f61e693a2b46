// Package bus carries the connector's out-of-band traffic: diagnostics about
// the connection and protocol, and copies of raw frames for tracing.
// Nothing on the bus affects request or event delivery.
package bus

import (
	"sync"
	"sync/atomic"
	"time"
)

// tapBuffer is the per-subscriber channel capacity. Slow consumers drop.
const tapBuffer = 64

type frameTap struct {
	name string
	ch   chan Frame
}

type systemTap struct {
	name string
	ch   chan SystemEvent
}

type MessageBus struct {
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	dropped   atomic.Uint64

	// Fan-out subscribers: every published item is sent to all taps
	inboundSubs  []*frameTap
	outboundSubs []*frameTap
	systemSubs   []*systemTap
}

func NewMessageBus() *MessageBus {
	return &MessageBus{}
}

// --- Fan-out subscriptions ---

// SubscribeInboundTap creates a named subscriber that receives copies of all
// inbound frames. The returned channel is buffered; slow consumers drop.
func (mb *MessageBus) SubscribeInboundTap(name string) <-chan Frame {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	sub := &frameTap{name: name, ch: make(chan Frame, tapBuffer)}
	if mb.closed {
		close(sub.ch)
		return sub.ch
	}
	mb.inboundSubs = append(mb.inboundSubs, sub)
	return sub.ch
}

// SubscribeOutboundTap creates a named subscriber for outbound frames.
func (mb *MessageBus) SubscribeOutboundTap(name string) <-chan Frame {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	sub := &frameTap{name: name, ch: make(chan Frame, tapBuffer)}
	if mb.closed {
		close(sub.ch)
		return sub.ch
	}
	mb.outboundSubs = append(mb.outboundSubs, sub)
	return sub.ch
}

// SubscribeSystem creates a named subscriber for system events.
func (mb *MessageBus) SubscribeSystem(name string) <-chan SystemEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	sub := &systemTap{name: name, ch: make(chan SystemEvent, tapBuffer)}
	if mb.closed {
		close(sub.ch)
		return sub.ch
	}
	mb.systemSubs = append(mb.systemSubs, sub)
	return sub.ch
}

// Unsubscribe closes and removes every tap registered under name.
func (mb *MessageBus) Unsubscribe(name string) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return
	}
	mb.inboundSubs = dropFrameTaps(mb.inboundSubs, name)
	mb.outboundSubs = dropFrameTaps(mb.outboundSubs, name)

	kept := mb.systemSubs[:0]
	for _, sub := range mb.systemSubs {
		if sub.name == name {
			close(sub.ch)
			continue
		}
		kept = append(kept, sub)
	}
	mb.systemSubs = kept
}

func dropFrameTaps(subs []*frameTap, name string) []*frameTap {
	kept := subs[:0]
	for _, sub := range subs {
		if sub.name == name {
			close(sub.ch)
			continue
		}
		kept = append(kept, sub)
	}
	return kept
}

// PublishSystem publishes a system event to all system subscribers.
func (mb *MessageBus) PublishSystem(event SystemEvent) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return
	}
	for _, sub := range mb.systemSubs {
		select {
		case sub.ch <- event:
		default: // drop if slow
			mb.dropped.Add(1)
		}
	}
}

// PublishInbound copies a received frame to the inbound taps.
func (mb *MessageBus) PublishInbound(data []byte) {
	mb.publishFrame(Inbound, data)
}

// PublishOutbound copies a sent frame to the outbound taps.
func (mb *MessageBus) PublishOutbound(data []byte) {
	mb.publishFrame(Outbound, data)
}

func (mb *MessageBus) publishFrame(dir Direction, data []byte) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return
	}

	subs := mb.inboundSubs
	if dir == Outbound {
		subs = mb.outboundSubs
	}
	if len(subs) == 0 {
		return
	}

	frame := Frame{Direction: dir, Data: append([]byte(nil), data...), At: time.Now()}
	for _, sub := range subs {
		select {
		case sub.ch <- frame:
		default: // drop if subscriber is slow
			mb.dropped.Add(1)
		}
	}
}

// Dropped returns how many deliveries were discarded because a tap was full.
func (mb *MessageBus) Dropped() uint64 {
	return mb.dropped.Load()
}

func (mb *MessageBus) Close() {
	mb.closeOnce.Do(func() {
		mb.mu.Lock()
		defer mb.mu.Unlock()
		mb.closed = true
		// Close subscriber channels
		for _, sub := range mb.inboundSubs {
			close(sub.ch)
		}
		for _, sub := range mb.outboundSubs {
			close(sub.ch)
		}
		for _, sub := range mb.systemSubs {
			close(sub.ch)
		}
		mb.inboundSubs = nil
		mb.outboundSubs = nil
		mb.systemSubs = nil
	})
}
