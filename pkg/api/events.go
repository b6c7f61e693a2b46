// Event bridge: wires the diagnostics bus into the WebSocket hub. Every
// system event and raw frame fans out to all connected clients via bus taps.
package api

import (
	"context"

	"github.com/sipeed/onebot-go/pkg/bus"
	"github.com/sipeed/onebot-go/pkg/logger"
)

const frameExcerpt = 200

// EventBridge connects the message bus to the WebSocket hub for live updates.
type EventBridge struct {
	bus *bus.MessageBus
	hub *WSHub
}

// NewEventBridge creates a bridge that forwards bus events to WebSocket clients.
func NewEventBridge(mb *bus.MessageBus, hub *WSHub) *EventBridge {
	return &EventBridge{bus: mb, hub: hub}
}

// Run starts the forwarding loops and returns. They stop when ctx ends or
// the bus closes.
func (eb *EventBridge) Run(ctx context.Context) {
	logger.DebugC("events", "Event bridge started")

	inboundTap := eb.bus.SubscribeInboundTap("event-bridge")
	outboundTap := eb.bus.SubscribeOutboundTap("event-bridge")
	systemTap := eb.bus.SubscribeSystem("event-bridge")

	go eb.forwardFrames(ctx, inboundTap, "frame.inbound")
	go eb.forwardFrames(ctx, outboundTap, "frame.outbound")
	go eb.forwardSystem(ctx, systemTap)
}

func (eb *EventBridge) forwardFrames(ctx context.Context, tap <-chan bus.Frame, eventType string) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-tap:
			if !ok {
				return
			}
			eb.hub.Broadcast(eventType, map[string]interface{}{
				"at":    f.At,
				"frame": truncate(string(f.Data), frameExcerpt),
			})
		}
	}
}

func (eb *EventBridge) forwardSystem(ctx context.Context, tap <-chan bus.SystemEvent) {
	for {
		select {
		case <-ctx.Done():
			logger.DebugC("events", "System event bridge stopped")
			return
		case evt, ok := <-tap:
			if !ok {
				return
			}
			eb.hub.Broadcast(evt.Type, evt.Data)
		}
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
