package bus

import (
	"testing"
)

func TestSystemFanOut(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	a := mb.SubscribeSystem("a")
	b := mb.SubscribeSystem("b")

	mb.PublishSystem(SystemEvent{Type: ProtocolDecodeError, Source: "client"})

	for name, ch := range map[string]<-chan SystemEvent{"a": a, "b": b} {
		select {
		case ev := <-ch:
			if ev.Type != ProtocolDecodeError {
				t.Errorf("%s got %q", name, ev.Type)
			}
		default:
			t.Errorf("%s received nothing", name)
		}
	}
}

func TestFrameTapsAreDirectional(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	in := mb.SubscribeInboundTap("trace")
	out := mb.SubscribeOutboundTap("trace")

	payload := []byte(`{"post_type":"meta_event"}`)
	mb.PublishInbound(payload)
	payload[0] = 'X'

	select {
	case f := <-in:
		if f.Direction != Inbound || string(f.Data) != `{"post_type":"meta_event"}` {
			t.Errorf("inbound frame = %+v", f)
		}
		if f.At.IsZero() {
			t.Error("frame timestamp not set")
		}
	default:
		t.Fatal("inbound tap received nothing")
	}

	select {
	case f := <-out:
		t.Errorf("outbound tap received %+v", f)
	default:
	}

	mb.PublishOutbound([]byte(`{"action":"get_status"}`))
	if f := <-out; f.Direction != Outbound {
		t.Errorf("outbound frame direction = %s", f.Direction)
	}
}

func TestSlowSubscriberDrops(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	ch := mb.SubscribeSystem("slow")
	for i := 0; i < tapBuffer+10; i++ {
		mb.PublishSystem(SystemEvent{Type: HandlerFailed})
	}

	if got := len(ch); got != tapBuffer {
		t.Errorf("buffered = %d, want %d", got, tapBuffer)
	}
	if mb.Dropped() != 10 {
		t.Errorf("Dropped() = %d, want 10", mb.Dropped())
	}
}

func TestUnsubscribe(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	sys := mb.SubscribeSystem("cli")
	in := mb.SubscribeInboundTap("cli")
	keep := mb.SubscribeSystem("other")

	mb.Unsubscribe("cli")

	if _, ok := <-sys; ok {
		t.Error("system tap not closed")
	}
	if _, ok := <-in; ok {
		t.Error("inbound tap not closed")
	}

	mb.PublishSystem(SystemEvent{Type: ConnectionOpened})
	if ev := <-keep; ev.Type != ConnectionOpened {
		t.Errorf("remaining tap got %q", ev.Type)
	}
}

func TestCloseClosesTaps(t *testing.T) {
	mb := NewMessageBus()
	sys := mb.SubscribeSystem("a")
	in := mb.SubscribeInboundTap("a")

	mb.Close()
	mb.Close()

	if _, ok := <-sys; ok {
		t.Error("system tap still open")
	}
	if _, ok := <-in; ok {
		t.Error("inbound tap still open")
	}

	// Publishing and subscribing after close must not panic.
	mb.PublishSystem(SystemEvent{Type: ConnectionClosed})
	mb.PublishInbound([]byte("{}"))
	if _, ok := <-mb.SubscribeSystem("late"); ok {
		t.Error("tap created after close should be closed")
	}
}
