package eventbus

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/sipeed/onebot-go/pkg/events"
)

func quiet() []Option {
	return []Option{
		WithPanicHandler(func(string, any, []byte) {}),
		WithErrorHandler(func(string, error) {}),
	}
}

func recallEvent() events.Event {
	return events.NewEvent("", events.Record{
		"post_type":   "notice",
		"notice_type": "group_recall",
	}, nil)
}

func TestDispatchOrderAndEventName(t *testing.T) {
	r := New(quiet()...)

	var got []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		r.Subscribe("notice.group.recall", func(ev events.Event) error {
			got = append(got, name+":"+ev.Record.String(events.FieldEventName))
			return nil
		})
	}

	res := r.Dispatch("notice.group.recall", recallEvent())

	want := []string{
		"first:notice.group.recall",
		"second:notice.group.recall",
		"third:notice.group.recall",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	if res.Delivered != 3 || res.Failed() != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestDispatchUnknownTopic(t *testing.T) {
	r := New(quiet()...)
	res := r.Dispatch("nobody.listens", recallEvent())
	if res.Delivered != 0 || res.Err() != nil {
		t.Errorf("result = %+v", res)
	}
}

func TestArbitraryStringTopics(t *testing.T) {
	r := New(quiet()...)

	called := false
	r.Subscribe("9b2f6c1e-echo-token", func(ev events.Event) error {
		called = true
		if ev.Name != "9b2f6c1e-echo-token" {
			t.Errorf("Name = %q", ev.Name)
		}
		return nil
	})
	r.Dispatch("9b2f6c1e-echo-token", recallEvent())
	if !called {
		t.Error("handler on an arbitrary topic was not called")
	}
}

func TestSubscribeOnceFiresOnce(t *testing.T) {
	r := New(quiet()...)

	count := 0
	r.SubscribeOnce("notice", func(events.Event) error {
		count++
		return nil
	})
	if n := r.ListenerCount("notice"); n != 1 {
		t.Fatalf("ListenerCount = %d, want 1", n)
	}

	r.Dispatch("notice", recallEvent())
	r.Dispatch("notice", recallEvent())

	if count != 1 {
		t.Errorf("once handler fired %d times, want 1", count)
	}
	if n := r.ListenerCount("notice"); n != 0 {
		t.Errorf("ListenerCount after fire = %d, want 0", n)
	}
}

func TestSubscribeOnceRemovedBeforeNextHandler(t *testing.T) {
	r := New(quiet()...)

	r.SubscribeOnce("notice", func(events.Event) error { return nil })

	seen := -1
	r.Subscribe("notice", func(events.Event) error {
		seen = r.ListenerCount("notice")
		return nil
	})

	r.Dispatch("notice", recallEvent())
	if seen != 1 {
		t.Errorf("second handler saw %d listeners, want 1", seen)
	}
}

func TestSubscribeOnceReentrantDispatch(t *testing.T) {
	r := New(quiet()...)

	count := 0
	r.SubscribeOnce("notice", func(ev events.Event) error {
		count++
		r.Dispatch("notice", ev)
		return nil
	})

	r.Dispatch("notice", recallEvent())
	if count != 1 {
		t.Errorf("once handler fired %d times under re-entrant dispatch", count)
	}
}

func TestHandlerFailureIsolated(t *testing.T) {
	var panics, failures int
	r := New(
		WithPanicHandler(func(string, any, []byte) { panics++ }),
		WithErrorHandler(func(string, error) { failures++ }),
	)

	boom := errors.New("boom")
	var reached bool
	r.Subscribe("notice", func(events.Event) error { return boom })
	r.Subscribe("notice", func(events.Event) error { panic("kaboom") })
	r.Subscribe("notice", func(events.Event) error {
		reached = true
		return nil
	})

	res := r.Dispatch("notice", recallEvent())

	if !reached {
		t.Fatal("handler after failing siblings did not run")
	}
	if res.Delivered != 3 || res.Failed() != 2 || res.Panicked() != 1 {
		t.Errorf("result = delivered %d failed %d panicked %d", res.Delivered, res.Failed(), res.Panicked())
	}
	if !errors.Is(res.Err(), boom) {
		t.Errorf("Err() = %v, want to wrap boom", res.Err())
	}
	var pe *PanicError
	if !errors.As(res.Err(), &pe) || pe.Value != "kaboom" || len(pe.Stack) == 0 {
		t.Errorf("panic not captured: %+v", pe)
	}
	if panics != 1 || failures != 1 {
		t.Errorf("hooks: panics=%d failures=%d", panics, failures)
	}
}

func TestPanicHandlerPanicIsContained(t *testing.T) {
	r := New(WithPanicHandler(func(string, any, []byte) { panic("hook") }))
	r.Subscribe("notice", func(events.Event) error { panic("handler") })

	res := r.Dispatch("notice", recallEvent())
	if res.Panicked() != 1 {
		t.Errorf("Panicked() = %d", res.Panicked())
	}
}

func TestHandlersGetIndependentCopies(t *testing.T) {
	r := New(quiet()...)

	r.Subscribe("notice", func(ev events.Event) error {
		ev.Record["scribble"] = true
		return nil
	})
	r.Subscribe("notice", func(ev events.Event) error {
		if _, ok := ev.Record["scribble"]; ok {
			t.Error("mutation from a sibling handler is visible")
		}
		return nil
	})
	r.Dispatch("notice", recallEvent())
}

func TestUnsubscribe(t *testing.T) {
	r := New(quiet()...)

	calls := map[string]int{}
	a := r.Subscribe("t", func(events.Event) error {
		calls["a"]++
		return nil
	})
	r.Subscribe("t", func(events.Event) error {
		calls["b"]++
		return nil
	})

	if !r.Unsubscribe("t", a) {
		t.Fatal("Unsubscribe returned false for a live subscription")
	}
	if r.Unsubscribe("t", a) {
		t.Error("second Unsubscribe should report false")
	}
	if r.Unsubscribe("other", a) {
		t.Error("Unsubscribe on the wrong topic should report false")
	}

	r.Dispatch("t", recallEvent())
	if calls["a"] != 0 || calls["b"] != 1 {
		t.Errorf("calls = %v", calls)
	}
	if len(r.Listeners("t")) != 1 {
		t.Errorf("Listeners len = %d", len(r.Listeners("t")))
	}
}

func TestUnsubscribeAll(t *testing.T) {
	r := New(quiet()...)
	noop := func(events.Event) error { return nil }

	r.Subscribe("a", noop)
	r.Subscribe("a", noop)
	r.Subscribe("b", noop)
	r.SubscribeOnce("c", noop)

	r.UnsubscribeAll("a")
	if got := r.Topics(); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("Topics() = %v", got)
	}
	if r.HandlerCount() != 2 {
		t.Errorf("HandlerCount() = %d", r.HandlerCount())
	}

	r.UnsubscribeAll()
	if r.HandlerCount() != 0 || len(r.Topics()) != 0 {
		t.Errorf("registry not empty: %v", r.Topics())
	}
}

func TestSubscribeDuringDispatch(t *testing.T) {
	r := New(quiet()...)

	late := 0
	r.Subscribe("t", func(events.Event) error {
		r.Subscribe("t", func(events.Event) error {
			late++
			return nil
		})
		return nil
	})

	r.Dispatch("t", recallEvent())
	if late != 0 {
		t.Error("handler added during dispatch ran in the same dispatch")
	}
	r.Dispatch("t", recallEvent())
	if late != 1 {
		t.Errorf("late handler calls = %d, want 1", late)
	}
}

func TestConcurrentOnceClaim(t *testing.T) {
	r := New(quiet()...)

	var mu sync.Mutex
	count := 0
	r.SubscribeOnce("t", func(events.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Dispatch("t", recallEvent())
		}()
	}
	wg.Wait()

	if count != 1 {
		t.Errorf("once handler fired %d times across goroutines", count)
	}
}
