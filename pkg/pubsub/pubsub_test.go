package pubsub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dd0wney/cluso-bowtie/pkg/metrics"
	dto "github.com/prometheus/client_model/go"
)

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Channel():
		if !ok {
			t.Fatal("channel closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
	return Event{}
}

func TestBasicPubSub(t *testing.T) {
	ps := NewPubSub(nil)
	defer ps.Shutdown()

	sub, err := ps.Subscribe(context.Background(), "d1")
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	ps.Publish("d1", Event{Kind: EventView, Payload: "view-1"})
	ps.Publish("d1", Event{Kind: EventView, Payload: "view-2"})

	first := receive(t, sub)
	if first.Payload != "view-1" || first.Seq != 1 || first.DiagramID != "d1" {
		t.Errorf("unexpected first event %+v", first)
	}
	if first.Time.IsZero() {
		t.Error("event not timestamped")
	}
	if second := receive(t, sub); second.Seq != 2 {
		t.Errorf("expected seq 2, got %d", second.Seq)
	}
}

func TestTopicIsolation(t *testing.T) {
	ps := NewPubSub(nil)
	defer ps.Shutdown()

	a, _ := ps.Subscribe(context.Background(), "a")
	b, _ := ps.Subscribe(context.Background(), "b")

	ps.Publish("a", Event{Kind: EventView})

	receive(t, a)
	select {
	case ev := <-b.Channel():
		t.Errorf("topic b received %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	// Sequence numbers are per topic
	ps.Publish("b", Event{Kind: EventView})
	if ev := receive(t, b); ev.Seq != 1 {
		t.Errorf("expected seq 1 on b, got %d", ev.Seq)
	}
}

func TestSlowSubscriberKeepsNewest(t *testing.T) {
	reg := metrics.NewRegistry()
	ps := NewPubSub(reg)
	defer ps.Shutdown()

	sub, _ := ps.Subscribe(context.Background(), "d1")
	for i := 0; i < DefaultBuffer+5; i++ {
		ps.Publish("d1", Event{Kind: EventView, Payload: i})
	}

	var last Event
	for i := 0; i < DefaultBuffer; i++ {
		last = receive(t, sub)
		if i == 0 && last.Seq != 6 {
			t.Errorf("oldest kept event has seq %d, want 6", last.Seq)
		}
	}
	if last.Payload != DefaultBuffer+4 {
		t.Errorf("newest event lost, last payload %v", last.Payload)
	}

	var m dto.Metric
	if err := reg.EventsDroppedTotal.Write(&m); err != nil {
		t.Fatal(err)
	}
	if got := m.Counter.GetValue(); got != 5 {
		t.Errorf("dropped = %v, want 5", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	ps := NewPubSub(nil)
	defer ps.Shutdown()

	sub, _ := ps.Subscribe(context.Background(), "d1")
	if ps.GetSubscriberCount("d1") != 1 {
		t.Fatalf("expected 1 subscriber")
	}

	sub.Unsubscribe()
	sub.Unsubscribe()

	if ps.GetSubscriberCount("d1") != 0 {
		t.Errorf("expected 0 subscribers after unsubscribe")
	}
	if _, ok := <-sub.Channel(); ok {
		t.Error("channel should be closed")
	}
	// Publishing to a topic with no subscribers is a no-op
	ps.Publish("d1", Event{Kind: EventView})
}

func TestContextCancellation(t *testing.T) {
	ps := NewPubSub(nil)
	defer ps.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	sub, _ := ps.Subscribe(ctx, "d1")
	cancel()

	select {
	case _, ok := <-sub.Channel():
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after cancel")
	}

	deadline := time.Now().Add(time.Second)
	for ps.GetSubscriberCount("d1") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber not removed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConcurrentPublish(t *testing.T) {
	ps := NewPubSub(nil)
	defer ps.Shutdown()

	sub, _ := ps.Subscribe(context.Background(), "d1")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				ps.Publish("d1", Event{Kind: EventView})
			}
		}()
	}
	wg.Wait()

	// Only the newest DefaultBuffer events remain, in order
	var prev uint64
	for i := 0; i < DefaultBuffer; i++ {
		ev := receive(t, sub)
		if ev.Seq <= prev {
			t.Fatalf("out of order: %d after %d", ev.Seq, prev)
		}
		prev = ev.Seq
	}
	if prev != 500 {
		t.Errorf("last seq = %d, want 500", prev)
	}
}

func TestShutdown(t *testing.T) {
	reg := metrics.NewRegistry()
	ps := NewPubSub(reg)

	subs := make([]*Subscription, 3)
	for i := range subs {
		subs[i], _ = ps.Subscribe(context.Background(), "d1")
	}

	if ps.IsShutdown() {
		t.Fatal("IsShutdown() before Shutdown()")
	}
	ps.Shutdown()
	ps.Shutdown()
	if !ps.IsShutdown() {
		t.Error("IsShutdown() = false after Shutdown()")
	}

	for i, sub := range subs {
		if _, ok := <-sub.Channel(); ok {
			t.Errorf("subscription %d still open", i)
		}
	}
	if _, err := ps.Subscribe(context.Background(), "d1"); !errors.Is(err, ErrShutdown) {
		t.Errorf("Subscribe after shutdown = %v, want ErrShutdown", err)
	}

	var m dto.Metric
	if err := reg.EventSubscribers.Write(&m); err != nil {
		t.Fatal(err)
	}
	if got := m.Gauge.GetValue(); got != 0 {
		t.Errorf("subscribers gauge = %v, want 0", got)
	}
	ps.Publish("d1", Event{Kind: EventView})
}
