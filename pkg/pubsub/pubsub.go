// Package pubsub fans diagram events out to live subscribers such as the
// server's SSE streams. Topics are diagram ids.
package pubsub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dd0wney/cluso-bowtie/pkg/metrics"
)

// ErrShutdown is returned when subscribing to a stopped PubSub
var ErrShutdown = errors.New("pubsub is shut down")

// DefaultBuffer is how many events a subscriber may fall behind before the
// oldest is dropped
const DefaultBuffer = 16

// Event kinds
const (
	EventView    = "view"
	EventDeleted = "deleted"
)

// Event is one message on a diagram topic
type Event struct {
	DiagramID string    `json:"diagramId"`
	Kind      string    `json:"kind"`
	Seq       uint64    `json:"seq"`
	Time      time.Time `json:"time"`
	Payload   any       `json:"payload,omitempty"`
}

// PubSub provides publish/subscribe for diagram events
type PubSub struct {
	subscribers map[string]map[*Subscription]bool
	seq         map[string]uint64
	mu          sync.RWMutex
	shutdown    chan struct{}
	shutdownMu  sync.Mutex
	isShutdown  bool
	buffer      int
	metrics     *metrics.Registry
}

// Subscription is one listener on a topic
type Subscription struct {
	topic     string
	channel   chan Event
	ps        *PubSub
	cancel    context.CancelFunc
	sendMu    sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// NewPubSub creates a PubSub. reg may be nil.
func NewPubSub(reg *metrics.Registry) *PubSub {
	return &PubSub{
		subscribers: make(map[string]map[*Subscription]bool),
		seq:         make(map[string]uint64),
		shutdown:    make(chan struct{}),
		buffer:      DefaultBuffer,
		metrics:     reg,
	}
}

// Subscribe listens on topic until ctx is cancelled, Unsubscribe is called
// or the PubSub shuts down
func (ps *PubSub) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	ps.shutdownMu.Lock()
	if ps.isShutdown {
		ps.shutdownMu.Unlock()
		return nil, ErrShutdown
	}
	ps.shutdownMu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		topic:   topic,
		channel: make(chan Event, ps.buffer),
		ps:      ps,
		cancel:  cancel,
	}

	ps.mu.Lock()
	if ps.subscribers[topic] == nil {
		ps.subscribers[topic] = make(map[*Subscription]bool)
	}
	ps.subscribers[topic][sub] = true
	ps.mu.Unlock()
	ps.observeSubscribers(1)

	go func() {
		select {
		case <-subCtx.Done():
			sub.Unsubscribe()
		case <-ps.shutdown:
			cancel()
			sub.close()
		}
	}()

	return sub, nil
}

// Publish stamps ev with the topic's next sequence number and sends it to
// every subscriber without blocking. A subscriber whose buffer is full loses
// its oldest event; later views supersede earlier ones.
func (ps *PubSub) Publish(topic string, ev Event) {
	ps.shutdownMu.Lock()
	if ps.isShutdown {
		ps.shutdownMu.Unlock()
		return
	}
	ps.shutdownMu.Unlock()

	ps.mu.Lock()
	ps.seq[topic]++
	ev.Seq = ps.seq[topic]
	ev.DiagramID = topic
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	subs := make([]*Subscription, 0, len(ps.subscribers[topic]))
	for sub := range ps.subscribers[topic] {
		subs = append(subs, sub)
	}
	ps.mu.Unlock()

	for _, sub := range subs {
		if sub.send(ev) && ps.metrics != nil {
			ps.metrics.EventsDroppedTotal.Inc()
		}
	}
}

// Forget drops a topic's sequence counter, used when a diagram is deleted
func (ps *PubSub) Forget(topic string) {
	ps.mu.Lock()
	delete(ps.seq, topic)
	ps.mu.Unlock()
}

// GetSubscriberCount returns the number of subscribers for a topic
func (ps *PubSub) GetSubscriberCount(topic string) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subscribers[topic])
}

// IsShutdown reports whether Shutdown has been called
func (ps *PubSub) IsShutdown() bool {
	ps.shutdownMu.Lock()
	defer ps.shutdownMu.Unlock()
	return ps.isShutdown
}

// Shutdown closes all subscriptions
func (ps *PubSub) Shutdown() {
	ps.shutdownMu.Lock()
	if ps.isShutdown {
		ps.shutdownMu.Unlock()
		return
	}
	ps.isShutdown = true
	ps.shutdownMu.Unlock()

	close(ps.shutdown)

	ps.mu.Lock()
	n := 0
	for topic, subs := range ps.subscribers {
		for sub := range subs {
			sub.close()
			n++
		}
		delete(ps.subscribers, topic)
	}
	ps.mu.Unlock()
	ps.observeSubscribers(-n)
}

func (ps *PubSub) observeSubscribers(delta int) {
	if ps.metrics != nil {
		ps.metrics.EventSubscribers.Add(float64(delta))
	}
}

// Channel returns the subscription's event channel. It is closed when the
// subscription ends.
func (s *Subscription) Channel() <-chan Event {
	return s.channel
}

// Topic returns the subscribed topic
func (s *Subscription) Topic() string {
	return s.topic
}

// Unsubscribe removes the subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.cancel()

	s.ps.mu.Lock()
	_, present := s.ps.subscribers[s.topic][s]
	if present {
		delete(s.ps.subscribers[s.topic], s)
		if len(s.ps.subscribers[s.topic]) == 0 {
			delete(s.ps.subscribers, s.topic)
		}
	}
	s.ps.mu.Unlock()

	if present {
		s.ps.observeSubscribers(-1)
	}
	s.close()
}

// send delivers ev, evicting the oldest queued event if the buffer is full.
// It reports whether an event was dropped.
func (s *Subscription) send(ev Event) (dropped bool) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return false
	}
	for {
		select {
		case s.channel <- ev:
			return dropped
		default:
		}
		select {
		case <-s.channel:
			dropped = true
		default:
		}
	}
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() {
		s.sendMu.Lock()
		s.closed = true
		close(s.channel)
		s.sendMu.Unlock()
	})
}
