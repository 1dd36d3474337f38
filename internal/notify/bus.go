// Package notify broadcasts application-wide notifications such as theme and
// location changes to subscribers.
package notify

import (
	"sync"
)

type Topic string

const (
	ThemeChanged    Topic = "theme.changed"
	LocationChanged Topic = "location.changed"
	DocumentChanged Topic = "document.changed"
)

// Handler receives one notification.
type Handler func(topic Topic, payload any)

type event struct {
	topic   Topic
	payload any
}

// Bus delivers notifications synchronously, in subscription order, on the
// publishing goroutine.
type Bus struct {
	mu     sync.Mutex
	subs   map[Topic][]*Subscription
	nextID uint64
}

func NewBus() *Bus {
	return &Bus{subs: map[Topic][]*Subscription{}}
}

var defaultBus = NewBus()

// Default returns the process-wide bus.
func Default() *Bus { return defaultBus }

// Subscription is a registered handler. Close unregisters it.
type Subscription struct {
	bus     *Bus
	topic   Topic
	id      uint64
	handler Handler
	once    sync.Once
}

// Subscribe registers handler for topic.
func (b *Bus) Subscribe(topic Topic, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &Subscription{bus: b, topic: topic, id: b.nextID, handler: handler}
	b.subs[topic] = append(b.subs[topic], sub)
	return sub
}

func (s *Subscription) Topic() Topic { return s.topic }

// Close unregisters the subscription. Calling it more than once is a no-op.
func (s *Subscription) Close() {
	s.once.Do(func() {
		b := s.bus
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[s.topic]
		for i, other := range subs {
			if other == s {
				b.subs[s.topic] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(b.subs[s.topic]) == 0 {
			delete(b.subs, s.topic)
		}
	})
}

// Subscribers returns the number of live subscriptions to topic.
func (b *Bus) Subscribers(topic Topic) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}

// Publish delivers payload to every subscriber of topic.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.Lock()
	subs := append([]*Subscription(nil), b.subs[topic]...)
	b.mu.Unlock()
	deliver(subs, topic, payload)
}

func deliver(subs []*Subscription, topic Topic, payload any) {
	for _, sub := range subs {
		if sub.live() {
			sub.handler(topic, payload)
		}
	}
}

func (s *Subscription) live() bool {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, other := range b.subs[s.topic] {
		if other == s {
			return true
		}
	}
	return false
}

// Batch defers the notifications published through it while held and then
// delivers them in publish order. Notifications published on the bus by
// anyone else are delivered as usual, so a hold never stalls other
// publishers. A Batch belongs to one goroutine.
type Batch struct {
	bus     *Bus
	held    int
	pending []event
}

// NewBatch returns a batch publishing to b.
func (b *Bus) NewBatch() *Batch {
	return &Batch{bus: b}
}

// Publish delivers through the bus, or queues while the batch is held.
func (q *Batch) Publish(topic Topic, payload any) {
	if q.held > 0 {
		q.pending = append(q.pending, event{topic: topic, payload: payload})
		return
	}
	q.bus.Publish(topic, payload)
}

// Hold defers delivery until the returned release function has been called.
// Holds nest; release is idempotent.
func (q *Batch) Hold() (release func()) {
	q.held++
	released := false
	return func() {
		if released {
			return
		}
		released = true
		q.release()
	}
}

// Pending is the number of queued notifications.
func (q *Batch) Pending() int { return len(q.pending) }

func (q *Batch) release() {
	q.held--
	// A handler may take a new hold; the rest then waits for that release.
	for q.held == 0 && len(q.pending) > 0 {
		ev := q.pending[0]
		q.pending = q.pending[1:]
		q.bus.Publish(ev.topic, ev.payload)
	}
}
