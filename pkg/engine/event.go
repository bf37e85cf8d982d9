package engine

import (
	"slices"
	"sync"
	"time"
)

// EventKind identifies the type of engine event.
type EventKind string

const (
	EventTurnAdded    EventKind = "turn_added"
	EventStreamStart  EventKind = "stream_start"
	EventStreamEnd    EventKind = "stream_end"
	EventModelChanged EventKind = "model_changed"
	EventReset        EventKind = "reset"
	EventError        EventKind = "error"
)

// Event is an immutable notification of session activity.
type Event struct {
	Kind      EventKind
	SessionID string
	Model     string
	Timestamp time.Time
	Data      any
}

// StreamStats is the Data of an EventStreamEnd event.
type StreamStats struct {
	Chunks   int
	Duration time.Duration
	Aborted  bool // The consumer stopped before the provider finished.
}

// Subscription receives events from an EventBus.
type Subscription struct {
	C     <-chan Event
	ch    chan Event
	kinds []EventKind
}

func (s *Subscription) wants(k EventKind) bool {
	return len(s.kinds) == 0 || slices.Contains(s.kinds, k)
}

// EventBus fans out events to all active subscribers. It is safe for
// concurrent use.
type EventBus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewEventBus creates an EventBus ready for use.
func NewEventBus() *EventBus {
	return &EventBus{
		subs: make(map[*Subscription]struct{}),
	}
}

// Subscribe creates a subscription with the given channel buffer size that
// receives events of the listed kinds, or every event when none are listed.
// The caller should read from sub.C and eventually call Unsubscribe.
func (b *EventBus) Subscribe(bufSize int, kinds ...EventKind) *Subscription {
	ch := make(chan Event, bufSize)
	sub := &Subscription{C: ch, ch: ch, kinds: kinds}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Unsubscribe removes the subscription and closes its channel.
func (b *EventBus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Publish sends an event to all interested subscribers. If a subscriber's
// buffer is full the event is dropped for that subscriber.
func (b *EventBus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if !sub.wants(e.Kind) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
		}
	}
}
