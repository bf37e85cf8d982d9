package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()

	select {
	case e := <-sub.C:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestEventBus_SubscribePublish(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe(8)
	defer bus.Unsubscribe(sub)

	bus.Publish(Event{Kind: EventStreamStart, SessionID: "s1", Model: "gpt-4o"})

	got := receive(t, sub)
	assert.Equal(t, EventStreamStart, got.Kind)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "gpt-4o", got.Model)
	assert.False(t, got.Timestamp.IsZero())
}

func TestEventBus_FanOut(t *testing.T) {
	bus := NewEventBus()
	sub1 := bus.Subscribe(4)
	sub2 := bus.Subscribe(4)
	defer bus.Unsubscribe(sub1)
	defer bus.Unsubscribe(sub2)

	bus.Publish(Event{Kind: EventTurnAdded})

	assert.Equal(t, EventTurnAdded, receive(t, sub1).Kind)
	assert.Equal(t, EventTurnAdded, receive(t, sub2).Kind)
}

func TestEventBus_KindFilter(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe(4, EventError, EventStreamEnd)
	defer bus.Unsubscribe(sub)

	bus.Publish(Event{Kind: EventStreamStart})
	bus.Publish(Event{Kind: EventStreamEnd, Data: StreamStats{Chunks: 2}})

	got := receive(t, sub)
	require.Equal(t, EventStreamEnd, got.Kind)
	assert.Equal(t, StreamStats{Chunks: 2}, got.Data)

	select {
	case e := <-sub.C:
		t.Fatalf("unexpected event %s", e.Kind)
	default:
	}
}

func TestEventBus_NonBlockingDrop(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe(1)
	defer bus.Unsubscribe(sub)

	bus.Publish(Event{Kind: EventStreamStart})
	bus.Publish(Event{Kind: EventStreamEnd})

	assert.Equal(t, EventStreamStart, receive(t, sub).Kind)

	select {
	case <-sub.C:
		t.Fatal("expected channel to be empty after drop")
	default:
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe(4)

	bus.Unsubscribe(sub)

	_, ok := <-sub.C
	assert.False(t, ok, "channel should be closed after unsubscribe")

	bus.Unsubscribe(sub)
	bus.Publish(Event{Kind: EventError})
}
