package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStartedBus(t *testing.T) *EventBus {
	t.Helper()
	bus := NewEventBus()
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(bus.Stop)
	return bus
}

func TestEventBusBasicPublishSubscribe(t *testing.T) {
	bus := newStartedBus(t)
	ch := make(chan Event, 1)
	bus.Subscribe(EventWakeWordDetected, ch)

	ok := bus.Publish(NewEvent(EventWakeWordDetected, Detection{DetectorID: "d1", Confidence: 0.9}))
	assert.True(t, ok)

	received := <-ch
	assert.Equal(t, EventWakeWordDetected, received.Type)
	assert.False(t, received.Timestamp.IsZero())
	det, ok := received.Payload.(Detection)
	require.True(t, ok)
	assert.Equal(t, "d1", det.DetectorID)
	assert.Equal(t, 0.9, det.Confidence)
}

func TestEventBusFiltersByType(t *testing.T) {
	bus := newStartedBus(t)
	ch := make(chan Event, 1)
	bus.Subscribe(EventWakeWordArmed, ch)

	bus.Publish(NewEvent(EventWakeWordDetected, Detection{}))
	select {
	case evt := <-ch:
		t.Fatalf("unexpected event %v", evt.Type)
	default:
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := newStartedBus(t)
	ch1 := make(chan Event, 1)
	ch2 := make(chan Event, 1)
	bus.Subscribe(EventStatusChanged, ch1)
	bus.Subscribe(EventStatusChanged, ch2)
	bus.Unsubscribe(EventStatusChanged, ch1)

	bus.Publish(NewEvent(EventStatusChanged, StatusChange{Status: StatusPaused}))

	select {
	case <-ch1:
		t.Error("should not receive event after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Len(t, ch2, 1)
}

func TestEventBusFullSubscriberDoesNotBlock(t *testing.T) {
	bus := newStartedBus(t)
	ch := make(chan Event, 1)
	bus.Subscribe(EventWakeWordDetected, ch)

	require.True(t, bus.Publish(NewEvent(EventWakeWordDetected, "first")))

	var wg sync.WaitGroup
	var second bool
	wg.Add(1)
	go func() {
		defer wg.Done()
		second = bus.Publish(NewEvent(EventWakeWordDetected, "second"))
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		assert.False(t, second, "second event should be dropped when channel is full")
	case <-time.After(100 * time.Millisecond):
		t.Error("Publish blocked when channel was full")
	}
	assert.Equal(t, "first", (<-ch).Payload)
}

func TestEventBusStartStop(t *testing.T) {
	bus := NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Start(ctx))
	require.NoError(t, bus.Start(ctx))
	assert.True(t, bus.Running())

	bus.Stop()
	bus.Stop()
	assert.False(t, bus.Running())

	require.NoError(t, bus.Start(ctx))
	cancel()
	assert.Eventually(t, func() bool { return !bus.Running() }, time.Second, 5*time.Millisecond)
}

func TestEventBusDeliversOnlyWhileRunning(t *testing.T) {
	bus := NewEventBus()
	ch := make(chan Event, 4)
	bus.Subscribe(EventWakeWordDetected, ch)

	assert.False(t, bus.Publish(NewEvent(EventWakeWordDetected, "before start")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, bus.Start(ctx))
	assert.True(t, bus.Publish(NewEvent(EventWakeWordDetected, "running")))

	bus.Stop()
	assert.False(t, bus.Publish(NewEvent(EventWakeWordDetected, "after stop")))

	require.NoError(t, bus.Start(ctx))
	cancel()
	require.Eventually(t, func() bool { return !bus.Running() }, time.Second, 5*time.Millisecond)
	assert.False(t, bus.Publish(NewEvent(EventWakeWordDetected, "after cancel")))

	require.Len(t, ch, 1)
	assert.Equal(t, "running", (<-ch).Payload)
}

func TestCycleError(t *testing.T) {
	boom := errors.New("boom")
	err := CycleError{DetectorID: "d", Err: boom}
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "boom", err.Error())
	assert.Equal(t, "unknown error", CycleError{}.Error())
}

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "DETECTED", EventWakeWordDetected.String())
	assert.Equal(t, "PRE_TRIGGER", EventWakeWordArmed.String())
	assert.Equal(t, "UNKNOWN", EventType(99).String())
}
