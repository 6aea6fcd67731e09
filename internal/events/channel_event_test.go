package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(100 * time.Millisecond):
		require.FailNow(t, "timeout waiting for event")
	}
	var zero T
	return zero
}

func assertNothing[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Errorf("unexpected value received: %v", v)
	default:
	}
}

func TestChannelEvent_NotifyReachesEveryListener(t *testing.T) {
	event := NewChannelEvent[int](false)

	ch1 := make(chan int, 4)
	ch2 := make(chan int, 4)
	off1 := event.Listen(ch1)
	off2 := event.Listen(ch2)
	assert.Equal(t, 2, event.ListenerCount())

	assert.Equal(t, 2, event.Notify(42))
	assert.Equal(t, 42, receive(t, ch1))
	assert.Equal(t, 42, receive(t, ch2))

	off1()
	assert.Equal(t, 1, event.Notify(7))
	assertNothing(t, ch1)
	assert.Equal(t, 7, receive(t, ch2))

	off2()
	off2()
	assert.Equal(t, 0, event.ListenerCount())
}

func TestChannelEvent_ReplayLatest(t *testing.T) {
	event := NewChannelEvent[string](true)

	early := make(chan string, 4)
	defer event.Listen(early)()
	assertNothing(t, early)

	event.Notify("previewingExercise")
	assert.Equal(t, "previewingExercise", receive(t, early))

	late := make(chan string, 4)
	defer event.Listen(late)()
	assert.Equal(t, "previewingExercise", receive(t, late))

	latest, ok := event.Latest()
	assert.True(t, ok)
	assert.Equal(t, "previewingExercise", latest)
}

func TestChannelEvent_NoReplayWhenDisabled(t *testing.T) {
	event := NewChannelEvent[string](false)
	event.Notify("countdown")

	ch := make(chan string, 4)
	defer event.Listen(ch)()
	assertNothing(t, ch)

	_, ok := event.Latest()
	assert.True(t, ok)
}

func TestChannelEvent_FullListenerDoesNotBlock(t *testing.T) {
	event := NewChannelEvent[int](false)

	full := make(chan int)
	roomy := make(chan int, 1)
	defer event.Listen(full)()
	defer event.Listen(roomy)()

	done := make(chan int)
	go func() { done <- event.Notify(1) }()

	select {
	case delivered := <-done:
		assert.Equal(t, 1, delivered)
	case <-time.After(time.Second):
		require.FailNow(t, "Notify blocked on a full listener")
	}
	assert.Equal(t, uint64(1), event.Dropped())
	assert.Equal(t, 1, receive(t, roomy))
}

func TestChannelEvent_ListenNilPanics(t *testing.T) {
	event := NewChannelEvent[int](false)
	assert.Panics(t, func() { event.Listen(nil) })
}

func TestOffer(t *testing.T) {
	ch := make(chan int, 1)
	assert.True(t, Offer(ch, 1))
	assert.False(t, Offer(ch, 2))
	assert.Equal(t, 1, <-ch)
}
