package internal

import (
	"testing"
	"time"

	helpers "github.com/launchdarkly/go-test-helpers/v3"

	"github.com/stretchr/testify/assert"
)

func TestBroadcasterWithNoListeners(t *testing.T) {
	b := NewBroadcaster[string]()
	defer b.Close()

	assert.False(t, b.HasListeners())
	b.Broadcast("hello") // should not block or panic
}

func TestBroadcasterSendsValuesToListeners(t *testing.T) {
	b := NewBroadcaster[int]()
	defer b.Close()

	ch1 := b.AddListener()
	ch2 := b.AddListener()
	assert.True(t, b.HasListeners())

	b.Broadcast(3)
	assert.Equal(t, 3, helpers.RequireValue(t, ch1, time.Second))
	assert.Equal(t, 3, helpers.RequireValue(t, ch2, time.Second))

	b.Broadcast(4)
	assert.Equal(t, 4, helpers.RequireValue(t, ch1, time.Second))
	assert.Equal(t, 4, helpers.RequireValue(t, ch2, time.Second))
}

func TestBroadcasterRemoveListener(t *testing.T) {
	b := NewBroadcaster[string]()
	defer b.Close()

	ch1 := b.AddListener()
	ch2 := b.AddListener()

	b.RemoveListener(ch1)
	assert.True(t, b.HasListeners())

	b.Broadcast("hi")
	assert.Equal(t, "hi", helpers.RequireValue(t, ch2, time.Second))

	// the removed channel is closed, so a receive yields the zero value immediately
	value, ok := <-ch1
	assert.False(t, ok)
	assert.Equal(t, "", value)

	b.RemoveListener(ch2)
	assert.False(t, b.HasListeners())
}

func TestBroadcasterRemoveListenerWithUnknownChannelHasNoEffect(t *testing.T) {
	b := NewBroadcaster[string]()
	defer b.Close()

	ch1 := b.AddListener()
	unrelated := make(chan string)
	b.RemoveListener(unrelated)
	assert.True(t, b.HasListeners())

	b.Broadcast("still here")
	assert.Equal(t, "still here", helpers.RequireValue(t, ch1, time.Second))
}

func TestBroadcasterClose(t *testing.T) {
	b := NewBroadcaster[int]()
	ch := b.AddListener()

	b.Close()

	_, ok := <-ch
	assert.False(t, ok)
	assert.False(t, b.HasListeners())
}
