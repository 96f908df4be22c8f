package internal

import (
	"sync"
)

// This file defines the publish-subscribe model we use for various status/event types in the SDK.
// Each Broadcaster instance is typed for a particular kind of notification value, and manages any
// number of subscription channels. Subscribers can come and go at any time; broadcasting to zero
// subscribers is valid and cheap, and components use HasListeners() to skip expensive computations
// that are only needed if someone is listening.

// Arbitrary buffer size to make it less likely that we'll block when broadcasting to channels.
// Subscribers are expected to consume values promptly; if a subscriber's buffer fills up, the
// broadcasting goroutine will block until it drains.
const subscriberChannelBufferLength = 10

// Broadcaster is our generalized implementation of the publish-subscribe pattern for SDK status
// and change notifications.
type Broadcaster[V any] struct {
	subscribers []channelPair[V]
	lock        sync.Mutex
}

// We need to keep track of both directions of each subscriber channel: the send side for
// broadcasting, and the receive side because that is what the subscriber gives back to us to
// identify itself in RemoveListener.
type channelPair[V any] struct {
	sendCh    chan<- V
	receiveCh <-chan V
}

// NewBroadcaster creates an instance of Broadcaster.
func NewBroadcaster[V any]() *Broadcaster[V] {
	return &Broadcaster[V]{}
}

// AddListener adds a subscriber and returns a channel for it to receive values.
func (b *Broadcaster[V]) AddListener() <-chan V {
	ch := make(chan V, subscriberChannelBufferLength)
	cp := channelPair[V]{sendCh: ch, receiveCh: ch}
	b.lock.Lock()
	defer b.lock.Unlock()
	b.subscribers = append(b.subscribers, cp)
	return ch
}

// RemoveListener removes a subscriber and closes its channel. The parameter is the same channel
// that was returned by AddListener; if it is not a current subscriber, the method has no effect.
func (b *Broadcaster[V]) RemoveListener(ch <-chan V) {
	b.lock.Lock()
	defer b.lock.Unlock()
	ss := b.subscribers
	for i, s := range ss {
		if s.receiveCh == ch {
			copy(ss[i:], ss[i+1:])
			ss[len(ss)-1] = channelPair[V]{}
			b.subscribers = ss[:len(ss)-1]
			close(s.sendCh)
			break
		}
	}
}

// HasListeners returns true if there are any current subscribers.
func (b *Broadcaster[V]) HasListeners() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.subscribers) > 0
}

// Broadcast broadcasts a value to all current subscribers.
func (b *Broadcaster[V]) Broadcast(value V) {
	b.lock.Lock()
	ss := make([]channelPair[V], len(b.subscribers))
	copy(ss, b.subscribers)
	b.lock.Unlock()
	for _, s := range ss {
		s.sendCh <- value
	}
}

// Close closes all current subscriber channels.
func (b *Broadcaster[V]) Close() {
	b.lock.Lock()
	defer b.lock.Unlock()
	for _, s := range b.subscribers {
		close(s.sendCh)
	}
	b.subscribers = nil
}
