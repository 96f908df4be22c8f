package bigsegments

import (
	"testing"
	"time"

	"github.com/launchdarkly/go-server-sdk-core/interfaces"
	"github.com/launchdarkly/go-server-sdk-core/internal"

	helpers "github.com/launchdarkly/go-test-helpers/v3"

	"github.com/stretchr/testify/assert"
)

func TestBigSegmentStoreStatusProviderImpl(t *testing.T) {
	t.Run("GetStatus is unavailable when Big Segments are not configured", func(t *testing.T) {
		broadcaster := internal.NewBroadcaster[interfaces.BigSegmentStoreStatus]()
		defer broadcaster.Close()
		provider := NewBigSegmentStoreStatusProviderImpl(nil, broadcaster)

		assert.Equal(t, interfaces.BigSegmentStoreStatus{Available: false}, provider.GetStatus())
	})

	t.Run("GetStatus delegates to the store manager", func(t *testing.T) {
		broadcaster := internal.NewBroadcaster[interfaces.BigSegmentStoreStatus]()
		defer broadcaster.Close()
		expected := interfaces.BigSegmentStoreStatus{Available: true, Stale: true}
		provider := NewBigSegmentStoreStatusProviderImpl(
			func() interfaces.BigSegmentStoreStatus { return expected },
			broadcaster,
		)

		assert.Equal(t, expected, provider.GetStatus())
	})

	t.Run("status listeners", func(t *testing.T) {
		broadcaster := internal.NewBroadcaster[interfaces.BigSegmentStoreStatus]()
		defer broadcaster.Close()
		provider := NewBigSegmentStoreStatusProviderImpl(nil, broadcaster)

		ch1 := provider.AddStatusListener()
		ch2 := provider.AddStatusListener()
		provider.RemoveStatusListener(ch2)

		expected := interfaces.BigSegmentStoreStatus{Available: true}
		broadcaster.Broadcast(expected)

		assert.Equal(t, expected, helpers.RequireValue(t, ch1, time.Second))

		// ch2 was unregistered, so it should have been closed without receiving anything
		_, ok := <-ch2
		assert.False(t, ok)
	})
}
