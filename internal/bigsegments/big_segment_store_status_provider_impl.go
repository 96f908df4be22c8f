package bigsegments

import (
	"github.com/launchdarkly/go-server-sdk-core/interfaces"
	"github.com/launchdarkly/go-server-sdk-core/internal"
)

// bigSegmentStoreStatusProviderImpl is the internal implementation of
// BigSegmentStoreStatusProvider. The real status-tracking logic lives in
// BigSegmentStoreManager, if Big Segments are configured; this type only exposes it.
type bigSegmentStoreStatusProviderImpl struct {
	getStatusFn func() interfaces.BigSegmentStoreStatus
	broadcaster *internal.Broadcaster[interfaces.BigSegmentStoreStatus]
}

// NewBigSegmentStoreStatusProviderImpl creates the internal implementation of
// BigSegmentStoreStatusProvider. The getStatusFn parameter is the manager's GetStatus
// method, or nil if Big Segments are not configured at all, in which case the status is
// always reported as unavailable. The broadcaster must always be non-nil.
func NewBigSegmentStoreStatusProviderImpl(
	getStatusFn func() interfaces.BigSegmentStoreStatus,
	broadcaster *internal.Broadcaster[interfaces.BigSegmentStoreStatus],
) interfaces.BigSegmentStoreStatusProvider {
	return &bigSegmentStoreStatusProviderImpl{
		getStatusFn: getStatusFn,
		broadcaster: broadcaster,
	}
}

func (b *bigSegmentStoreStatusProviderImpl) GetStatus() interfaces.BigSegmentStoreStatus {
	if b.getStatusFn == nil {
		return interfaces.BigSegmentStoreStatus{Available: false}
	}
	return b.getStatusFn()
}

func (b *bigSegmentStoreStatusProviderImpl) AddStatusListener() <-chan interfaces.BigSegmentStoreStatus {
	return b.broadcaster.AddListener()
}

func (b *bigSegmentStoreStatusProviderImpl) RemoveStatusListener(
	ch <-chan interfaces.BigSegmentStoreStatus,
) {
	b.broadcaster.RemoveListener(ch)
}
