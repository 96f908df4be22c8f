package ldstoreimpl

import (
	"time"

	"github.com/launchdarkly/go-server-sdk-core/evaluation"
	"github.com/launchdarkly/go-server-sdk-core/interfaces"
	"github.com/launchdarkly/go-server-sdk-core/internal/bigsegments"
	"github.com/launchdarkly/go-server-sdk-core/subsystems"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldreason"
)

// BigSegmentStoreWrapper is a component that adds status polling and caching to a Big Segment
// store, and provides integration with the evaluation engine.
//
// The SDK creates this component automatically if Big Segments are configured. It is also
// exported here for use by the Relay Proxy, which does its own component wiring but needs the
// same caching and status behavior; that is why this type is in a public package while the
// implementation is in an internal one.
type BigSegmentStoreWrapper struct {
	manager *bigsegments.BigSegmentStoreManager
}

// BigSegmentsConfigurationProperties contains the configuration parameters for
// NewBigSegmentStoreWrapperWithConfig. Zero values are replaced with the standard defaults.
type BigSegmentsConfigurationProperties struct {
	// Store is the Big Segment store instance that is being wrapped.
	Store subsystems.BigSegmentStore

	// StatusPollInterval is how often the wrapper queries the store's metadata to determine
	// whether it is available and whether its data is stale.
	StatusPollInterval time.Duration

	// StaleAfter is the maximum age of the store's last-updated timestamp before the store data
	// is considered stale.
	StaleAfter time.Duration

	// UserCacheSize is the maximum number of contexts whose Big Segment membership state is
	// cached at any one time.
	UserCacheSize int

	// UserCacheTime is the maximum age of a cached membership state.
	UserCacheTime time.Duration

	// StartPolling is true if the wrapper should begin polling the store status immediately.
	// If it is false, polling does not begin until SetPollingActive is called with a true value.
	// The Relay Proxy sets this to false so that polling only starts once it has seen a Big
	// Segment that could be queried.
	StartPolling bool
}

// NewBigSegmentStoreWrapperWithConfig creates a BigSegmentStoreWrapper.
//
// The statusUpdateFn parameter is an optional callback that is invoked whenever the status of
// the store changes; it may be nil. The wrapper takes ownership of the store, and closes it
// when the wrapper is closed.
func NewBigSegmentStoreWrapperWithConfig(
	config BigSegmentsConfigurationProperties,
	statusUpdateFn func(interfaces.BigSegmentStoreStatus),
	loggers ldlog.Loggers,
) *BigSegmentStoreWrapper {
	return &BigSegmentStoreWrapper{
		manager: bigsegments.NewBigSegmentStoreManager(bigsegments.StoreManagerConfig{
			Store:              config.Store,
			StatusPollInterval: config.StatusPollInterval,
			StaleAfter:         config.StaleAfter,
			UserCacheSize:      config.UserCacheSize,
			UserCacheTime:      config.UserCacheTime,
			StartPolling:       config.StartPolling,
			StatusUpdateFn:     statusUpdateFn,
		}, loggers),
	}
}

// Close shuts down the wrapper, the status polling task, and the underlying store.
func (w *BigSegmentStoreWrapper) Close() {
	w.manager.Close()
}

// GetMembership is called by the evaluator when it needs the Big Segment membership state for
// an evaluation context. It implements the evaluation.BigSegmentProvider interface, so the
// wrapper can be passed directly to evaluation.EvaluatorOptionBigSegmentProvider.
func (w *BigSegmentStoreWrapper) GetMembership(contextKey string) (
	evaluation.BigSegmentMembership, ldreason.BigSegmentsStatus) {
	return w.manager.GetMembership(contextKey)
}

// GetStatus returns the store status recorded by the most recent status poll. If no poll has
// happened yet, it queries the store's metadata synchronously.
func (w *BigSegmentStoreWrapper) GetStatus() interfaces.BigSegmentStoreStatus {
	return w.manager.GetStatus()
}

// ClearCache invalidates all cached membership states, so subsequent evaluations will query the
// store for the latest data.
func (w *BigSegmentStoreWrapper) ClearCache() {
	w.manager.ClearCache()
}

// SetPollingActive switches the status polling task on or off.
func (w *BigSegmentStoreWrapper) SetPollingActive(active bool) {
	w.manager.SetPollingActive(active)
}
