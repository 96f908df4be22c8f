package interfaces

// DataStoreStatusProvider is an interface for querying the status of a persistent data store.
//
// An implementation of this interface is returned by the SDK client's GetDataStoreStatusProvider
// method. Application code should not implement this interface.
type DataStoreStatusProvider interface {
	// GetStatus returns the current status of the store. This is only meaningful for persistent stores,
	// or any other DataStore implementation that makes use of the reporting mechanism provided by the
	// SDK; the in-memory store will always report that it is available.
	GetStatus() DataStoreStatus

	// IsStatusMonitoringEnabled indicates whether the current data store implementation supports status
	// monitoring.
	//
	// This is normally true for all persistent data stores, and false for the in-memory store. A true
	// value means that any listeners added with AddStatusListener() can expect to be notified if there is
	// any error in storing data, and then notified again when the error condition is resolved. A false
	// value means that the status is not meaningful and listeners should not expect to be notified.
	IsStatusMonitoringEnabled() bool

	// AddStatusListener subscribes for notifications of status changes. The returned channel will receive a
	// new DataStoreStatus value for any change in status.
	//
	// Applications may wish to know if there is an outage in the data store, since that could affect the
	// behavior of the application. For instance, if flag data cannot be stored and the application uses a
	// persistent store as its source of truth, flag evaluations may use stale values.
	//
	// If the data store implementation does not support status tracking (see IsStatusMonitoringEnabled),
	// the returned channel will never receive any values.
	AddStatusListener() <-chan DataStoreStatus

	// RemoveStatusListener unsubscribes from notifications of status changes. The specified channel must be
	// one that was previously returned by AddStatusListener; otherwise, the method has no effect.
	RemoveStatusListener(listener <-chan DataStoreStatus)
}

// DataStoreStatus contains information about the status of a data store, provided by
// DataStoreStatusProvider.
type DataStoreStatus struct {
	// Available is true if the SDK believes the data store is now available.
	//
	// This property is normally true. If the SDK receives an exception while trying to query or update
	// the data store, then it sets this property to false (notifying listeners, if any) and polls the
	// store at intervals until a query succeeds. Once it succeeds, it sets the property back to true
	// (again notifying listeners).
	Available bool

	// NeedsRefresh is true if the store may be out of date due to a previous outage, so the SDK should
	// attempt to refresh all feature flag data and rewrite it to the store.
	//
	// This property is not meaningful to application code.
	NeedsRefresh bool
}
