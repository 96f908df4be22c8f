package subsystems

import (
	"io"

	"github.com/launchdarkly/go-server-sdk-core/interfaces"
	"github.com/launchdarkly/go-server-sdk-core/subsystems/ldstoretypes"
)

// DataSource describes the interface for an object that receives feature flag data.
type DataSource interface {
	io.Closer

	// IsInitialized returns true if the data source has successfully initialized at some point.
	//
	// Once this is true, it should remain true even if a problem occurs later.
	IsInitialized() bool

	// Start tells the data source to begin initializing. It should not try to make any connections
	// or do any other significant activity until Start is called.
	//
	// The data source should close the closeWhenReady channel if and when it has either successfully
	// initialized for the first time, or determined that initialization cannot ever succeed.
	Start(closeWhenReady chan<- struct{})
}

// DataSourceUpdateSink is an interface that a data source implementation will use to push data into
// the SDK.
//
// The data source interacts with this object, rather than manipulating the data store directly, so
// that the SDK can perform any other necessary operations that must happen when data is updated:
// sorting the data set for consistent storage, computing dependency changes for flag change events,
// and updating the data source status.
type DataSourceUpdateSink interface {
	// Init completely overwrites the current contents of the data store with a set of items for each
	// collection.
	//
	// If the underlying data store returns an error during this operation, the SDK will take
	// appropriate action to report the problem (such as logging it and updating the data source
	// status to reflect a store error), and the method returns false. It returns true if the
	// operation succeeded.
	Init(allData []ldstoretypes.Collection) bool

	// Upsert updates or inserts an item in the specified collection. For updates, the object will
	// only be updated if the existing version is less than the new version.
	//
	// To mark an item as deleted, pass an ItemDescriptor with a nil Item and a nonzero version
	// number. Deletions must be versioned so that they do not overwrite a later update in case
	// updates are received out of order.
	//
	// If the underlying data store returns an error during this operation, the SDK will take
	// appropriate action to report the problem (such as logging it and updating the data source
	// status to reflect a store error), and the method returns false. It returns true if the
	// operation succeeded or was a no-op due to versioning.
	Upsert(kind ldstoretypes.DataKind, key string, item ldstoretypes.ItemDescriptor) bool

	// UpdateStatus informs the SDK of a change in the data source's status.
	//
	// Data source implementations should use this method if they have any concept of being in a
	// valid state, a temporarily disconnected state, or a permanently stopped state.
	//
	// If newState is different from the previous state, and/or newError is non-empty, the SDK
	// will start returning the new status (adding a timestamp for the change) from
	// DataSourceStatusProvider.GetStatus(), and will trigger status change events to any
	// registered listeners.
	//
	// A special case is that if newState is DataSourceStateInterrupted, but the current state is
	// DataSourceStateInitializing, the state will remain at Initializing because Interrupted is
	// only meaningful after a successful startup.
	//
	// Data source implementations normally should not need to set the state to
	// DataSourceStateValid, because that will happen automatically if they update the data store.
	UpdateStatus(newState interfaces.DataSourceState, newError interfaces.DataSourceErrorInfo)

	// GetDataStoreStatusProvider returns an object that provides status tracking for the data
	// store, if applicable.
	//
	// This may be useful if the data source needs to be aware of storage problems that might require
	// it to take some special action: for instance, if a database outage may have caused some data
	// to be lost and therefore the data should be re-requested from LaunchDarkly.
	GetDataStoreStatusProvider() interfaces.DataStoreStatusProvider
}
