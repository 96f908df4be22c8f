package datasource

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/launchdarkly/go-server-sdk-core/interfaces"
	"github.com/launchdarkly/go-server-sdk-core/internal"
	"github.com/launchdarkly/go-server-sdk-core/internal/datakinds"
	"github.com/launchdarkly/go-server-sdk-core/internal/datastore"
	"github.com/launchdarkly/go-server-sdk-core/subsystems"
	"github.com/launchdarkly/go-server-sdk-core/subsystems/ldstoretypes"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// DataSourceUpdateSinkImpl is the internal implementation of DataSourceUpdateSink. It is exported
// because the actual implementation type, rather than the interface, is required as a dependency
// of other SDK components.
type DataSourceUpdateSinkImpl struct {
	store                       subsystems.DataStore
	dataStoreStatusProvider     interfaces.DataStoreStatusProvider
	dataSourceStatusBroadcaster *internal.Broadcaster[interfaces.DataSourceStatus]
	flagChangeEventBroadcaster  *internal.Broadcaster[interfaces.FlagChangeEvent]
	dependencyTracker           *datastore.DependencyTracker
	outageTracker               *outageTracker
	loggers                     ldlog.Loggers
	currentStatus               interfaces.DataSourceStatus
	lastStoreUpdateFailed       bool
	lock                        sync.Mutex
}

// NewDataSourceUpdateSinkImpl creates the internal implementation of DataSourceUpdateSink.
func NewDataSourceUpdateSinkImpl(
	store subsystems.DataStore,
	dataStoreStatusProvider interfaces.DataStoreStatusProvider,
	dataSourceStatusBroadcaster *internal.Broadcaster[interfaces.DataSourceStatus],
	flagChangeEventBroadcaster *internal.Broadcaster[interfaces.FlagChangeEvent],
	logDataSourceOutageAsErrorAfter time.Duration,
	loggers ldlog.Loggers,
) *DataSourceUpdateSinkImpl {
	return &DataSourceUpdateSinkImpl{
		store:                       store,
		dataStoreStatusProvider:     dataStoreStatusProvider,
		dataSourceStatusBroadcaster: dataSourceStatusBroadcaster,
		flagChangeEventBroadcaster:  flagChangeEventBroadcaster,
		dependencyTracker:           datastore.NewDependencyTracker(),
		outageTracker:               newOutageTracker(logDataSourceOutageAsErrorAfter, loggers),
		loggers:                     loggers,
		currentStatus: interfaces.DataSourceStatus{
			State:      interfaces.DataSourceStateInitializing,
			StateSince: time.Now(),
		},
	}
}

// Init is a standard method of DataSourceUpdateSink.
func (d *DataSourceUpdateSinkImpl) Init(allData []ldstoretypes.Collection) bool {
	var oldData map[ldstoretypes.DataKind]map[string]ldstoretypes.ItemDescriptor

	if d.flagChangeEventBroadcaster.HasListeners() {
		// Query the existing data if any, so that after the update, we can send events for
		// whatever was changed
		oldData = make(map[ldstoretypes.DataKind]map[string]ldstoretypes.ItemDescriptor)
		for _, kind := range datakinds.AllDataKinds() {
			if items, err := d.store.GetAll(kind); err == nil {
				m := make(map[string]ldstoretypes.ItemDescriptor)
				for _, item := range items {
					m[item.Key] = item.Item
				}
				oldData[kind] = m
			}
		}
	}

	err := d.store.Init(datastore.SortCollectionsForDataStoreInit(allData))
	updated := d.maybeUpdateError(err)

	if updated {
		// We must always update the dependency graph even if we don't currently have any event
		// listeners, because if listeners are added later, we don't want to have to reread the
		// whole data store to compute the graph
		d.updateDependencyTrackerFromFullDataSet(allData)

		// Now, if we previously queried the old data because someone is listening for flag
		// change events, compare the versions of all items and generate events for those (and
		// any other items that depend on them)
		if oldData != nil {
			d.sendChangeEvents(d.computeChangedItemsForFullDataSet(oldData, fullDataSetToMap(allData)))
		}
	}

	return updated
}

// Upsert is a standard method of DataSourceUpdateSink.
func (d *DataSourceUpdateSinkImpl) Upsert(
	kind ldstoretypes.DataKind,
	key string,
	item ldstoretypes.ItemDescriptor,
) bool {
	updated, err := d.store.Upsert(kind, key, item)
	didNotGetError := d.maybeUpdateError(err)

	if updated {
		d.dependencyTracker.UpdateDependenciesFrom(kind, key, item)
		if d.flagChangeEventBroadcaster.HasListeners() {
			affectedItems := make(datastore.KindAndKeySet)
			d.dependencyTracker.AddAffectedItems(affectedItems, datastore.KindAndKey{Kind: kind, Key: key})
			d.sendChangeEvents(affectedItems)
		}
	}

	return didNotGetError
}

func (d *DataSourceUpdateSinkImpl) maybeUpdateError(err error) bool {
	if err == nil {
		d.lock.Lock()
		defer d.lock.Unlock()
		d.lastStoreUpdateFailed = false
		return true
	}

	d.UpdateStatus(
		interfaces.DataSourceStateInterrupted,
		interfaces.DataSourceErrorInfo{
			Kind:    interfaces.DataSourceErrorKindStoreError,
			Message: err.Error(),
			Time:    time.Now(),
		},
	)

	shouldLog := false
	d.lock.Lock()
	shouldLog = !d.lastStoreUpdateFailed
	d.lastStoreUpdateFailed = true
	d.lock.Unlock()
	if shouldLog {
		d.loggers.Warnf("Unexpected data store error when trying to store an update received from the data source: %s", err)
	}

	return false
}

// UpdateStatus is a standard method of DataSourceUpdateSink.
func (d *DataSourceUpdateSinkImpl) UpdateStatus(
	newState interfaces.DataSourceState,
	newError interfaces.DataSourceErrorInfo,
) {
	if newState == "" {
		return
	}
	if statusToBroadcast, changed := d.maybeUpdateStatus(newState, newError); changed {
		d.dataSourceStatusBroadcaster.Broadcast(statusToBroadcast)
	}
}

func (d *DataSourceUpdateSinkImpl) maybeUpdateStatus(
	newState interfaces.DataSourceState,
	newError interfaces.DataSourceErrorInfo,
) (interfaces.DataSourceStatus, bool) {
	d.lock.Lock()
	defer d.lock.Unlock()

	oldStatus := d.currentStatus

	if newState == interfaces.DataSourceStateInterrupted && oldStatus.State == interfaces.DataSourceStateInitializing {
		newState = interfaces.DataSourceStateInitializing // see comment on DataSourceUpdateSink.UpdateStatus
	}

	if newState == oldStatus.State && newError.Kind == "" {
		return interfaces.DataSourceStatus{}, false
	}

	stateSince := oldStatus.StateSince
	if newState != oldStatus.State {
		stateSince = time.Now()
	}
	lastError := oldStatus.LastError
	if newError.Kind != "" {
		lastError = newError
	}
	d.currentStatus = interfaces.DataSourceStatus{
		State:      newState,
		StateSince: stateSince,
		LastError:  lastError,
	}

	d.outageTracker.trackDataSourceState(newState, newError)

	return d.currentStatus, true
}

// GetDataStoreStatusProvider is a standard method of DataSourceUpdateSink.
func (d *DataSourceUpdateSinkImpl) GetDataStoreStatusProvider() interfaces.DataStoreStatusProvider {
	return d.dataStoreStatusProvider
}

// GetLastStatus is used internally by SDK components.
func (d *DataSourceUpdateSinkImpl) GetLastStatus() interfaces.DataSourceStatus {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.currentStatus
}

func (d *DataSourceUpdateSinkImpl) waitFor(desiredState interfaces.DataSourceState, timeout time.Duration) bool {
	d.lock.Lock()
	if d.currentStatus.State == desiredState {
		d.lock.Unlock()
		return true
	}
	if d.currentStatus.State == interfaces.DataSourceStateOff {
		d.lock.Unlock()
		return false
	}

	statusCh := d.dataSourceStatusBroadcaster.AddListener()
	defer d.dataSourceStatusBroadcaster.RemoveListener(statusCh)
	d.lock.Unlock()

	var deadline <-chan time.Time
	if timeout > 0 {
		deadline = time.After(timeout)
	}

	for {
		select {
		case newStatus := <-statusCh:
			if newStatus.State == desiredState {
				return true
			}
			if newStatus.State == interfaces.DataSourceStateOff {
				return false
			}
		case <-deadline:
			return false
		}
	}
}

func (d *DataSourceUpdateSinkImpl) sendChangeEvents(affectedItems datastore.KindAndKeySet) {
	for item := range affectedItems {
		if item.Kind == datakinds.Features {
			d.flagChangeEventBroadcaster.Broadcast(interfaces.FlagChangeEvent{Key: item.Key})
		}
	}
}

func (d *DataSourceUpdateSinkImpl) updateDependencyTrackerFromFullDataSet(allData []ldstoretypes.Collection) {
	d.dependencyTracker.Reset()
	for _, coll := range allData {
		for _, item := range coll.Items {
			d.dependencyTracker.UpdateDependenciesFrom(coll.Kind, item.Key, item.Item)
		}
	}
}

func fullDataSetToMap(allData []ldstoretypes.Collection) map[ldstoretypes.DataKind]map[string]ldstoretypes.ItemDescriptor {
	ret := make(map[ldstoretypes.DataKind]map[string]ldstoretypes.ItemDescriptor, len(allData))
	for _, coll := range allData {
		m := make(map[string]ldstoretypes.ItemDescriptor)
		for _, item := range coll.Items {
			m[item.Key] = item.Item
		}
		ret[coll.Kind] = m
	}
	return ret
}

func (d *DataSourceUpdateSinkImpl) computeChangedItemsForFullDataSet(
	oldDataMap map[ldstoretypes.DataKind]map[string]ldstoretypes.ItemDescriptor,
	newDataMap map[ldstoretypes.DataKind]map[string]ldstoretypes.ItemDescriptor,
) datastore.KindAndKeySet {
	affectedItems := make(datastore.KindAndKeySet)
	for _, kind := range datakinds.AllDataKinds() {
		oldItems := oldDataMap[kind]
		newItems := newDataMap[kind]
		allKeys := make([]string, 0, len(oldItems)+len(newItems))
		for key := range oldItems {
			allKeys = append(allKeys, key)
		}
		for key := range newItems {
			if _, found := oldItems[key]; !found {
				allKeys = append(allKeys, key)
			}
		}
		for _, key := range allKeys {
			oldItem, haveOld := oldItems[key]
			newItem, haveNew := newItems[key]
			if haveOld || haveNew {
				if !haveOld || !haveNew || oldItem.Version < newItem.Version {
					d.dependencyTracker.AddAffectedItems(affectedItems, datastore.KindAndKey{Kind: kind, Key: key})
				}
			}
		}
	}
	return affectedItems
}

// The outage tracker supports the "logDataSourceOutageAsErrorAfter" logging configuration. When
// the data source is in an interrupted state, we normally log each failure only at Warn level;
// but if the outage lasts longer than the configured interval, we log a summary of all errors
// that happened during the outage at Error level, since this is more likely to indicate a real
// problem that requires attention.
type outageTracker struct {
	outageLoggingTimeout time.Duration
	loggers              ldlog.Loggers
	inOutage             bool
	errorCounts          map[interfaces.DataSourceErrorInfo]int
	timeoutCloser        chan struct{}
	lock                 sync.Mutex
}

func newOutageTracker(outageLoggingTimeout time.Duration, loggers ldlog.Loggers) *outageTracker {
	return &outageTracker{
		outageLoggingTimeout: outageLoggingTimeout,
		loggers:              loggers,
	}
}

func (o *outageTracker) trackDataSourceState(
	newState interfaces.DataSourceState,
	newError interfaces.DataSourceErrorInfo,
) {
	if o.outageLoggingTimeout == 0 {
		return
	}

	o.lock.Lock()
	defer o.lock.Unlock()

	if newState == interfaces.DataSourceStateInterrupted || newError.Kind != "" ||
		(newState == interfaces.DataSourceStateInitializing && o.inOutage) {
		// We are in a potentially recoverable outage. If that wasn't the case already, and if
		// we've been configured with a timeout for logging the outage at a higher level, schedule
		// that timeout.
		if o.inOutage {
			// We were already in one - just record this latest error.
			o.recordError(newError)
		} else {
			// We weren't already in one, so set the timeout and start recording errors.
			o.inOutage = true
			o.errorCounts = make(map[interfaces.DataSourceErrorInfo]int)
			o.recordError(newError)
			o.timeoutCloser = make(chan struct{})
			go o.awaitTimeout(o.timeoutCloser)
		}
	} else {
		if o.timeoutCloser != nil {
			close(o.timeoutCloser)
			o.timeoutCloser = nil
		}
		o.inOutage = false
	}
}

func (o *outageTracker) recordError(newError interfaces.DataSourceErrorInfo) {
	// Accumulate how many times each kind of error has occurred during the outage - use just
	// the basic properties as the key so the map won't expand indefinitely
	basicErrorInfo := interfaces.DataSourceErrorInfo{Kind: newError.Kind, StatusCode: newError.StatusCode}
	o.errorCounts[basicErrorInfo]++
}

func (o *outageTracker) awaitTimeout(closer chan struct{}) {
	select {
	case <-closer:
		return
	case <-time.After(o.outageLoggingTimeout):
		break
	}

	o.lock.Lock()
	if !o.inOutage {
		// COVERAGE: there is no way to simulate this condition in unit tests; it is a very
		// unlikely race condition
		o.lock.Unlock()
		return
	}
	errorsDesc := o.describeErrors()
	o.timeoutCloser = nil
	o.lock.Unlock()

	o.loggers.Errorf(
		"LaunchDarkly data source outage - updates have been unavailable for at least %s with the following errors: %s",
		o.outageLoggingTimeout,
		errorsDesc,
	)
}

func (o *outageTracker) describeErrors() string {
	descs := make([]string, 0, len(o.errorCounts))
	for err, count := range o.errorCounts {
		times := "times"
		if count == 1 {
			times = "time"
		}
		descs = append(descs, fmt.Sprintf("%s (%d %s)", err, count, times))
	}
	// Sort the error descriptions so that the message is deterministic regardless of map
	// iteration order
	sort.Strings(descs)
	return strings.Join(descs, ", ")
}
