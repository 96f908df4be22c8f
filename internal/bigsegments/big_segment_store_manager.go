package bigsegments

import (
	"crypto/sha256"
	"encoding/base64"
	"sync"
	"time"

	"github.com/launchdarkly/go-server-sdk-core/evaluation"
	"github.com/launchdarkly/go-server-sdk-core/interfaces"
	"github.com/launchdarkly/go-server-sdk-core/internal"
	"github.com/launchdarkly/go-server-sdk-core/subsystems"

	"github.com/launchdarkly/ccache"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldreason"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Default values used by NewBigSegmentStoreManager when the corresponding
// StoreManagerConfig fields are zero. These match the standard SDK configuration defaults
// for Big Segments.
const (
	DefaultStatusPollInterval = 5 * time.Second
	DefaultStaleAfter         = 2 * time.Minute
	DefaultUserCacheSize      = 1000
	DefaultUserCacheTime      = 5 * time.Second
)

// StoreManagerConfig contains the parameters for NewBigSegmentStoreManager.
type StoreManagerConfig struct {
	// Store is the underlying Big Segment store. It must not be nil. The manager takes
	// ownership of the store and closes it when the manager is closed.
	Store subsystems.BigSegmentStore

	// StatusPollInterval is how often the manager queries the store's metadata to determine
	// whether it is available and whether its data is stale.
	StatusPollInterval time.Duration

	// StaleAfter is the maximum age of the store's last-updated timestamp before the store
	// data is considered stale.
	StaleAfter time.Duration

	// UserCacheSize is the maximum number of contexts whose membership state is cached at
	// any one time.
	UserCacheSize int

	// UserCacheTime is the maximum age of a cached membership state.
	UserCacheTime time.Duration

	// StartPolling is true if the status poll task should start immediately. If it is false,
	// polling does not begin until SetPollingActive is called with a true value.
	StartPolling bool

	// StatusUpdateFn is an optional callback that is invoked, in addition to the manager's
	// own broadcaster, whenever the store status changes.
	StatusUpdateFn func(interfaces.BigSegmentStoreStatus)
}

// BigSegmentStoreManager is the component that owns the Big Segment store, if Big Segments
// are configured. It caches membership queries per context key, polls the store's metadata
// to track availability and staleness, and broadcasts any status change.
//
// It implements evaluation.BigSegmentProvider so that the evaluator can query membership
// state through it. The evaluator uses plain context keys; the manager is responsible for
// converting them to the hashed form that Big Segment stores are keyed by.
type BigSegmentStoreManager struct {
	store          subsystems.BigSegmentStore
	statusUpdateFn func(interfaces.BigSegmentStoreStatus)
	broadcaster    *internal.Broadcaster[interfaces.BigSegmentStoreStatus]
	staleTime      time.Duration
	contextCache   *ccache.Cache
	cacheTTL       time.Duration
	pollInterval   time.Duration
	haveStatus     bool
	lastStatus     interfaces.BigSegmentStoreStatus
	pollCloser     chan struct{}
	pollingActive  bool
	loggers        ldlog.Loggers
	lock           sync.RWMutex
}

// emptyMembership is a BigSegmentMembership whose CheckMembership always returns "undefined".
// We cache one of these when the store has no data at all for a context, so that the absence
// of data is cached just like the presence of data.
type emptyMembership struct{}

func (m emptyMembership) CheckMembership(segmentRef string) ldvalue.OptionalBool {
	return ldvalue.OptionalBool{}
}

// NewBigSegmentStoreManager creates the manager. Zero values in the config are replaced with
// the corresponding defaults.
func NewBigSegmentStoreManager(config StoreManagerConfig, loggers ldlog.Loggers) *BigSegmentStoreManager {
	pollInterval := config.StatusPollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultStatusPollInterval
	}
	staleAfter := config.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	cacheSize := config.UserCacheSize
	if cacheSize <= 0 {
		cacheSize = DefaultUserCacheSize
	}
	cacheTTL := config.UserCacheTime
	if cacheTTL <= 0 {
		cacheTTL = DefaultUserCacheTime
	}

	m := &BigSegmentStoreManager{
		store:          config.Store,
		statusUpdateFn: config.StatusUpdateFn,
		broadcaster:    internal.NewBroadcaster[interfaces.BigSegmentStoreStatus](),
		staleTime:      staleAfter,
		contextCache:   ccache.New(ccache.Configure().MaxSize(int64(cacheSize))),
		cacheTTL:       cacheTTL,
		pollInterval:   pollInterval,
		loggers:        loggers,
	}

	if config.StartPolling {
		m.SetPollingActive(true)
	}
	return m
}

// HashForContextKey computes the hash string that Big Segment store data is keyed by, from the
// plain key of an evaluation context.
func HashForContextKey(key string) string {
	hashBytes := sha256.Sum256([]byte(key))
	return base64.StdEncoding.EncodeToString(hashBytes[:])
}

// Close shuts down the poll task and the cache, closes all status listener channels, and
// closes the underlying store.
func (m *BigSegmentStoreManager) Close() {
	m.lock.Lock()
	if m.pollCloser != nil {
		close(m.pollCloser)
		m.pollCloser = nil
	}
	if m.contextCache != nil {
		m.contextCache.Stop()
		m.contextCache = nil
	}
	m.lock.Unlock()

	m.broadcaster.Close()
	_ = m.store.Close()
}

// Broadcaster returns the broadcaster that the manager publishes status changes to. The same
// broadcaster should be passed to NewBigSegmentStoreStatusProviderImpl so that status listeners
// receive the manager's updates.
func (m *BigSegmentStoreManager) Broadcaster() *internal.Broadcaster[interfaces.BigSegmentStoreStatus] {
	return m.broadcaster
}

// GetMembership is called by the evaluator when it needs the Big Segment membership state for
// an evaluation context.
//
// If there is a cached state for the context key, it returns the cached state. Otherwise it
// hashes the key, queries the store, and caches the result-- including a "no data" result, which
// is cached as an empty membership. The returned status describes whether the query succeeded
// and whether the data should be considered fresh; it becomes part of the evaluation reason for
// any flag whose evaluation referenced a Big Segment.
func (m *BigSegmentStoreManager) GetMembership(contextKey string) (
	evaluation.BigSegmentMembership, ldreason.BigSegmentsStatus) {
	var result evaluation.BigSegmentMembership
	entry := m.safeCacheGet(contextKey)
	if entry == nil || entry.Expired() {
		membership, err := m.store.GetMembership(HashForContextKey(contextKey))
		if err != nil {
			m.loggers.Errorf("Big Segment store returned error: %s", err)
			return nil, ldreason.BigSegmentsStoreError
		}
		if membership == nil {
			membership = emptyMembership{}
		}
		m.safeCacheSet(contextKey, membership, m.cacheTTL)
		result = membership
	} else if cached, ok := entry.Value().(subsystems.BigSegmentMembership); ok {
		result = cached
	} else {
		// can't happen; nothing else writes to this cache
		return nil, ldreason.BigSegmentsStoreError
	}

	status := m.GetStatus()
	switch {
	case !status.Available:
		return result, ldreason.BigSegmentsStoreError
	case status.Stale:
		return result, ldreason.BigSegmentsStale
	default:
		return result, ldreason.BigSegmentsHealthy
	}
}

// GetStatus returns the store status that was recorded by the last poll. If no poll has happened
// yet, it queries the store's metadata synchronously, so the very first evaluation that references
// a Big Segment may block briefly on the store.
func (m *BigSegmentStoreManager) GetStatus() interfaces.BigSegmentStoreStatus {
	m.lock.RLock()
	status, haveStatus := m.lastStatus, m.haveStatus
	m.lock.RUnlock()

	if haveStatus {
		return status
	}
	return m.pollStoreAndUpdateStatus()
}

// SetPollingActive starts or stops the status poll task. The manager can be created with polling
// inactive if the caller does not yet know whether any Big Segments exist to be queried, and then
// activated once one is seen.
func (m *BigSegmentStoreManager) SetPollingActive(active bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.pollingActive == active {
		return
	}
	m.pollingActive = active
	if active {
		m.pollCloser = make(chan struct{})
		go m.runPollTask(m.pollInterval, m.pollCloser)
	} else if m.pollCloser != nil {
		close(m.pollCloser)
		m.pollCloser = nil
	}
}

// ClearCache invalidates all cached membership states, so subsequent queries will get the
// latest data from the store.
func (m *BigSegmentStoreManager) ClearCache() {
	m.lock.Lock()
	if m.contextCache != nil {
		m.contextCache.Clear()
	}
	m.lock.Unlock()
	m.loggers.Debug("Invalidated cache of Big Segment state")
}

func (m *BigSegmentStoreManager) pollStoreAndUpdateStatus() interfaces.BigSegmentStoreStatus {
	var newStatus interfaces.BigSegmentStoreStatus
	metadata, err := m.store.GetMetadata()

	m.lock.Lock()
	if err == nil {
		newStatus.Available = true
		newStatus.Stale = m.isStale(metadata.LastUpToDate)
		m.loggers.Debugf("Big Segment store status query returned lastUpToDate=%d", metadata.LastUpToDate)
	} else {
		newStatus.Available = false
		m.loggers.Errorf("Big Segment store status query returned error: %s", err)
	}
	oldStatus := m.lastStatus
	hadStatus := m.haveStatus
	m.lastStatus = newStatus
	m.haveStatus = true
	m.lock.Unlock()

	if !hadStatus || newStatus != oldStatus {
		m.loggers.Debugf("Big Segment store status has changed from %+v to %+v", oldStatus, newStatus)
		m.broadcaster.Broadcast(newStatus)
		if m.statusUpdateFn != nil {
			m.statusUpdateFn(newStatus)
		}
	}
	return newStatus
}

func (m *BigSegmentStoreManager) isStale(updateTime ldtime.UnixMillisecondTime) bool {
	now := ldtime.UnixMillisNow()
	if updateTime >= now {
		return false
	}
	return time.Duration(now-updateTime)*time.Millisecond > m.staleTime
}

func (m *BigSegmentStoreManager) runPollTask(pollInterval time.Duration, pollCloser <-chan struct{}) {
	ticker := time.NewTicker(pollInterval)
	for {
		select {
		case <-pollCloser:
			ticker.Stop()
			return
		case <-ticker.C:
			_ = m.pollStoreAndUpdateStatus()
		}
	}
}

// The cache accessors double-check the cache reference under the manager's lock, because Close
// stops the cache and nils out the field; ccache itself is safe for concurrent use.

func (m *BigSegmentStoreManager) safeCacheGet(key string) *ccache.Item {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.contextCache == nil {
		return nil
	}
	return m.contextCache.Get(key)
}

func (m *BigSegmentStoreManager) safeCacheSet(key string, value interface{}, ttl time.Duration) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.contextCache != nil {
		m.contextCache.Set(key, value, ttl)
	}
}
