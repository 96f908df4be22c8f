package mocks

import (
	"sync"

	"github.com/launchdarkly/go-server-sdk-core/subsystems"

	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
)

// MockBigSegmentStore is an instrumented mock implementation of BigSegmentStore. The zero value
// is a store that reports zero metadata and no membership data for any context.
type MockBigSegmentStore struct {
	metadata          subsystems.BigSegmentStoreMetadata
	metadataErr       error
	memberships       map[string]subsystems.BigSegmentMembership
	membershipErr     error
	membershipQueries []string
	closed            bool
	lock              sync.Mutex
}

func (m *MockBigSegmentStore) Close() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.closed = true
	return nil
}

// TestGetClosed returns true if Close has been called.
func (m *MockBigSegmentStore) TestGetClosed() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.closed
}

func (m *MockBigSegmentStore) GetMetadata() (subsystems.BigSegmentStoreMetadata, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.metadata, m.metadataErr
}

// TestSetMetadataState makes GetMetadata return the specified values from now on.
func (m *MockBigSegmentStore) TestSetMetadataState(md subsystems.BigSegmentStoreMetadata, err error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.metadata, m.metadataErr = md, err
}

// TestSetMetadataToCurrentTime makes GetMetadata report a last-updated time of the moment when
// this method was called, with no error.
func (m *MockBigSegmentStore) TestSetMetadataToCurrentTime() {
	m.TestSetMetadataState(subsystems.BigSegmentStoreMetadata{LastUpToDate: ldtime.UnixMillisNow()}, nil)
}

func (m *MockBigSegmentStore) GetMembership(
	contextHash string,
) (subsystems.BigSegmentMembership, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.membershipQueries = append(m.membershipQueries, contextHash)
	if m.membershipErr != nil {
		return nil, m.membershipErr
	}
	return m.memberships[contextHash], nil
}

// TestSetMembership makes GetMembership return the specified membership for a hashed context key.
func (m *MockBigSegmentStore) TestSetMembership(
	contextHash string,
	membership subsystems.BigSegmentMembership,
) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.memberships == nil {
		m.memberships = make(map[string]subsystems.BigSegmentMembership)
	}
	m.memberships[contextHash] = membership
}

// TestSetMembershipError makes all GetMembership queries fail.
func (m *MockBigSegmentStore) TestSetMembershipError(err error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.membershipErr = err
}

// TestGetMembershipQueries returns the hashed keys of all GetMembership queries done so far.
func (m *MockBigSegmentStore) TestGetMembershipQueries() []string {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]string(nil), m.membershipQueries...)
}
