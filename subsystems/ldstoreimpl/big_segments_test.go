package ldstoreimpl

import (
	"errors"
	"testing"
	"time"

	"github.com/launchdarkly/go-server-sdk-core/evaluation"
	"github.com/launchdarkly/go-server-sdk-core/interfaces"
	"github.com/launchdarkly/go-server-sdk-core/internal/bigsegments"
	"github.com/launchdarkly/go-server-sdk-core/internal/sharedtest/mocks"
	"github.com/launchdarkly/go-server-sdk-core/subsystems"

	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	"github.com/launchdarkly/go-sdk-common/v3/ldreason"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	helpers "github.com/launchdarkly/go-test-helpers/v3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ evaluation.BigSegmentProvider = (*BigSegmentStoreWrapper)(nil)

type bigSegmentWrapperTestParams struct {
	t       *testing.T
	store   *mocks.MockBigSegmentStore
	wrapper *BigSegmentStoreWrapper
	mockLog *ldlogtest.MockLog
}

func bigSegmentWrapperTest(
	t *testing.T,
	configureFn func(*BigSegmentsConfigurationProperties),
	statusUpdateFn func(interfaces.BigSegmentStoreStatus),
	action func(bigSegmentWrapperTestParams),
) {
	mockLog := ldlogtest.NewMockLog()
	defer mockLog.DumpIfTestFailed(t)

	store := &mocks.MockBigSegmentStore{}
	store.TestSetMetadataToCurrentTime()

	config := BigSegmentsConfigurationProperties{
		Store:              store,
		StatusPollInterval: time.Millisecond * 10,
		StaleAfter:         time.Hour,
		UserCacheSize:      100,
		UserCacheTime:      time.Hour,
	}
	if configureFn != nil {
		configureFn(&config)
	}

	wrapper := NewBigSegmentStoreWrapperWithConfig(config, statusUpdateFn, mockLog.Loggers)
	defer wrapper.Close()

	action(bigSegmentWrapperTestParams{t: t, store: store, wrapper: wrapper, mockLog: mockLog})
}

func TestBigSegmentStoreWrapperMembership(t *testing.T) {
	contextKey := "contextkey"
	hash := bigsegments.HashForContextKey(contextKey)
	storedMembership := NewBigSegmentMembershipFromSegmentRefs([]string{"yes"}, []string{"no"})

	bigSegmentWrapperTest(t, nil, nil, func(p bigSegmentWrapperTestParams) {
		p.store.TestSetMembership(hash, storedMembership)

		membership, status := p.wrapper.GetMembership(contextKey)
		assert.Equal(t, ldreason.BigSegmentsHealthy, status)
		require.NotNil(t, membership)
		assert.Equal(t, ldvalue.NewOptionalBool(true), membership.CheckMembership("yes"))
		assert.Equal(t, ldvalue.NewOptionalBool(false), membership.CheckMembership("no"))
		assert.Equal(t, ldvalue.OptionalBool{}, membership.CheckMembership("other"))

		assert.Equal(t, []string{hash}, p.store.TestGetMembershipQueries())
	})
}

func TestBigSegmentStoreWrapperClearCache(t *testing.T) {
	contextKey := "contextkey"
	hash := bigsegments.HashForContextKey(contextKey)

	bigSegmentWrapperTest(t, nil, nil, func(p bigSegmentWrapperTestParams) {
		p.store.TestSetMembership(hash, NewBigSegmentMembershipFromSegmentRefs([]string{"yes"}, nil))

		_, _ = p.wrapper.GetMembership(contextKey)
		_, _ = p.wrapper.GetMembership(contextKey)
		require.Len(t, p.store.TestGetMembershipQueries(), 1)

		p.wrapper.ClearCache()

		_, _ = p.wrapper.GetMembership(contextKey)
		assert.Len(t, p.store.TestGetMembershipQueries(), 2)
	})
}

func TestBigSegmentStoreWrapperStatusPolling(t *testing.T) {
	t.Run("reports status changes through the callback", func(t *testing.T) {
		statusCh := make(chan interfaces.BigSegmentStoreStatus, 10)
		var statuses <-chan interfaces.BigSegmentStoreStatus = statusCh
		statusUpdateFn := func(status interfaces.BigSegmentStoreStatus) { statusCh <- status }

		bigSegmentWrapperTest(t, func(c *BigSegmentsConfigurationProperties) {
			c.StartPolling = true
		}, statusUpdateFn, func(p bigSegmentWrapperTestParams) {
			status := helpers.RequireValue(t, statuses, time.Second)
			assert.Equal(t, interfaces.BigSegmentStoreStatus{Available: true}, status)

			p.store.TestSetMetadataState(subsystems.BigSegmentStoreMetadata{}, errors.New("sorry"))
			status = helpers.RequireValue(t, statuses, time.Second)
			assert.Equal(t, interfaces.BigSegmentStoreStatus{Available: false}, status)
		})
	})

	t.Run("polling can be started after creation", func(t *testing.T) {
		statusCh := make(chan interfaces.BigSegmentStoreStatus, 10)
		var statuses <-chan interfaces.BigSegmentStoreStatus = statusCh
		statusUpdateFn := func(status interfaces.BigSegmentStoreStatus) { statusCh <- status }

		bigSegmentWrapperTest(t, nil, statusUpdateFn, func(p bigSegmentWrapperTestParams) {
			helpers.AssertNoMoreValues(t, statuses, time.Millisecond*50)

			p.wrapper.SetPollingActive(true)
			status := helpers.RequireValue(t, statuses, time.Second)
			assert.Equal(t, interfaces.BigSegmentStoreStatus{Available: true}, status)
		})
	})
}

func TestBigSegmentStoreWrapperClose(t *testing.T) {
	mockLog := ldlogtest.NewMockLog()
	defer mockLog.DumpIfTestFailed(t)

	store := &mocks.MockBigSegmentStore{}
	store.TestSetMetadataToCurrentTime()
	wrapper := NewBigSegmentStoreWrapperWithConfig(
		BigSegmentsConfigurationProperties{Store: store}, nil, mockLog.Loggers)

	wrapper.Close()
	assert.True(t, store.TestGetClosed())
}
