package datasource

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/launchdarkly/go-server-sdk-core/interfaces"
	"github.com/launchdarkly/go-server-sdk-core/internal/datakinds"
	"github.com/launchdarkly/go-server-sdk-core/internal/datastore"
	"github.com/launchdarkly/go-server-sdk-core/internal/sharedtest"
	"github.com/launchdarkly/go-server-sdk-core/internal/sharedtest/mocks"
	"github.com/launchdarkly/go-server-sdk-core/subsystems"
	"github.com/launchdarkly/go-server-sdk-core/testhelpers/ldservices"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	helpers "github.com/launchdarkly/go-test-helpers/v3"
	"github.com/launchdarkly/go-test-helpers/v3/httphelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSDKKey = "test-sdk-key"

	// short initial reconnect delay so that retry tests don't take long
	briefReconnectDelay = time.Millisecond * 20

	startWaitTimeout = time.Second * 3
)

type streamingTestParams struct {
	events  httphelpers.SSEStreamControl
	updates *mocks.MockDataSourceUpdates
	sp      *StreamProcessor
	mockLog *ldlogtest.MockLog
}

// Starts a StreamProcessor against a fake streaming service that sends initialData in its "put"
// event, waits for initialization to finish, and then runs the test logic.
func runStreamingTest(
	t *testing.T,
	initialData *ldservices.ServerSDKData,
	action func(p streamingTestParams),
) {
	handler, stream := ldservices.ServerSideStreamingServiceHandler(initialData.ToPutEvent())
	defer stream.Close()

	mockLog := ldlogtest.NewMockLog()
	defer mockLog.DumpIfTestFailed(t)

	httphelpers.WithServer(handler, func(ts *httptest.Server) {
		updates := mocks.NewMockDataSourceUpdates(datastore.NewInMemoryDataStore(ldlog.NewDisabledLoggers()))
		loggingConfig := sharedtest.TestLoggingConfigWithLoggers(mockLog.Loggers)
		context := sharedtest.NewTestContext(testSDKKey, nil, &loggingConfig)

		sp := NewStreamProcessor(context, updates, ts.URL, briefReconnectDelay)
		defer sp.Close()

		closeWhenReady := make(chan struct{})
		sp.Start(closeWhenReady)

		select {
		case <-closeWhenReady:
		case <-time.After(startWaitTimeout):
			require.Fail(t, "timed out waiting for stream to initialize")
			return
		}

		action(streamingTestParams{events: stream, updates: updates, sp: sp, mockLog: mockLog})
	})
}

func TestStreamProcessorInitialPut(t *testing.T) {
	initialData := ldservices.NewServerSDKData().
		Flags(ldservices.FlagOrSegment("my-flag", 2)).
		Segments(ldservices.FlagOrSegment("my-segment", 3))

	runStreamingTest(t, initialData, func(p streamingTestParams) {
		p.updates.DataStore.WaitForInit(t, initialData, time.Second)
		p.updates.RequireStatusOf(t, interfaces.DataSourceStateValid)
		assert.True(t, p.sp.IsInitialized())
	})
}

func TestStreamProcessorPatchEvents(t *testing.T) {
	initialData := ldservices.NewServerSDKData().Flags(ldservices.FlagOrSegment("my-flag", 1))

	t.Run("flag is updated", func(t *testing.T) {
		runStreamingTest(t, initialData, func(p streamingTestParams) {
			p.events.Enqueue(httphelpers.SSEEvent{
				Event: "patch",
				Data:  `{"path": "/flags/my-flag", "data": {"key": "my-flag", "version": 3}}`,
			})
			p.updates.DataStore.WaitForUpsert(t, datakinds.Features, "my-flag", 3, time.Second)
		})
	})

	t.Run("segment is updated", func(t *testing.T) {
		runStreamingTest(t, initialData, func(p streamingTestParams) {
			p.events.Enqueue(httphelpers.SSEEvent{
				Event: "patch",
				Data:  `{"path": "/segments/my-segment", "data": {"key": "my-segment", "version": 4}}`,
			})
			p.updates.DataStore.WaitForUpsert(t, datakinds.Segments, "my-segment", 4, time.Second)
		})
	})
}

func TestStreamProcessorDeleteEvents(t *testing.T) {
	initialData := ldservices.NewServerSDKData().
		Flags(ldservices.FlagOrSegment("my-flag", 1)).
		Segments(ldservices.FlagOrSegment("my-segment", 1))

	t.Run("flag is deleted", func(t *testing.T) {
		runStreamingTest(t, initialData, func(p streamingTestParams) {
			p.events.Enqueue(httphelpers.SSEEvent{
				Event: "delete",
				Data:  `{"path": "/flags/my-flag", "version": 2}`,
			})
			p.updates.DataStore.WaitForDelete(t, datakinds.Features, "my-flag", 2, time.Second)
		})
	})

	t.Run("segment is deleted", func(t *testing.T) {
		runStreamingTest(t, initialData, func(p streamingTestParams) {
			p.events.Enqueue(httphelpers.SSEEvent{
				Event: "delete",
				Data:  `{"path": "/segments/my-segment", "version": 2}`,
			})
			p.updates.DataStore.WaitForDelete(t, datakinds.Segments, "my-segment", 2, time.Second)
		})
	})
}

func TestStreamProcessorIgnoresUnknownEventType(t *testing.T) {
	initialData := ldservices.NewServerSDKData().Flags(ldservices.FlagOrSegment("my-flag", 1))

	runStreamingTest(t, initialData, func(p streamingTestParams) {
		p.events.Enqueue(httphelpers.SSEEvent{Event: "weird-event", Data: "data"})

		// the stream should not have been restarted, so a subsequent update still works
		p.events.Enqueue(httphelpers.SSEEvent{
			Event: "patch",
			Data:  `{"path": "/flags/my-flag", "data": {"key": "my-flag", "version": 2}}`,
		})
		p.updates.DataStore.WaitForUpsert(t, datakinds.Features, "my-flag", 2, time.Second)

		p.mockLog.AssertMessageMatch(t, true, ldlog.Info, "Unexpected event found in stream: weird-event")
	})
}

func TestStreamProcessorRestartsStreamOnBadEventData(t *testing.T) {
	initialData := ldservices.NewServerSDKData().Flags(ldservices.FlagOrSegment("my-flag", 1))

	eventShouldCauseStreamRestart := func(t *testing.T, event httphelpers.SSEEvent) {
		runStreamingTest(t, initialData, func(p streamingTestParams) {
			p.updates.DataStore.WaitForInit(t, initialData, time.Second)
			p.updates.RequireStatusOf(t, interfaces.DataSourceStateValid)

			p.events.Enqueue(event)

			status := p.updates.RequireStatusOf(t, interfaces.DataSourceStateInterrupted)
			assert.Equal(t, interfaces.DataSourceErrorKindInvalidData, status.LastError.Kind)

			// after the restart, the server sends the initial data again
			p.updates.DataStore.WaitForInit(t, initialData, time.Second)
			p.updates.RequireStatusOf(t, interfaces.DataSourceStateValid)

			p.mockLog.AssertMessageMatch(t, true, ldlog.Error, "will restart stream")
		})
	}

	t.Run("malformed put", func(t *testing.T) {
		eventShouldCauseStreamRestart(t, httphelpers.SSEEvent{Event: "put", Data: "{not json"})
	})

	t.Run("malformed patch", func(t *testing.T) {
		eventShouldCauseStreamRestart(t, httphelpers.SSEEvent{Event: "patch", Data: "{not json"})
	})

	t.Run("malformed delete", func(t *testing.T) {
		eventShouldCauseStreamRestart(t, httphelpers.SSEEvent{Event: "delete", Data: "{not json"})
	})

	t.Run("put with invalid data envelope", func(t *testing.T) {
		eventShouldCauseStreamRestart(t, httphelpers.SSEEvent{
			Event: "put",
			Data:  `{"path": "/", "data": {"flags": 999}}`,
		})
	})

	t.Run("patch with unrecognized path", func(t *testing.T) {
		eventShouldCauseStreamRestart(t, httphelpers.SSEEvent{
			Event: "patch",
			Data:  `{"path": "/wrong", "data": {"key": "my-flag", "version": 2}}`,
		})
	})

	t.Run("delete with unrecognized path", func(t *testing.T) {
		eventShouldCauseStreamRestart(t, httphelpers.SSEEvent{
			Event: "delete",
			Data:  `{"path": "/wrong", "version": 2}`,
		})
	})
}

func TestStreamProcessorReconnectsAfterRecoverableHTTPError(t *testing.T) {
	for _, statusCode := range []int{400, 408, 429, 500, 503} {
		t.Run(fmt.Sprintf("status %d", statusCode), func(t *testing.T) {
			initialData := ldservices.NewServerSDKData().Flags(ldservices.FlagOrSegment("my-flag", 1))
			streamHandler, stream := ldservices.ServerSideStreamingServiceHandler(initialData.ToPutEvent())
			defer stream.Close()
			handler := httphelpers.SequentialHandler(
				httphelpers.HandlerWithStatus(statusCode), // the first request gets an error
				streamHandler, // the request after the retry gets a valid stream
			)

			httphelpers.WithServer(handler, func(ts *httptest.Server) {
				updates := mocks.NewMockDataSourceUpdates(datastore.NewInMemoryDataStore(ldlog.NewDisabledLoggers()))
				sp := NewStreamProcessor(sharedtest.NewSimpleTestContext(testSDKKey), updates, ts.URL, briefReconnectDelay)
				defer sp.Close()

				closeWhenReady := make(chan struct{})
				sp.Start(closeWhenReady)

				select {
				case <-closeWhenReady:
				case <-time.After(startWaitTimeout):
					require.Fail(t, "timed out waiting for stream to initialize")
					return
				}
				assert.True(t, sp.IsInitialized())

				status := updates.RequireStatusOf(t, interfaces.DataSourceStateInterrupted)
				assert.Equal(t, interfaces.DataSourceErrorKindErrorResponse, status.LastError.Kind)
				assert.Equal(t, statusCode, status.LastError.StatusCode)
				updates.RequireStatusOf(t, interfaces.DataSourceStateValid)
				updates.DataStore.WaitForInit(t, initialData, time.Second)
			})
		})
	}
}

func TestStreamProcessorFailsPermanentlyAfterUnrecoverableHTTPError(t *testing.T) {
	for _, statusCode := range []int{401, 403, 404} {
		t.Run(fmt.Sprintf("status %d", statusCode), func(t *testing.T) {
			httphelpers.WithServer(httphelpers.HandlerWithStatus(statusCode), func(ts *httptest.Server) {
				updates := mocks.NewMockDataSourceUpdates(datastore.NewInMemoryDataStore(ldlog.NewDisabledLoggers()))
				sp := NewStreamProcessor(sharedtest.NewSimpleTestContext(testSDKKey), updates, ts.URL, briefReconnectDelay)
				defer sp.Close()

				closeWhenReady := make(chan struct{})
				sp.Start(closeWhenReady)

				// initialization should terminate, but the data source is not initialized
				select {
				case <-closeWhenReady:
				case <-time.After(startWaitTimeout):
					require.Fail(t, "timed out waiting for initialization to terminate")
					return
				}
				assert.False(t, sp.IsInitialized())

				status := updates.RequireStatusOf(t, interfaces.DataSourceStateOff)
				assert.Equal(t, interfaces.DataSourceErrorKindErrorResponse, status.LastError.Kind)
				assert.Equal(t, statusCode, status.LastError.StatusCode)
			})
		})
	}
}

func TestStreamProcessorReconnectsAfterNetworkError(t *testing.T) {
	initialData := ldservices.NewServerSDKData().Flags(ldservices.FlagOrSegment("my-flag", 1))
	streamHandler, stream := ldservices.ServerSideStreamingServiceHandler(initialData.ToPutEvent())
	defer stream.Close()
	handler := httphelpers.SequentialHandler(
		httphelpers.BrokenConnectionHandler(),
		streamHandler,
	)

	httphelpers.WithServer(handler, func(ts *httptest.Server) {
		updates := mocks.NewMockDataSourceUpdates(datastore.NewInMemoryDataStore(ldlog.NewDisabledLoggers()))
		sp := NewStreamProcessor(sharedtest.NewSimpleTestContext(testSDKKey), updates, ts.URL, briefReconnectDelay)
		defer sp.Close()

		closeWhenReady := make(chan struct{})
		sp.Start(closeWhenReady)

		select {
		case <-closeWhenReady:
		case <-time.After(startWaitTimeout):
			require.Fail(t, "timed out waiting for stream to initialize")
			return
		}
		assert.True(t, sp.IsInitialized())

		status := updates.RequireStatusOf(t, interfaces.DataSourceStateInterrupted)
		assert.Equal(t, interfaces.DataSourceErrorKindNetworkError, status.LastError.Kind)
		updates.RequireStatusOf(t, interfaces.DataSourceStateValid)
	})
}

func TestStreamProcessorRestartsStreamIfStoreNeedsRefresh(t *testing.T) {
	initialData := ldservices.NewServerSDKData().Flags(ldservices.FlagOrSegment("my-flag", 1))

	runStreamingTest(t, initialData, func(p streamingTestParams) {
		p.updates.DataStore.WaitForInit(t, initialData, time.Second)

		p.updates.UpdateStoreStatus(interfaces.DataStoreStatus{Available: false})
		p.updates.UpdateStoreStatus(interfaces.DataStoreStatus{Available: true, NeedsRefresh: true})

		// the stream should be restarted, so the server resends all the data
		p.updates.DataStore.WaitForInit(t, initialData, time.Second)
		p.mockLog.AssertMessageMatch(t, true, ldlog.Warn, "Restarting stream to refresh data")
	})
}

func TestStreamProcessorStoreFailureWithStatusTracking(t *testing.T) {
	// If the data store supports status tracking, the stream does not restart after a failed
	// update; it waits for the store to become available again.
	initialData := ldservices.NewServerSDKData().Flags(ldservices.FlagOrSegment("my-flag", 1))

	runStreamingTest(t, initialData, func(p streamingTestParams) {
		p.updates.DataStore.WaitForInit(t, initialData, time.Second)

		p.updates.DataStore.SetFakeError(errors.New("sorry"))
		p.events.Enqueue(httphelpers.SSEEvent{
			Event: "patch",
			Data:  `{"path": "/flags/my-flag", "data": {"key": "my-flag", "version": 2}}`,
		})
		p.updates.DataStore.WaitForUpsert(t, datakinds.Features, "my-flag", 2, time.Second)

		<-time.After(time.Millisecond * 100)
		p.mockLog.AssertMessageMatch(t, true, ldlog.Error, "will try again once data store is working")

		// when the store recovers without needing a refresh, the same connection remains usable
		p.updates.DataStore.SetFakeError(nil)
		p.updates.UpdateStoreStatus(interfaces.DataStoreStatus{Available: true})

		p.events.Enqueue(httphelpers.SSEEvent{
			Event: "patch",
			Data:  `{"path": "/flags/my-flag", "data": {"key": "my-flag", "version": 3}}`,
		})
		p.updates.DataStore.WaitForUpsert(t, datakinds.Features, "my-flag", 3, time.Second)
	})
}

func TestStreamProcessorStoreFailureWithoutStatusTracking(t *testing.T) {
	// If the data store does not support status tracking, a failed update means we might have
	// missed data, so the stream restarts until an update succeeds.
	initialData := ldservices.NewServerSDKData().Flags(ldservices.FlagOrSegment("my-flag", 1))
	handler, stream := ldservices.ServerSideStreamingServiceHandler(initialData.ToPutEvent())
	defer stream.Close()

	mockLog := ldlogtest.NewMockLog()
	defer mockLog.DumpIfTestFailed(t)

	httphelpers.WithServer(handler, func(ts *httptest.Server) {
		updates := mocks.NewMockDataSourceUpdates(datastore.NewInMemoryDataStore(ldlog.NewDisabledLoggers()))
		updates.DataStore.SetStatusMonitoringEnabled(false)
		loggingConfig := sharedtest.TestLoggingConfigWithLoggers(mockLog.Loggers)
		context := sharedtest.NewTestContext(testSDKKey, nil, &loggingConfig)

		sp := NewStreamProcessor(context, updates, ts.URL, briefReconnectDelay)
		defer sp.Close()

		closeWhenReady := make(chan struct{})
		sp.Start(closeWhenReady)

		select {
		case <-closeWhenReady:
		case <-time.After(startWaitTimeout):
			require.Fail(t, "timed out waiting for stream to initialize")
			return
		}
		updates.DataStore.WaitForNextInit(t, time.Second)

		updates.DataStore.SetFakeError(errors.New("sorry"))
		stream.Enqueue(httphelpers.SSEEvent{
			Event: "patch",
			Data:  `{"path": "/flags/my-flag", "data": {"key": "my-flag", "version": 2}}`,
		})
		updates.DataStore.WaitForUpsert(t, datakinds.Features, "my-flag", 2, time.Second)

		// the failed update causes a restart, and the reinitialization fails too
		updates.DataStore.WaitForNextInit(t, time.Second)
		mockLog.AssertMessageMatch(t, true, ldlog.Error, "will restart stream until successful")

		// once the store is working again, reinitialization succeeds
		updates.DataStore.SetFakeError(nil)
		updates.DataStore.WaitForNextInit(t, time.Second)
	})
}

func TestStreamProcessorUsesConfiguredHeaders(t *testing.T) {
	initialData := ldservices.NewServerSDKData()
	streamHandler, stream := ldservices.ServerSideStreamingServiceHandler(initialData.ToPutEvent())
	defer stream.Close()
	handler, requestsCh := httphelpers.RecordingHandler(streamHandler)

	headers := make(http.Header)
	headers.Set("Authorization", testSDKKey)
	headers.Set("User-Agent", "extra-agent")
	httpConfig := subsystems.HTTPConfiguration{DefaultHeaders: headers}

	httphelpers.WithServer(handler, func(ts *httptest.Server) {
		updates := mocks.NewMockDataSourceUpdates(datastore.NewInMemoryDataStore(ldlog.NewDisabledLoggers()))
		context := sharedtest.NewTestContext(testSDKKey, &httpConfig, nil)
		sp := NewStreamProcessor(context, updates, ts.URL, briefReconnectDelay)
		defer sp.Close()

		closeWhenReady := make(chan struct{})
		sp.Start(closeWhenReady)

		request := helpers.RequireValue(t, requestsCh, time.Second)
		assert.Equal(t, "/all", request.Request.URL.Path)
		assert.Equal(t, testSDKKey, request.Request.Header.Get("Authorization"))
		assert.Equal(t, "extra-agent", request.Request.Header.Get("User-Agent"))
	})
}

func TestStreamProcessorCloseUpdatesStatusToOff(t *testing.T) {
	initialData := ldservices.NewServerSDKData().Flags(ldservices.FlagOrSegment("my-flag", 1))

	runStreamingTest(t, initialData, func(p streamingTestParams) {
		p.updates.RequireStatusOf(t, interfaces.DataSourceStateValid)

		require.NoError(t, p.sp.Close())

		p.updates.RequireStatusOf(t, interfaces.DataSourceStateOff)
	})
}

func TestStreamProcessorPropertyAccessors(t *testing.T) {
	updates := mocks.NewMockDataSourceUpdates(datastore.NewInMemoryDataStore(ldlog.NewDisabledLoggers()))
	sp := NewStreamProcessor(sharedtest.NewSimpleTestContext(testSDKKey), updates, "https://stream.test.com", time.Minute)
	defer sp.Close()

	assert.Equal(t, "https://stream.test.com", sp.GetBaseURI())
	assert.Equal(t, time.Minute, sp.GetInitialReconnectDelay())
}
