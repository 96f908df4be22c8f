package ldevents

import (
	"sync"
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	helpers "github.com/launchdarkly/go-test-helpers/v3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFlagKey = "flagkey"

var fakeTimeNow = ldtime.UnixMillisecondTime(100000)

func basicContext() EventInputContext {
	return Context(ldcontext.New("userkey"))
}

func basicEventsConfig() EventsConfiguration {
	return EventsConfiguration{
		Capacity:              1000,
		FlushInterval:         time.Hour, // tests trigger all flushes explicitly
		UserKeysCapacity:      1000,
		UserKeysFlushInterval: time.Hour,
		Loggers:               ldlog.NewDisabledLoggers(),
		currentTimeProvider:   func() ldtime.UnixMillisecondTime { return fakeTimeNow },
	}
}

// fixedSampler makes the same sampling decision regardless of the ratio.
type fixedSampler bool

func (f fixedSampler) Sample(int) bool { return bool(f) }

func basicEvaluationData(key string) EvaluationData {
	return EvaluationData{
		BaseEvent: BaseEvent{CreationDate: fakeTimeNow, Context: basicContext()},
		Key:       key,
		Version:   ldvalue.NewOptionalInt(11),
		Variation: ldvalue.NewOptionalInt(1),
		Value:     ldvalue.String("v"),
		Default:   ldvalue.String("d"),
	}
}

// mockEventSender records each payload given to SendEventData on a channel, and returns a
// configurable result.
type mockEventSender struct {
	payloadCh chan mockSenderPayload
	result    EventSenderResult
	sendDelay time.Duration
	lock      sync.Mutex
}

type mockSenderPayload struct {
	kind       EventDataKind
	data       []byte
	eventCount int
}

func newMockEventSender() *mockEventSender {
	return &mockEventSender{
		payloadCh: make(chan mockSenderPayload, 100),
		result:    EventSenderResult{Success: true},
	}
}

func (s *mockEventSender) SendEventData(kind EventDataKind, data []byte, eventCount int) EventSenderResult {
	s.lock.Lock()
	result, delay := s.result, s.sendDelay
	s.lock.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	s.payloadCh <- mockSenderPayload{kind: kind, data: data, eventCount: eventCount}
	return result
}

func (s *mockEventSender) setResult(result EventSenderResult) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.result = result
}

func (s *mockEventSender) setDelay(delay time.Duration) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.sendDelay = delay
}

func (s *mockEventSender) requirePayload(t *testing.T) mockSenderPayload {
	var payloads <-chan mockSenderPayload = s.payloadCh
	return helpers.RequireValue(t, payloads, time.Second)
}

func (s *mockEventSender) assertNoMorePayloads(t *testing.T) {
	var payloads <-chan mockSenderPayload = s.payloadCh
	helpers.AssertNoMoreValues(t, payloads, time.Millisecond*50)
}

// assertEventsMatch parses a JSON event payload and verifies that it is an array whose elements
// match the expected JSON documents in order. Values are compared structurally, so property
// order within the expected documents does not matter.
func assertEventsMatch(t *testing.T, data []byte, expectedJSON ...string) {
	actual := ldvalue.Parse(data)
	require.Equal(t, ldvalue.ArrayType, actual.Type(), "payload was not a JSON array: %s", string(data))
	require.Equal(t, len(expectedJSON), actual.Count(), "unexpected number of events in payload: %s", string(data))
	for i, expected := range expectedJSON {
		expectedValue := ldvalue.Parse([]byte(expected))
		actualValue := actual.GetByIndex(i)
		assert.True(t, expectedValue.Equal(actualValue), "event %d: expected %s, got %s",
			i, expectedValue, actualValue)
	}
}
