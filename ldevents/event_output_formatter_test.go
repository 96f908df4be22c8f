package ldevents

import (
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldmigration"
	"github.com/launchdarkly/go-sdk-common/v3/ldreason"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeOutputEventsReturnsNothingForEmptyInput(t *testing.T) {
	formatter := newEventOutputFormatter(EventsConfiguration{})
	data, count := formatter.makeOutputEvents(nil, newEventSummary())
	assert.Nil(t, data)
	assert.Equal(t, 0, count)
}

func TestOutputFeatureEventAllProperties(t *testing.T) {
	formatter := newEventOutputFormatter(EventsConfiguration{})

	e := basicEvaluationData(testFlagKey)
	e.PrereqOf = ldvalue.NewOptionalString("parent-flag")
	e.Reason = ldreason.NewEvalReasonFallthrough()
	e.SamplingRatio = ldvalue.NewOptionalInt(2)

	data, count := formatter.makeOutputEvents([]anyEventOutput{e}, newEventSummary())
	assert.Equal(t, 1, count)
	assertEventsMatch(t, data,
		`{"kind":"feature","creationDate":100000,"key":"flagkey","contextKeys":{"user":"userkey"},
			"version":11,"variation":1,"value":"v","default":"d","prereqOf":"parent-flag",
			"reason":{"kind":"FALLTHROUGH"},"samplingRatio":2}`,
	)
}

func TestOutputFeatureEventOmitsOptionalProperties(t *testing.T) {
	formatter := newEventOutputFormatter(EventsConfiguration{})

	e := EvaluationData{
		BaseEvent: BaseEvent{CreationDate: fakeTimeNow, Context: basicContext()},
		Key:       testFlagKey,
		Value:     ldvalue.String("d"),
		Default:   ldvalue.String("d"),
	}

	data, _ := formatter.makeOutputEvents([]anyEventOutput{e}, newEventSummary())
	assertEventsMatch(t, data,
		`{"kind":"feature","creationDate":100000,"key":"flagkey","contextKeys":{"user":"userkey"},
			"value":"d","default":"d"}`,
	)
}

func TestOutputDebugEventHasFullContext(t *testing.T) {
	formatter := newEventOutputFormatter(EventsConfiguration{})

	e := basicEvaluationData(testFlagKey)
	e.debug = true

	data, _ := formatter.makeOutputEvents([]anyEventOutput{e}, newEventSummary())
	assertEventsMatch(t, data,
		`{"kind":"debug","creationDate":100000,"key":"flagkey","context":{"kind":"user","key":"userkey"},
			"version":11,"variation":1,"value":"v","default":"d"}`,
	)
}

func TestOutputEventsApplyPrivateAttributeRedaction(t *testing.T) {
	config := EventsConfiguration{AllAttributesPrivate: true}
	formatter := newEventOutputFormatter(config)

	e := indexEvent{BaseEvent{CreationDate: fakeTimeNow, Context: basicContext()}}
	data, _ := formatter.makeOutputEvents([]anyEventOutput{e}, newEventSummary())

	parsed := ldvalue.Parse(data).GetByIndex(0)
	assert.Equal(t, "index", parsed.GetByKey("kind").StringValue())
	assert.Equal(t, "userkey", parsed.GetByKey("context").GetByKey("key").StringValue())
}

func TestOutputMigrationOpEventAllMeasurements(t *testing.T) {
	formatter := newEventOutputFormatter(EventsConfiguration{})

	e := MigrationOpEventData{
		BaseEvent: BaseEvent{CreationDate: fakeTimeNow, Context: basicContext()},
		Op:        ldmigration.Write,
		FlagKey:   testFlagKey,
		Version:   ldvalue.NewOptionalInt(11),
		Default:   ldmigration.DualWrite,
		Evaluation: ldreason.NewEvaluationDetail(ldvalue.String("live"), 1,
			ldreason.NewEvalReasonFallthrough()),
		SamplingRatio:    ldvalue.NewOptionalInt(3),
		ConsistencyCheck: ldmigration.NewConsistencyCheck(true, 5),
		Invoked: map[ldmigration.Origin]struct{}{
			ldmigration.Old: {}, ldmigration.New: {},
		},
		Latency: map[ldmigration.Origin]int{ldmigration.Old: 100, ldmigration.New: 50},
		Error:   map[ldmigration.Origin]struct{}{ldmigration.New: {}},
	}

	data, count := formatter.makeOutputEvents([]anyEventOutput{e}, newEventSummary())
	assert.Equal(t, 1, count)

	parsed := ldvalue.Parse(data).GetByIndex(0)
	assert.Equal(t, "migration_op", parsed.GetByKey("kind").StringValue())
	assert.Equal(t, "write", parsed.GetByKey("operation").StringValue())
	assert.Equal(t, 3, parsed.GetByKey("samplingRatio").IntValue())

	expectedEvaluation := ldvalue.Parse([]byte(
		`{"key":"flagkey","version":11,"variation":1,"value":"live","default":"dualwrite",
			"reason":{"kind":"FALLTHROUGH"}}`))
	assert.True(t, expectedEvaluation.Equal(parsed.GetByKey("evaluation")),
		"unexpected evaluation: %s", parsed.GetByKey("evaluation"))

	measurements := parsed.GetByKey("measurements")
	require.Equal(t, ldvalue.ArrayType, measurements.Type())
	byKey := make(map[string]ldvalue.Value)
	for i := 0; i < measurements.Count(); i++ {
		m := measurements.GetByIndex(i)
		byKey[m.GetByKey("key").StringValue()] = m
	}
	require.Len(t, byKey, 4)

	expectedInvoked := ldvalue.Parse([]byte(`{"key":"invoked","values":{"old":true,"new":true}}`))
	assert.True(t, expectedInvoked.Equal(byKey["invoked"]), "unexpected invoked: %s", byKey["invoked"])

	expectedConsistent := ldvalue.Parse([]byte(`{"key":"consistent","value":true,"samplingRatio":5}`))
	assert.True(t, expectedConsistent.Equal(byKey["consistent"]), "unexpected consistent: %s", byKey["consistent"])

	expectedLatency := ldvalue.Parse([]byte(`{"key":"latency_ms","values":{"old":100,"new":50}}`))
	assert.True(t, expectedLatency.Equal(byKey["latency_ms"]), "unexpected latency: %s", byKey["latency_ms"])

	expectedError := ldvalue.Parse([]byte(`{"key":"error","values":{"new":true}}`))
	assert.True(t, expectedError.Equal(byKey["error"]), "unexpected error: %s", byKey["error"])
}

func TestOutputMigrationOpEventOmitsEmptyMeasurements(t *testing.T) {
	formatter := newEventOutputFormatter(EventsConfiguration{})

	e := MigrationOpEventData{
		BaseEvent:  BaseEvent{CreationDate: fakeTimeNow, Context: basicContext()},
		Op:         ldmigration.Read,
		FlagKey:    testFlagKey,
		Default:    ldmigration.Off,
		Evaluation: ldreason.EvaluationDetail{Value: ldvalue.String("off")},
		Invoked:    map[ldmigration.Origin]struct{}{ldmigration.Old: {}},
	}

	data, _ := formatter.makeOutputEvents([]anyEventOutput{e}, newEventSummary())
	assertEventsMatch(t, data,
		`{"kind":"migration_op","creationDate":100000,"operation":"read",
			"contextKeys":{"user":"userkey"},
			"evaluation":{"key":"flagkey","value":"off","default":"off"},
			"measurements":[{"key":"invoked","values":{"old":true}}]}`,
	)
}

func TestOutputSummaryEvent(t *testing.T) {
	formatter := newEventOutputFormatter(EventsConfiguration{})

	s := newEventSummarizer()
	e1 := basicEvaluationData("flag1")
	e1.CreationDate = 1000
	s.summarizeEvent(e1)
	e2 := basicEvaluationData("flag1")
	e2.CreationDate = 2000
	s.summarizeEvent(e2)
	unknown := EvaluationData{
		BaseEvent: BaseEvent{CreationDate: 1500, Context: basicContext()},
		Key:       "flag2",
		Value:     ldvalue.String("d2"),
		Default:   ldvalue.String("d2"),
	}
	s.summarizeEvent(unknown)

	data, count := formatter.makeOutputEvents(nil, s.snapshot())
	assert.Equal(t, 1, count)
	assertEventsMatch(t, data,
		`{"kind":"summary","startDate":1000,"endDate":2000,"features":{
			"flag1":{"default":"d","contextKinds":["user"],
				"counters":[{"variation":1,"version":11,"value":"v","count":2}]},
			"flag2":{"default":"d2","contextKinds":["user"],
				"counters":[{"unknown":true,"value":"d2","count":1}]}}}`,
	)
}

func TestOutputSummaryEventGroupsCountersByFlag(t *testing.T) {
	formatter := newEventOutputFormatter(EventsConfiguration{})

	s := newEventSummarizer()
	e1 := basicEvaluationData("flag1")
	s.summarizeEvent(e1)
	e2 := basicEvaluationData("flag1")
	e2.Variation = ldvalue.NewOptionalInt(2)
	e2.Value = ldvalue.String("other")
	s.summarizeEvent(e2)

	data, _ := formatter.makeOutputEvents(nil, s.snapshot())

	parsed := ldvalue.Parse(data).GetByIndex(0)
	counters := parsed.GetByKey("features").GetByKey("flag1").GetByKey("counters")
	require.Equal(t, ldvalue.ArrayType, counters.Type())
	require.Equal(t, 2, counters.Count())

	countByVariation := make(map[int]int)
	for i := 0; i < counters.Count(); i++ {
		c := counters.GetByIndex(i)
		countByVariation[c.GetByKey("variation").IntValue()] = c.GetByKey("count").IntValue()
	}
	assert.Equal(t, map[int]int{1: 1, 2: 1}, countByVariation)
}
