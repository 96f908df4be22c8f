package ldevents

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Manages the state of summarizable information for the EventProcessor. Note that the
// methods for this type are deliberately not thread-safe, because they should always be
// called from EventProcessor's single event-processing goroutine.
type eventSummarizer struct {
	eventsState eventSummary
}

type eventSummary struct {
	counters     map[counterKey]*counterValue
	contextKinds map[string]map[ldcontext.Kind]struct{}
	startDate    ldtime.UnixMillisecondTime
	endDate      ldtime.UnixMillisecondTime
}

// The variation and version are optional values so that a flag-not-found evaluation, which
// has neither, is counted separately from an evaluation of version 0 or variation 0.
type counterKey struct {
	key       string
	variation ldvalue.OptionalInt
	version   ldvalue.OptionalInt
}

type counterValue struct {
	count       int
	flagValue   ldvalue.Value
	flagDefault ldvalue.Value
}

func newEventSummarizer() eventSummarizer {
	return eventSummarizer{eventsState: newEventSummary()}
}

func newEventSummary() eventSummary {
	return eventSummary{
		counters:     make(map[counterKey]*counterValue),
		contextKinds: make(map[string]map[ldcontext.Kind]struct{}),
	}
}

func (s eventSummary) hasCounters() bool {
	return len(s.counters) != 0
}

// Adds this event to our counters.
func (s *eventSummarizer) summarizeEvent(evt EvaluationData) {
	key := counterKey{key: evt.Key, variation: evt.Variation, version: evt.Version}

	if value, ok := s.eventsState.counters[key]; ok {
		value.count++
	} else {
		s.eventsState.counters[key] = &counterValue{
			count:       1,
			flagValue:   evt.Value,
			flagDefault: evt.Default,
		}
	}

	kinds := s.eventsState.contextKinds[evt.Key]
	if kinds == nil {
		kinds = make(map[ldcontext.Kind]struct{})
		s.eventsState.contextKinds[evt.Key] = kinds
	}
	context := &evt.Context.context
	for i := 0; i < context.IndividualContextCount(); i++ {
		if individual := context.IndividualContextByIndex(i); individual.IsDefined() {
			kinds[individual.Kind()] = struct{}{}
		}
	}

	creationDate := evt.CreationDate
	if s.eventsState.startDate == 0 || creationDate < s.eventsState.startDate {
		s.eventsState.startDate = creationDate
	}
	if creationDate > s.eventsState.endDate {
		s.eventsState.endDate = creationDate
	}
}

// Returns a snapshot of the current summarized event data. The state is not cleared; the
// dispatcher resets it only after the snapshot has been handed off to a flush worker.
func (s *eventSummarizer) snapshot() eventSummary {
	return s.eventsState
}

func (s *eventSummarizer) reset() {
	s.eventsState = newEventSummary()
}
