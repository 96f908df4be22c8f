package ldevents

import (
	"encoding/json"

	"github.com/launchdarkly/go-sdk-common/v3/ldmigration"
	"github.com/launchdarkly/go-sdk-common/v3/ldreason"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Event kind strings, as they appear in the JSON event schema.
const (
	// FeatureRequestEventKind is the kind of a full evaluation event.
	FeatureRequestEventKind = "feature"
	// FeatureDebugEventKind is the kind of a debug copy of an evaluation event.
	FeatureDebugEventKind = "debug"
	// CustomEventKind is the kind of a custom event.
	CustomEventKind = "custom"
	// IdentifyEventKind is the kind of an identify event.
	IdentifyEventKind = "identify"
	// IndexEventKind is the kind of an index event, generated by the event processor for any
	// context that has not been seen recently.
	IndexEventKind = "index"
	// SummaryEventKind is the kind of the evaluation summary event for a flush interval.
	SummaryEventKind = "summary"
	// MigrationOpEventKind is the kind of a migration operation event.
	MigrationOpEventKind = "migration_op"
)

// BaseEvent provides properties common to all events.
type BaseEvent struct {
	CreationDate ldtime.UnixMillisecondTime
	Context      EventInputContext
}

// EvaluationData is generated by calling one of the SDK's evaluation methods.
type EvaluationData struct {
	BaseEvent
	// Key is the flag key.
	Key string
	// Variation is the result variation index. It is empty if evaluation failed.
	Variation ldvalue.OptionalInt
	// Value is the result value.
	Value ldvalue.Value
	// Default is the default value that was passed in by the application.
	Default ldvalue.Value
	// Version is the flag version. It is empty if the flag was not found.
	Version ldvalue.OptionalInt
	// PrereqOf is normally empty, but if this evaluation was done for a prerequisite, it is the key of the
	// original key that referenced this flag as a prerequisite.
	PrereqOf ldvalue.OptionalString
	// Reason is the evaluation reason, if the reason should be included in the event, or empty otherwise.
	Reason ldreason.EvaluationReason
	// RequireFullEvent is true if an individual evaluation event should be included in the output event data,
	// or false if this evaluation should only produce summary data (and potentially a debug event).
	RequireFullEvent bool
	// DebugEventsUntilDate is non-zero if event debugging has been temporarily enabled for the flag. It is the
	// time at which debugging mode should expire.
	DebugEventsUntilDate ldtime.UnixMillisecondTime
	// ExcludeFromSummaries is true if the event evaluation took place with a flag that should not be included
	// in the summary event payload, and should instead only generate full fidelity events.
	ExcludeFromSummaries bool
	// SamplingRatio determines the 1 in x chance the event will be sampled. An empty ratio is treated as 1.
	SamplingRatio ldvalue.OptionalInt
	// debug is true if this is a copy of an evaluation event that we have queued to be output as a debug
	// event. This field is not exported because it is never part of the parameters that the caller passes in;
	// it is set only by the event processor.
	debug bool
}

// CustomEventData is generated by calling the SDK's Track methods.
type CustomEventData struct {
	BaseEvent
	Key         string
	Data        ldvalue.Value
	HasMetric   bool
	MetricValue float64
	// SamplingRatio determines the 1 in x chance the event will be sampled. An empty ratio is treated as 1.
	SamplingRatio ldvalue.OptionalInt
}

// IdentifyEventData is generated by calling the SDK's Identify method.
type IdentifyEventData struct {
	BaseEvent
	// SamplingRatio determines the 1 in x chance the event will be sampled. An empty ratio is treated as 1.
	SamplingRatio ldvalue.OptionalInt
}

// MigrationOpEventData is generated through the migration op tracker.
type MigrationOpEventData struct {
	BaseEvent
	Op               ldmigration.Operation
	FlagKey          string
	Version          ldvalue.OptionalInt
	Default          ldmigration.Stage
	Evaluation       ldreason.EvaluationDetail
	SamplingRatio    ldvalue.OptionalInt
	ConsistencyCheck *ldmigration.ConsistencyCheck
	Error            map[ldmigration.Origin]struct{}
	Latency          map[ldmigration.Origin]int // measured in milliseconds
	Invoked          map[ldmigration.Origin]struct{}
}

// indexEvent is generated internally to capture a context that may be referenced repeatedly by the
// keys of subsequent evaluation or custom events.
type indexEvent struct {
	BaseEvent
}

// rawEvent is a preformatted JSON event passed to RecordRawEvent; it is copied into the output
// payload without further processing.
type rawEvent struct {
	data json.RawMessage
}

// anyEventInput and anyEventOutput both refer to one of the event types in this package, but
// distinguish between the stages of processing: inputs are what the Record methods accept, and
// outputs are what the outbox accumulates for the formatter (which adds indexEvent, debug copies
// of EvaluationData, and rawEvent to the set).
type anyEventInput interface{}
type anyEventOutput interface{}
