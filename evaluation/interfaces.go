package evaluation

import (
	"github.com/launchdarkly/go-server-sdk-core/ldmodel"

	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldreason"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Evaluator is the engine for evaluating feature flags.
type Evaluator interface {
	// Evaluate evaluates a feature flag for the specified context.
	//
	// The flag is passed by reference only for efficiency; the evaluator will never modify any
	// flag properties. Passing a nil flag will result in a panic.
	//
	// The evaluator does not know anything about analytics events; generating any appropriate
	// analytics events is the responsibility of the caller, who can also provide a callback in
	// prerequisiteFlagEventRecorder to be notified if any additional evaluations were done due to
	// prerequisites. The prerequisiteFlagEventRecorder parameter can be nil if you do not need to
	// track prerequisite evaluations.
	Evaluate(
		flag *ldmodel.FeatureFlag,
		context ldcontext.Context,
		prerequisiteFlagEventRecorder PrerequisiteFlagEventRecorder,
	) Result
}

// Result is the result of an evaluation.
type Result struct {
	// Detail contains the evaluation detail fields: the value, the variation index, and the
	// reason for the result.
	Detail ldreason.EvaluationDetail

	// IsExperiment is true if this evaluation result was determined by an experiment rollout,
	// meaning that the application should treat it as part of an experiment regardless of the
	// flag's regular event tracking settings.
	IsExperiment bool
}

// PrerequisiteFlagEventRecorder is a function that Evaluator.Evaluate() will call to record the
// result of a prerequisite flag evaluation.
type PrerequisiteFlagEventRecorder func(PrerequisiteFlagEvent)

// PrerequisiteFlagEvent is the parameter data passed to PrerequisiteFlagEventRecorder.
type PrerequisiteFlagEvent struct {
	// TargetFlagKey is the key of the feature flag that had a prerequisite.
	TargetFlagKey string
	// Context is the context that the flag was evaluated for. We pass this back to the caller,
	// even though the caller already passed it to us in the Evaluate parameters, so that the
	// caller can provide a stateless function for PrerequisiteFlagEventRecorder rather than a
	// closure (since closures are less efficient).
	Context ldcontext.Context
	// PrerequisiteFlag is the full configuration of the prerequisite flag. We need to pass the
	// full flag here rather than just the key because the flag's properties (such as TrackEvents)
	// can affect how events are generated. This is passed by reference for efficiency only, and
	// will never be nil; the PrerequisiteFlagEventRecorder must not modify the flag's properties.
	PrerequisiteFlag *ldmodel.FeatureFlag
	// PrerequisiteResult is the result of evaluating the prerequisite flag.
	PrerequisiteResult Result
}

// DataProvider is an abstraction for querying feature flags and segments from a data store.
// The caller provides an implementation of this interface to NewEvaluator.
//
// Flags and segments are returned by reference for efficiency only (on the assumption that the
// caller already has these objects in memory); the evaluator will never modify their properties.
type DataProvider interface {
	// GetFeatureFlag attempts to retrieve a feature flag from the data store by key.
	//
	// The evaluator calls this method if a flag contains a prerequisite condition referencing
	// another flag.
	//
	// The method returns nil if the flag was not found. The DataProvider should treat any deleted
	// flag as "not found" even if the data store contains a deleted flag placeholder for it.
	GetFeatureFlag(key string) *ldmodel.FeatureFlag

	// GetSegment attempts to retrieve a segment from the data store by key.
	//
	// The evaluator calls this method if a clause in a flag rule or segment rule uses the
	// OperatorSegmentMatch test.
	//
	// The method returns nil if the segment was not found. The DataProvider should treat any
	// deleted segment as "not found" even if the data store contains a deleted segment
	// placeholder for it.
	GetSegment(key string) *ldmodel.Segment
}

// BigSegmentProvider is an abstraction for querying big segment membership, provided to the
// evaluator with EvaluatorOptionBigSegmentProvider.
//
// The SDK's big segment store wrapper implements this interface; it is responsible for hashing
// the context key, caching query results, and reporting the status of the underlying store.
type BigSegmentProvider interface {
	// GetMembership queries the membership state for a context key.
	//
	// The key is the plain (unhashed) key of the individual context that the big segment applies
	// to. A single evaluation will call this at most once per context key, even if it references
	// multiple big segments.
	//
	// The returned membership can be nil if no data was available; the status tells the evaluator
	// how much to trust the result.
	GetMembership(contextKey string) (BigSegmentMembership, ldreason.BigSegmentsStatus)
}

// BigSegmentMembership is the return type of BigSegmentProvider.GetMembership(), describing
// which big segments a specific context key is included in or excluded from.
type BigSegmentMembership interface {
	// CheckMembership tests whether the context key is explicitly included or excluded in the
	// specified big segment. The segmentRef parameter is the identifier produced from the
	// segment's key and generation, not the segment key by itself.
	//
	// The return value is undefined (ldvalue.OptionalBool{}) if the membership data has no
	// explicit answer for this segment.
	CheckMembership(segmentRef string) ldvalue.OptionalBool
}
