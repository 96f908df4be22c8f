package ldmodel

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldattr"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// FeatureFlag describes an individual feature flag.
//
// The fields of this struct are exported for use by LaunchDarkly internal components. Application
// code should normally not reference FeatureFlag fields directly; flag data is normally obtained
// in JSON form from LaunchDarkly endpoints and deserialized using the functions in this package.
type FeatureFlag struct {
	// Key is the unique string key of the feature flag.
	Key string
	// On is true if targeting is turned on for this flag.
	//
	// If On is false, the evaluator always uses OffVariation and ignores all other fields.
	On bool
	// Prerequisites is a list of feature flag conditions that are prerequisites for this flag.
	//
	// If any prerequisite is not met, the flag behaves as if targeting is turned off.
	Prerequisites []Prerequisite
	// Targets contains sets of individually targeted context keys for the default context kind
	// ("user"). Non-default kinds are covered by ContextTargets.
	//
	// Targets take precedence over Rules: if a context is matched by any Target, the Rules are
	// ignored. Targets are ignored if targeting is turned off.
	Targets []Target
	// ContextTargets contains sets of individually targeted context keys for specific context kinds.
	//
	// A ContextTargets entry for the default kind may have an empty Values list; in that case the
	// evaluator uses the key list of the Targets entry with the same variation, preserving the
	// evaluation order defined by ContextTargets.
	ContextTargets []Target
	// Rules is a list of rules that may match a context.
	//
	// If a context is matched by a Rule, all subsequent Rules in the list are skipped. Rules are
	// ignored if targeting is turned off.
	Rules []FlagRule
	// Fallthrough defines the flag's behavior if targeting is turned on but the context is not
	// matched by any Target or Rule.
	Fallthrough VariationOrRollout
	// OffVariation specifies the variation index to use if targeting is turned off.
	//
	// If this is undefined (ldvalue.OptionalInt{}), the evaluation result has an undefined
	// variation index and a value of ldvalue.Null().
	OffVariation ldvalue.OptionalInt
	// Variations is the list of all allowable variations for this flag. The variation index in a
	// Target or Rule is a zero-based index into this list.
	Variations []ldvalue.Value
	// ClientSideAvailability indicates whether a flag is available using each of the client-side
	// authentication methods.
	ClientSideAvailability ClientSideAvailability
	// Salt is a randomized value assigned to this flag when it is created.
	//
	// The hash function used for calculating percentage rollouts uses this as a salt to ensure
	// that rollouts are consistent within each flag but not predictable from one flag to another.
	Salt string
	// TrackEvents is used internally by the SDK analytics event system.
	//
	// True if the LaunchDarkly account has turned on full event tracking for this flag, telling
	// the SDK to send individual event data for each evaluation rather than only summary counts.
	// The evaluation engine itself does not implement that behavior; the field is in the data
	// model for use by the event components.
	TrackEvents bool
	// TrackEventsFallthrough is like TrackEvents but applies only to fallthrough evaluations,
	// when the flag is part of an experiment with its default rule enabled.
	TrackEventsFallthrough bool
	// DebugEventsUntilDate is used internally by the SDK analytics event system.
	//
	// Non-zero if event debugging was turned on temporarily for this flag, in which case it is
	// the Unix millisecond time at which debugging expires.
	DebugEventsUntilDate ldtime.UnixMillisecondTime
	// Version is an integer that is incremented by LaunchDarkly every time the configuration of
	// the flag is changed.
	Version int
	// Deleted is true if this is not actually a feature flag but a placeholder (tombstone) for a
	// deleted flag. This is only relevant in data store implementations. The SDK does not evaluate
	// deleted flags.
	Deleted bool
	// Migration holds migration-related flag parameters. It is non-nil if and only if this flag
	// is used for migrations.
	Migration *MigrationFlagParameters
	// SamplingRatio controls the rate at which feature and debug events are emitted for this
	// flag. If undefined it is assumed to be 1. Non-positive values disable emission entirely.
	SamplingRatio ldvalue.OptionalInt
	// ExcludeFromSummaries is true if evaluations of this flag should be left out of the event
	// summarization process.
	ExcludeFromSummaries bool
}

// MigrationFlagParameters are migration-related flag parameters.
type MigrationFlagParameters struct {
	// CheckRatio controls the rate at which consistency checks are performed during a
	// migration-influenced read or write operation.
	CheckRatio ldvalue.OptionalInt
}

// FlagRule describes a single rule within a feature flag.
//
// A rule consists of a set of ANDed matching conditions (Clause) for a context, along with either
// a fixed variation or a set of rollout percentages to use if the context matches all of the
// clauses.
type FlagRule struct {
	// VariationOrRollout properties for a FlagRule define what variation to return if the context
	// matches this rule.
	VariationOrRollout
	// ID is a randomized identifier assigned to each rule when it is created.
	//
	// This is used to populate the RuleID property of ldreason.EvaluationReason.
	ID string
	// Clauses is a list of test conditions that make up the rule. These are ANDed: every Clause
	// must match in order for the FlagRule to match.
	Clauses []Clause
	// TrackEvents is used internally by the SDK analytics event system.
	//
	// True if the flag is part of an experiment with this rule enabled, telling the SDK to send
	// individual event data for any evaluation that matched this rule.
	TrackEvents bool
}

// RolloutKind describes whether a rollout is a simple percentage rollout or represents an
// experiment. Experiments have different behavior for tracking and variation bucketing.
type RolloutKind string

const (
	// RolloutKindRollout represents a simple percentage rollout. This is the default kind and is
	// assumed if not otherwise specified.
	RolloutKindRollout RolloutKind = "rollout"
	// RolloutKindExperiment represents an experiment.
	RolloutKindExperiment RolloutKind = "experiment"
)

// VariationOrRollout describes either a fixed variation or a percentage rollout.
//
// There is a VariationOrRollout in every FlagRule, and one in FeatureFlag.Fallthrough which is
// used if no rules match.
//
// Invariant: one of the variation or rollout must be defined.
type VariationOrRollout struct {
	// Variation specifies the index of the variation to return. It is undefined
	// (ldvalue.OptionalInt{}) if no specific variation is defined.
	Variation ldvalue.OptionalInt
	// Rollout specifies a percentage rollout to be used instead of a specific variation. A rollout
	// is only defined if it has a non-empty Variations list.
	Rollout Rollout
}

// Rollout describes how contexts will be bucketed into variations during a percentage rollout.
type Rollout struct {
	// Kind specifies whether this rollout is a simple percentage rollout or represents an
	// experiment.
	Kind RolloutKind
	// ContextKind is the context kind that this rollout will use to get any necessary context
	// attributes.
	//
	// An empty string value here represents the property being unset, and is treated the same as
	// ldcontext.DefaultKind.
	ContextKind ldcontext.Kind
	// Variations is a list of the variations in the percentage rollout and what percentage of
	// contexts to include in each.
	//
	// The Weight values of all elements in this list should add up to 100000 (100%). If they add
	// up to less, the last element in the list behaves as if it includes the leftover percentage.
	Variations []WeightedVariation
	// BucketBy specifies which context attribute should be used to distinguish between contexts in
	// a rollout. This is ignored for experiments.
	//
	// The default (when BucketBy is an empty ldattr.Ref{}) is the context's primary key.
	BucketBy ldattr.Ref
	// Seed, if present, specifies the seed for the hashing algorithm this rollout will use to
	// bucket contexts, so that rollouts with the same Seed assign the same contexts to the same
	// buckets. If unspecified, the seed defaults to a combination of the flag key and the
	// flag-level Salt.
	Seed ldvalue.OptionalInt
}

// IsExperiment returns whether this rollout represents an experiment.
func (r Rollout) IsExperiment() bool {
	return r.Kind == RolloutKindExperiment
}

// Clause describes an individual clause within a FlagRule or SegmentRule.
type Clause struct {
	// ContextKind is the context kind that this clause applies to.
	//
	// An empty string value here represents the property being unset, and is treated the same as
	// ldcontext.DefaultKind.
	//
	// If the value of Attribute is "kind", then ContextKind is ignored, because the nature of the
	// context kind test is described in a richer way by Operator and Values.
	ContextKind ldcontext.Kind
	// Attribute specifies the context attribute that is being tested.
	//
	// This is required for all Operator types except SegmentMatch. If Op is OperatorSegmentMatch
	// then Attribute is ignored (and will normally be an empty ldattr.Ref{}).
	//
	// If the context's value for this attribute is a JSON array, then the test specified in the
	// Clause is repeated for each value in the array until a match is found or there are no more
	// values.
	Attribute ldattr.Ref
	// Op specifies the type of test to perform.
	Op Operator
	// Values is a list of values to be compared to the context attribute.
	//
	// This is interpreted as an OR: if the context attribute matches any of these values with the
	// specified operator, the Clause matches.
	//
	// In the special case where Op is OperatorSegmentMatch, each value is a string which is the
	// key of a segment.
	//
	// If the context does not have a value for the specified attribute, the Values are ignored and
	// the Clause is always treated as a non-match.
	Values []ldvalue.Value
	// Negate is true if the specified Operator should be inverted.
	//
	// For instance, this would cause OperatorIn to mean "not equal" rather than "equal". Note that
	// if no tests are performed for this Clause because the context has no value for the specified
	// attribute, then Negate does not come into effect (the Clause is just a non-match).
	Negate bool
	// preprocessed is created by PreprocessFlag() or PreprocessSegment() to speed up clause
	// evaluation in scenarios like regex matching.
	preprocessed clausePreprocessedData
}

// WeightedVariation describes a fraction of contexts that will receive a specific variation.
type WeightedVariation struct {
	// Variation is the index of the variation to be returned if the context is in this bucket.
	// This is always a real variation index; it cannot be undefined.
	Variation int
	// Weight is the proportion of contexts that should go into this bucket, as an integer from 0
	// to 100000.
	Weight int
	// Untracked means that contexts allocated to this variation should not have tracking events
	// sent.
	Untracked bool
}

// Target describes a set of contexts that will receive a specific variation.
type Target struct {
	// ContextKind is the context kind that this target list applies to.
	//
	// An empty string value here represents the property being unset, and is treated the same as
	// ldcontext.DefaultKind.
	ContextKind ldcontext.Kind
	// Values is the set of context keys included in this Target.
	Values []string
	// Variation is the index of the variation to be returned if the context key matches one of
	// these keys. This is always a real variation index; it cannot be undefined.
	Variation int
	// preprocessed is created by PreprocessFlag() to speed up target matching.
	preprocessed targetPreprocessedData
}

// Prerequisite describes a requirement that another feature flag return a specific variation.
//
// A prerequisite condition is met if the specified prerequisite flag has targeting turned on and
// returns the specified variation.
type Prerequisite struct {
	// Key is the unique key of the feature flag to be evaluated as a prerequisite.
	Key string
	// Variation is the index of the variation that the prerequisite flag must return in order for
	// the prerequisite condition to be met. If the prerequisite flag has targeting turned on, then
	// the condition is not met even if the flag's OffVariation matches this value.
	Variation int
}

// ClientSideAvailability describes whether a flag is available to client-side SDKs.
//
// This field can be used by a server-side client to determine whether to include an individual
// flag in bootstrapped set of flag data (see
// https://docs.launchdarkly.com/sdk/client-side/javascript#bootstrapping).
type ClientSideAvailability struct {
	// UsingMobileKey indicates that this flag is available to clients using the mobile key for
	// authorization (includes most desktop and mobile clients).
	UsingMobileKey bool
	// UsingEnvironmentID indicates that this flag is available to clients using the environment
	// id to identify an environment (includes client-side javascript clients).
	UsingEnvironmentID bool
	// Explicit is true if, when serializing this flag, all of the ClientSideAvailability
	// properties should be included. If it is false, then an older schema is used in which this
	// object is entirely omitted, UsingEnvironmentID is stored in a deprecated property, and
	// UsingMobileKey is assumed to be true.
	//
	// This field exists to ensure that flag representations remain consistent when sent and
	// received, even though the clientSideAvailability property may not be present in the JSON
	// data. It is false if the flag was deserialized from an older JSON schema that did not
	// include that property.
	Explicit bool
}
