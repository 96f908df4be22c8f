package ldmodel

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldattr"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Segment describes a group of contexts based on context keys and/or matching rules.
type Segment struct {
	// Key is the unique key of the segment.
	Key string
	// Included is a list of context keys of the default kind ("user") that are always matched by
	// this segment. Non-default kinds are covered by IncludedContexts.
	Included []string
	// Excluded is a list of context keys of the default kind ("user") that are never matched by
	// this segment. Exclusion takes precedence over inclusion: a key that appears in both lists is
	// not matched.
	Excluded []string
	// IncludedContexts contains sets of individually included contexts for specific context kinds.
	//
	// For backward compatibility, the targeting lists are divided up as follows: for the default
	// kind ("user") the keys are listed in Included, and for all other context kinds in
	// IncludedContexts.
	IncludedContexts []SegmentTarget
	// ExcludedContexts contains sets of individually excluded contexts for specific context kinds,
	// divided up in the same way as IncludedContexts.
	ExcludedContexts []SegmentTarget
	// Salt is a randomized value assigned to this segment when it is created.
	//
	// The hash function used for calculating percentage rollouts uses this as a salt to ensure
	// that rollouts are consistent within each segment but not predictable from one segment to
	// another.
	Salt string
	// Rules is a list of rules that may match a context.
	//
	// If a context is matched by a Rule, all subsequent Rules in the list are skipped. Rules are
	// ignored if the context's key was matched by Included, Excluded, IncludedContexts, or
	// ExcludedContexts.
	Rules []SegmentRule
	// Unbounded is true if this is a segment whose included/excluded key lists are stored
	// separately and are not limited in size.
	//
	// The name is historical: "unbounded segments" was an earlier name for the product feature
	// that is currently known as "big segments". If Unbounded is true, this is a big segment.
	Unbounded bool
	// UnboundedContextKind is the context kind associated with the separately stored key lists if
	// this segment is a big segment. If it is empty, ldcontext.DefaultKind is assumed. This field
	// is ignored if Unbounded is false.
	UnboundedContextKind ldcontext.Kind
	// Version is an integer that is incremented by LaunchDarkly every time the configuration of
	// the segment is changed.
	Version int
	// Generation is an integer that indicates which set of big segment data is currently active
	// for this segment key. LaunchDarkly increments it if a segment is deleted and recreated. The
	// value is only meaningful for big segments. If the field is unset, the segment representation
	// used an older schema, so the generation is unknown, in which case matching a big segment is
	// not possible.
	Generation ldvalue.OptionalInt
	// Deleted is true if this is not actually a segment but a placeholder (tombstone) for a
	// deleted segment. This is only relevant in data store implementations.
	Deleted bool
	// preprocessed is created by PreprocessSegment() to speed up matching.
	preprocessed segmentPreprocessedData
}

// SegmentTarget describes a target list within a segment, for a specific context kind.
type SegmentTarget struct {
	// ContextKind is the context kind that this target list applies to.
	//
	// An empty string value here represents the property being unset, and is treated the same as
	// ldcontext.DefaultKind.
	ContextKind ldcontext.Kind
	// Values is the set of context keys in this target list.
	Values []string
	// preprocessed is created by PreprocessSegment() to speed up matching.
	preprocessed targetPreprocessedData
}

// SegmentRule describes a single rule within a segment.
type SegmentRule struct {
	// ID is a randomized identifier assigned to each rule when it is created.
	ID string
	// Clauses is a list of test conditions that make up the rule. These are ANDed: every Clause
	// must match in order for the SegmentRule to match.
	Clauses []Clause
	// Weight, if defined, specifies a percentage rollout in which only a subset of contexts
	// matching this rule are included in the segment. This is specified as an integer from 0 (0%)
	// to 100000 (100%).
	Weight ldvalue.OptionalInt
	// BucketBy specifies which context attribute should be used to distinguish between contexts
	// in a rollout. This property is ignored if Weight is undefined.
	//
	// The default (when BucketBy is an empty ldattr.Ref{}) is the context's primary key.
	BucketBy ldattr.Ref
	// RolloutContextKind specifies what kind of context the key (or other attribute if BucketBy is
	// set) should be taken from when computing a rollout. This property is ignored if Weight is
	// undefined. If unset, it defaults to ldcontext.DefaultKind.
	RolloutContextKind ldcontext.Kind
}
