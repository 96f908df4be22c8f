package ldbuilders

import (
	"github.com/launchdarkly/go-server-sdk-core/ldmodel"

	"github.com/launchdarkly/go-sdk-common/v3/ldattr"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// SegmentBuilder provides a builder pattern for Segment.
type SegmentBuilder struct {
	segment ldmodel.Segment
}

// SegmentRuleBuilder provides a builder pattern for SegmentRule.
type SegmentRuleBuilder struct {
	rule ldmodel.SegmentRule
}

// NewSegmentBuilder creates a SegmentBuilder.
func NewSegmentBuilder(key string) *SegmentBuilder {
	return &SegmentBuilder{ldmodel.Segment{Key: key}}
}

// Build returns the configured Segment, with any precomputed evaluation data attached.
func (b *SegmentBuilder) Build() ldmodel.Segment {
	s := b.segment
	ldmodel.PreprocessSegment(&s)
	return s
}

// AddRule adds a rule to the segment.
func (b *SegmentBuilder) AddRule(r *SegmentRuleBuilder) *SegmentBuilder {
	b.segment.Rules = append(b.segment.Rules, r.Build())
	return b
}

// Excluded sets the segment's Excluded list, which applies to the default context kind.
func (b *SegmentBuilder) Excluded(keys ...string) *SegmentBuilder {
	b.segment.Excluded = keys
	return b
}

// Included sets the segment's Included list, which applies to the default context kind.
func (b *SegmentBuilder) Included(keys ...string) *SegmentBuilder {
	b.segment.Included = keys
	return b
}

// ExcludedContextKind adds a kind-qualified exclusion list to the segment.
func (b *SegmentBuilder) ExcludedContextKind(kind ldcontext.Kind, keys ...string) *SegmentBuilder {
	b.segment.ExcludedContexts = append(b.segment.ExcludedContexts,
		ldmodel.SegmentTarget{ContextKind: kind, Values: keys})
	return b
}

// IncludedContextKind adds a kind-qualified inclusion list to the segment.
func (b *SegmentBuilder) IncludedContextKind(kind ldcontext.Kind, keys ...string) *SegmentBuilder {
	b.segment.IncludedContexts = append(b.segment.IncludedContexts,
		ldmodel.SegmentTarget{ContextKind: kind, Values: keys})
	return b
}

// Generation sets the segment's Generation property.
func (b *SegmentBuilder) Generation(value int) *SegmentBuilder {
	b.segment.Generation = ldvalue.NewOptionalInt(value)
	return b
}

// Salt sets the segment's Salt property.
func (b *SegmentBuilder) Salt(value string) *SegmentBuilder {
	b.segment.Salt = value
	return b
}

// Unbounded sets whether the segment is a big segment, whose membership is stored externally.
func (b *SegmentBuilder) Unbounded(value bool) *SegmentBuilder {
	b.segment.Unbounded = value
	return b
}

// UnboundedContextKind sets the context kind that a big segment's membership applies to.
func (b *SegmentBuilder) UnboundedContextKind(kind ldcontext.Kind) *SegmentBuilder {
	b.segment.UnboundedContextKind = kind
	return b
}

// Version sets the segment's Version property.
func (b *SegmentBuilder) Version(value int) *SegmentBuilder {
	b.segment.Version = value
	return b
}

// NewSegmentRuleBuilder creates a SegmentRuleBuilder.
func NewSegmentRuleBuilder() *SegmentRuleBuilder {
	return &SegmentRuleBuilder{}
}

// Build returns the configured SegmentRule.
func (b *SegmentRuleBuilder) Build() ldmodel.SegmentRule {
	return b.rule
}

// BucketBy sets the rule's BucketBy property as a plain attribute name.
func (b *SegmentRuleBuilder) BucketBy(attribute string) *SegmentRuleBuilder {
	if attribute == "" {
		b.rule.BucketBy = ldattr.Ref{}
	} else {
		b.rule.BucketBy = ldattr.NewLiteralRef(attribute)
	}
	return b
}

// BucketByRef sets the rule's BucketBy property as a preparsed attribute reference.
func (b *SegmentRuleBuilder) BucketByRef(attrRef ldattr.Ref) *SegmentRuleBuilder {
	b.rule.BucketBy = attrRef
	return b
}

// Clauses sets the rule's list of clauses.
func (b *SegmentRuleBuilder) Clauses(clauses ...ldmodel.Clause) *SegmentRuleBuilder {
	b.rule.Clauses = clauses
	return b
}

// ID sets the rule's ID property.
func (b *SegmentRuleBuilder) ID(id string) *SegmentRuleBuilder {
	b.rule.ID = id
	return b
}

// RolloutContextKind sets the context kind used for the rule's weight bucketing.
func (b *SegmentRuleBuilder) RolloutContextKind(kind ldcontext.Kind) *SegmentRuleBuilder {
	b.rule.RolloutContextKind = kind
	return b
}

// Weight sets the rule's Weight property. A negative value leaves it unspecified, meaning the
// rule matches any context that its clauses match.
func (b *SegmentRuleBuilder) Weight(value int) *SegmentRuleBuilder {
	if value < 0 {
		b.rule.Weight = ldvalue.OptionalInt{}
	} else {
		b.rule.Weight = ldvalue.NewOptionalInt(value)
	}
	return b
}
