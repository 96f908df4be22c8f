package evaluation

import (
	"testing"

	"github.com/launchdarkly/go-server-sdk-core/evaluation/ldbuilders"
	"github.com/launchdarkly/go-server-sdk-core/ldmodel"

	"github.com/launchdarkly/go-sdk-common/v3/ldattr"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldreason"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertSegmentMatch(
	t *testing.T,
	evaluator Evaluator,
	flag ldmodel.FeatureFlag,
	context ldcontext.Context,
	expected bool,
) {
	t.Helper()
	result := evaluator.Evaluate(&flag, context, nil)
	assert.Equal(t, ldvalue.Bool(expected), result.Detail.Value)
}

func TestSegmentMatchClauseRetrievesSegmentFromStore(t *testing.T) {
	segment := ldbuilders.NewSegmentBuilder("segkey").Included("foo").Build()
	f := makeBooleanFlagToMatchAnyOfSegments("segkey")
	evaluator := NewEvaluator(basicDataProviderWithSegments(segment))

	assertSegmentMatch(t, evaluator, f, ldcontext.New("foo"), true)
	assertSegmentMatch(t, evaluator, f, ldcontext.New("bar"), false)
}

func TestSegmentMatchClauseFallsThroughIfSegmentNotFound(t *testing.T) {
	f := makeBooleanFlagToMatchAnyOfSegments("segkey")
	evaluator := NewEvaluator(basicDataProviderWithSegments())

	assertSegmentMatch(t, evaluator, f, ldcontext.New("foo"), false)
}

func TestCanMatchJustOneSegmentFromList(t *testing.T) {
	segment := ldbuilders.NewSegmentBuilder("segkey").Included("foo").Build()
	f := makeBooleanFlagToMatchAnyOfSegments("unknownsegkey", "segkey")
	evaluator := NewEvaluator(basicDataProviderWithSegments(segment))

	assertSegmentMatch(t, evaluator, f, ldcontext.New("foo"), true)
}

func TestSegmentMatchClauseCanBeNegated(t *testing.T) {
	segment := ldbuilders.NewSegmentBuilder("segkey").Included("foo").Build()
	f := booleanFlagWithClause(ldbuilders.Negate(ldbuilders.SegmentMatchClause("segkey")))
	evaluator := NewEvaluator(basicDataProviderWithSegments(segment))

	assertSegmentMatch(t, evaluator, f, ldcontext.New("foo"), false)
	assertSegmentMatch(t, evaluator, f, ldcontext.New("bar"), true)
}

func TestSegmentMatchesContextFromIncludedContextsForKind(t *testing.T) {
	segment := ldbuilders.NewSegmentBuilder("segkey").IncludedContextKind("org", "foo").Build()
	f := makeBooleanFlagToMatchAnyOfSegments("segkey")
	evaluator := NewEvaluator(basicDataProviderWithSegments(segment))

	assertSegmentMatch(t, evaluator, f, ldcontext.NewWithKind("org", "foo"), true)
	assertSegmentMatch(t, evaluator, f, ldcontext.New("foo"), false) // the default kind is not "org"
}

func TestSegmentExcludedKeyOverridesIncludedKey(t *testing.T) {
	segment := ldbuilders.NewSegmentBuilder("segkey").Included("foo").Excluded("foo").Build()
	f := makeBooleanFlagToMatchAnyOfSegments("segkey")
	evaluator := NewEvaluator(basicDataProviderWithSegments(segment))

	assertSegmentMatch(t, evaluator, f, ldcontext.New("foo"), false)
}

func TestSegmentExcludedContextsOverrideInclusionForKind(t *testing.T) {
	segment := ldbuilders.NewSegmentBuilder("segkey").
		IncludedContextKind("org", "foo").
		ExcludedContextKind("org", "foo").
		Build()
	f := makeBooleanFlagToMatchAnyOfSegments("segkey")
	evaluator := NewEvaluator(basicDataProviderWithSegments(segment))

	assertSegmentMatch(t, evaluator, f, ldcontext.NewWithKind("org", "foo"), false)
}

func TestSegmentExcludedKeyOverridesRuleMatch(t *testing.T) {
	segment := ldbuilders.NewSegmentBuilder("segkey").
		Excluded("foo").
		AddRule(ldbuilders.NewSegmentRuleBuilder().
			Clauses(ldbuilders.Clause(ldattr.KeyAttr, ldmodel.OperatorIn, ldvalue.String("foo")))).
		Build()
	f := makeBooleanFlagToMatchAnyOfSegments("segkey")
	evaluator := NewEvaluator(basicDataProviderWithSegments(segment))

	assertSegmentMatch(t, evaluator, f, ldcontext.New("foo"), false)
}

func TestSegmentIncludedKeyIsMatchedEvenIfRulesDoNotMatch(t *testing.T) {
	segment := ldbuilders.NewSegmentBuilder("segkey").
		Included("foo").
		AddRule(ldbuilders.NewSegmentRuleBuilder().
			Clauses(ldbuilders.Clause(ldattr.KeyAttr, ldmodel.OperatorIn, ldvalue.String("someoneElse")))).
		Build()
	f := makeBooleanFlagToMatchAnyOfSegments("segkey")
	evaluator := NewEvaluator(basicDataProviderWithSegments(segment))

	assertSegmentMatch(t, evaluator, f, ldcontext.New("foo"), true)
}

func TestSegmentRuleMatchesContextWithMatchingClauses(t *testing.T) {
	segment := ldbuilders.NewSegmentBuilder("segkey").
		AddRule(ldbuilders.NewSegmentRuleBuilder().
			Clauses(
				ldbuilders.Clause("email", ldmodel.OperatorIn, ldvalue.String("test@example.com")),
				ldbuilders.Clause("name", ldmodel.OperatorIn, ldvalue.String("bob")),
			)).
		Build()
	f := makeBooleanFlagToMatchAnyOfSegments("segkey")
	evaluator := NewEvaluator(basicDataProviderWithSegments(segment))

	matchingContext := ldcontext.NewBuilder("foo").
		SetValue("email", ldvalue.String("test@example.com")).
		Name("bob").
		Build()
	assertSegmentMatch(t, evaluator, f, matchingContext, true)

	partialContext := ldcontext.NewBuilder("foo").
		SetValue("email", ldvalue.String("test@example.com")).
		Build()
	assertSegmentMatch(t, evaluator, f, partialContext, false)
}

func TestSegmentRuleCanMatchContextWithPercentageRollout(t *testing.T) {
	// the bucket value for this segment key, salt, and context key is 0.42157587
	segment := ldbuilders.NewSegmentBuilder("hashKey").
		Salt("saltyA").
		AddRule(ldbuilders.NewSegmentRuleBuilder().
			Clauses(ldbuilders.Clause("name", ldmodel.OperatorIn, ldvalue.String("bob"))).
			Weight(42158)).
		Build()
	f := makeBooleanFlagToMatchAnyOfSegments("hashKey")
	evaluator := NewEvaluator(basicDataProviderWithSegments(segment))

	context := ldcontext.NewBuilder("userKeyA").Name("bob").Build()
	assertSegmentMatch(t, evaluator, f, context, true)
}

func TestSegmentRuleCanNotMatchContextWithPercentageRollout(t *testing.T) {
	segment := ldbuilders.NewSegmentBuilder("hashKey").
		Salt("saltyA").
		AddRule(ldbuilders.NewSegmentRuleBuilder().
			Clauses(ldbuilders.Clause("name", ldmodel.OperatorIn, ldvalue.String("bob"))).
			Weight(42157)).
		Build()
	f := makeBooleanFlagToMatchAnyOfSegments("hashKey")
	evaluator := NewEvaluator(basicDataProviderWithSegments(segment))

	context := ldcontext.NewBuilder("userKeyA").Name("bob").Build()
	assertSegmentMatch(t, evaluator, f, context, false)
}

func TestSegmentRuleRolloutWithMissingContextKindBucketsToZero(t *testing.T) {
	// When the kind that the rule buckets by is not in the context, the bucket value is zero,
	// which is within any nonzero weight and outside a zero weight.
	makeSegment := func(weight int) ldmodel.Segment {
		return ldbuilders.NewSegmentBuilder("segkey").
			Salt("salty").
			AddRule(ldbuilders.NewSegmentRuleBuilder().
				Weight(weight).
				RolloutContextKind("org")).
			Build()
	}
	f := makeBooleanFlagToMatchAnyOfSegments("segkey")

	evaluator := NewEvaluator(basicDataProviderWithSegments(makeSegment(1)))
	assertSegmentMatch(t, evaluator, f, flagTestContext, true)

	evaluator = NewEvaluator(basicDataProviderWithSegments(makeSegment(0)))
	assertSegmentMatch(t, evaluator, f, flagTestContext, false)
}

func TestSegmentReferencingSegmentIsMatched(t *testing.T) {
	segment1 := ldbuilders.NewSegmentBuilder("segment1").
		AddRule(ldbuilders.NewSegmentRuleBuilder().
			Clauses(ldbuilders.SegmentMatchClause("segment2"))).
		Build()
	segment2 := ldbuilders.NewSegmentBuilder("segment2").Included("foo").Build()
	f := makeBooleanFlagToMatchAnyOfSegments("segment1")
	evaluator := NewEvaluator(basicDataProviderWithSegments(segment1, segment2))

	assertSegmentMatch(t, evaluator, f, ldcontext.New("foo"), true)
	assertSegmentMatch(t, evaluator, f, ldcontext.New("bar"), false)
}

func TestSegmentCycleIsTreatedAsNonMatch(t *testing.T) {
	segment1 := ldbuilders.NewSegmentBuilder("segment1").
		AddRule(ldbuilders.NewSegmentRuleBuilder().
			Clauses(ldbuilders.SegmentMatchClause("segment2"))).
		Build()
	segment2 := ldbuilders.NewSegmentBuilder("segment2").
		AddRule(ldbuilders.NewSegmentRuleBuilder().
			Clauses(ldbuilders.SegmentMatchClause("segment1"))).
		Build()
	f := makeBooleanFlagToMatchAnyOfSegments("segment1")
	evaluator := NewEvaluator(basicDataProviderWithSegments(segment1, segment2))

	// The inner reference back to segment1 is a non-match rather than an error, so the
	// evaluation still completes normally.
	result := evaluator.Evaluate(&f, ldcontext.New("foo"), nil)
	assert.Equal(t, ldreason.NewEvaluationDetail(ldvalue.Bool(false), 0,
		ldreason.NewEvalReasonFallthrough()), result.Detail)
}

func TestSegmentReferencingItselfIsTreatedAsNonMatch(t *testing.T) {
	segment := ldbuilders.NewSegmentBuilder("segment1").
		AddRule(ldbuilders.NewSegmentRuleBuilder().
			Clauses(ldbuilders.SegmentMatchClause("segment1"))).
		Build()
	f := makeBooleanFlagToMatchAnyOfSegments("segment1")
	evaluator := NewEvaluator(basicDataProviderWithSegments(segment))

	result := evaluator.Evaluate(&f, ldcontext.New("foo"), nil)
	assert.Equal(t, ldreason.NewEvaluationDetail(ldvalue.Bool(false), 0,
		ldreason.NewEvalReasonFallthrough()), result.Detail)
}

func TestBigSegmentWithNoProviderIsNotMatched(t *testing.T) {
	segment := ldbuilders.NewSegmentBuilder("segkey").
		Unbounded(true).
		Generation(2).
		Build()
	f := makeBooleanFlagToMatchAnyOfSegments("segkey")
	evaluator := NewEvaluator(basicDataProviderWithSegments(segment)) // no big segment provider

	result := evaluator.Evaluate(&f, flagTestContext, nil)
	assert.Equal(t, ldvalue.Bool(false), result.Detail.Value)
	assert.Equal(t, ldreason.BigSegmentsNotConfigured, result.Detail.Reason.GetBigSegmentsStatus())
}

func TestBigSegmentWithNoGenerationIsNotMatched(t *testing.T) {
	logger := &capturingLogger{}
	segment1 := ldbuilders.NewSegmentBuilder("segkey1").Unbounded(true).Build()
	segment2 := ldbuilders.NewSegmentBuilder("segkey2").Unbounded(true).Build()
	f := makeBooleanFlagToMatchAnyOfSegments("segkey1", "segkey2")
	provider := bigSegmentsProvider()
	evaluator := NewEvaluatorWithOptions(basicDataProviderWithSegments(segment1, segment2),
		EvaluatorOptionBigSegmentProvider(provider),
		EvaluatorOptionErrorLogger(logger))

	result := evaluator.Evaluate(&f, flagTestContext, nil)
	assert.Equal(t, ldvalue.Bool(false), result.Detail.Value)

	// this is a data problem, not a store outage, so no big segments status is reported
	assert.Equal(t, ldreason.BigSegmentsStatus(""), result.Detail.Reason.GetBigSegmentsStatus())
	assert.Empty(t, provider.membershipQueries)

	// the problem is logged only once per evaluation, no matter how many such segments there are
	require.Len(t, logger.output, 1)
	assert.Contains(t, logger.output[0], `"segkey1"`)
	assert.Contains(t, logger.output[0], "no generation")
}

func TestBigSegmentIsMatchedWithMembership(t *testing.T) {
	segment := ldbuilders.NewSegmentBuilder("segkey").
		Unbounded(true).
		Generation(2).
		Build()
	f := makeBooleanFlagToMatchAnyOfSegments("segkey")
	provider := bigSegmentsProvider().
		withMembership(flagTestContext.Key(), &segment, ldvalue.NewOptionalBool(true))
	evaluator := NewEvaluatorWithOptions(basicDataProviderWithSegments(segment),
		EvaluatorOptionBigSegmentProvider(provider))

	result := evaluator.Evaluate(&f, flagTestContext, nil)
	assert.Equal(t, ldvalue.Bool(true), result.Detail.Value)
	assert.Equal(t, ldreason.BigSegmentsHealthy, result.Detail.Reason.GetBigSegmentsStatus())
	assert.Equal(t, []string{flagTestContext.Key()}, provider.membershipQueries)
}

func TestBigSegmentIsNotMatchedWhenMembershipSaysExcluded(t *testing.T) {
	segment := ldbuilders.NewSegmentBuilder("segkey").
		Unbounded(true).
		Generation(2).
		Build()
	f := makeBooleanFlagToMatchAnyOfSegments("segkey")
	provider := bigSegmentsProvider().
		withMembership(flagTestContext.Key(), &segment, ldvalue.NewOptionalBool(false))
	evaluator := NewEvaluatorWithOptions(basicDataProviderWithSegments(segment),
		EvaluatorOptionBigSegmentProvider(provider))

	result := evaluator.Evaluate(&f, flagTestContext, nil)
	assert.Equal(t, ldvalue.Bool(false), result.Detail.Value)
	assert.Equal(t, ldreason.BigSegmentsHealthy, result.Detail.Reason.GetBigSegmentsStatus())
}

func TestBigSegmentWithUndefinedMembershipIsNotMatched(t *testing.T) {
	// When the membership data has no answer for this segment, the context is not in the
	// segment; the segment's own rules are not consulted.
	segment := ldbuilders.NewSegmentBuilder("segkey").
		Unbounded(true).
		Generation(2).
		AddRule(ldbuilders.NewSegmentRuleBuilder().
			Clauses(ldbuilders.Clause(ldattr.KeyAttr, ldmodel.OperatorIn, ldvalue.String(flagTestContext.Key())))).
		Build()
	f := makeBooleanFlagToMatchAnyOfSegments("segkey")
	provider := bigSegmentsProvider() // has no membership data at all
	evaluator := NewEvaluatorWithOptions(basicDataProviderWithSegments(segment),
		EvaluatorOptionBigSegmentProvider(provider))

	result := evaluator.Evaluate(&f, flagTestContext, nil)
	assert.Equal(t, ldvalue.Bool(false), result.Detail.Value)
	assert.Equal(t, ldreason.BigSegmentsHealthy, result.Detail.Reason.GetBigSegmentsStatus())
	assert.Equal(t, []string{flagTestContext.Key()}, provider.membershipQueries)
}

func TestBigSegmentStatusIsReflectedInReason(t *testing.T) {
	segment := ldbuilders.NewSegmentBuilder("segkey").
		Unbounded(true).
		Generation(2).
		Build()
	f := makeBooleanFlagToMatchAnyOfSegments("segkey")
	provider := bigSegmentsProvider().
		withStatus(ldreason.BigSegmentsStale).
		withMembership(flagTestContext.Key(), &segment, ldvalue.NewOptionalBool(true))
	evaluator := NewEvaluatorWithOptions(basicDataProviderWithSegments(segment),
		EvaluatorOptionBigSegmentProvider(provider))

	result := evaluator.Evaluate(&f, flagTestContext, nil)
	assert.Equal(t, ldvalue.Bool(true), result.Detail.Value)
	assert.Equal(t, ldreason.BigSegmentsStale, result.Detail.Reason.GetBigSegmentsStatus())
}

func TestBigSegmentStatusIsLeastFavorableAcrossSegments(t *testing.T) {
	segment1 := ldbuilders.NewSegmentBuilder("seg1").
		Unbounded(true).
		Generation(1).
		Build()
	segment2 := ldbuilders.NewSegmentBuilder("seg2").
		Unbounded(true).
		UnboundedContextKind("org").
		Generation(1).
		Build()
	f := ldbuilders.NewFlagBuilder("feature").
		On(true).
		AddRule(ldbuilders.NewRuleBuilder().ID("rule0").
			Clauses(ldbuilders.SegmentMatchClause("seg1")).Variation(1)).
		AddRule(ldbuilders.NewRuleBuilder().ID("rule1").
			Clauses(ldbuilders.SegmentMatchClause("seg2")).Variation(1)).
		FallthroughVariation(0).
		Variations(ldvalue.Bool(false), ldvalue.Bool(true)).
		Build()

	multi := ldcontext.NewMulti(ldcontext.New("userkey"), ldcontext.NewWithKind("org", "orgkey"))
	provider := bigSegmentsProvider().
		withStatusForKey("userkey", ldreason.BigSegmentsHealthy).
		withStatusForKey("orgkey", ldreason.BigSegmentsStoreError).
		withMembership("orgkey", &segment2, ldvalue.NewOptionalBool(true))
	evaluator := NewEvaluatorWithOptions(basicDataProviderWithSegments(segment1, segment2),
		EvaluatorOptionBigSegmentProvider(provider))

	result := evaluator.Evaluate(&f, multi, nil)
	assert.Equal(t, ldvalue.Bool(true), result.Detail.Value)
	assert.Equal(t, ldreason.BigSegmentsStoreError, result.Detail.Reason.GetBigSegmentsStatus())
	assert.Equal(t, []string{"userkey", "orgkey"}, provider.membershipQueries)
}

func TestBigSegmentMembershipIsQueriedOnlyOncePerContextKey(t *testing.T) {
	segment1 := ldbuilders.NewSegmentBuilder("seg1").
		Unbounded(true).
		Generation(1).
		Build()
	segment2 := ldbuilders.NewSegmentBuilder("seg2").
		Unbounded(true).
		Generation(2).
		Build()
	f := ldbuilders.NewFlagBuilder("feature").
		On(true).
		AddRule(ldbuilders.NewRuleBuilder().ID("rule0").
			Clauses(ldbuilders.SegmentMatchClause("seg1")).Variation(1)).
		AddRule(ldbuilders.NewRuleBuilder().ID("rule1").
			Clauses(ldbuilders.SegmentMatchClause("seg2")).Variation(1)).
		FallthroughVariation(0).
		Variations(ldvalue.Bool(false), ldvalue.Bool(true)).
		Build()

	provider := bigSegmentsProvider().
		withMembership(flagTestContext.Key(), &segment2, ldvalue.NewOptionalBool(true))
	evaluator := NewEvaluatorWithOptions(basicDataProviderWithSegments(segment1, segment2),
		EvaluatorOptionBigSegmentProvider(provider))

	result := evaluator.Evaluate(&f, flagTestContext, nil)
	assert.Equal(t, ldvalue.Bool(true), result.Detail.Value)
	assert.Equal(t, []string{flagTestContext.Key()}, provider.membershipQueries)
}

func TestBigSegmentUsesUnboundedContextKind(t *testing.T) {
	segment := ldbuilders.NewSegmentBuilder("segkey").
		Unbounded(true).
		UnboundedContextKind("org").
		Generation(2).
		Build()
	f := makeBooleanFlagToMatchAnyOfSegments("segkey")
	provider := bigSegmentsProvider().
		withMembership("orgkey", &segment, ldvalue.NewOptionalBool(true))
	evaluator := NewEvaluatorWithOptions(basicDataProviderWithSegments(segment),
		EvaluatorOptionBigSegmentProvider(provider))

	multi := ldcontext.NewMulti(ldcontext.New("userkey"), ldcontext.NewWithKind("org", "orgkey"))
	result := evaluator.Evaluate(&f, multi, nil)
	assert.Equal(t, ldvalue.Bool(true), result.Detail.Value)
	assert.Equal(t, []string{"orgkey"}, provider.membershipQueries)

	// a context without the segment's kind is not queried and not matched
	result = evaluator.Evaluate(&f, flagTestContext, nil)
	assert.Equal(t, ldvalue.Bool(false), result.Detail.Value)
	assert.Equal(t, ldreason.BigSegmentsStatus(""), result.Detail.Reason.GetBigSegmentsStatus())
	assert.Equal(t, []string{"orgkey"}, provider.membershipQueries) // unchanged
}

func TestBigSegmentExcludedKeyAppliesBeforeMembershipCheck(t *testing.T) {
	segment := ldbuilders.NewSegmentBuilder("segkey").
		Unbounded(true).
		Generation(2).
		Excluded(flagTestContext.Key()).
		Build()
	f := makeBooleanFlagToMatchAnyOfSegments("segkey")
	provider := bigSegmentsProvider().
		withMembership(flagTestContext.Key(), &segment, ldvalue.NewOptionalBool(true))
	evaluator := NewEvaluatorWithOptions(basicDataProviderWithSegments(segment),
		EvaluatorOptionBigSegmentProvider(provider))

	result := evaluator.Evaluate(&f, flagTestContext, nil)
	assert.Equal(t, ldvalue.Bool(false), result.Detail.Value)
	assert.Empty(t, provider.membershipQueries)
	assert.Equal(t, ldreason.BigSegmentsStatus(""), result.Detail.Reason.GetBigSegmentsStatus())
}
