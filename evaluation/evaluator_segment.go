package evaluation

import (
	"fmt"

	"github.com/launchdarkly/go-server-sdk-core/ldmodel"

	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldreason"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

func (es *evaluationScope) segmentContainsContext(s *ldmodel.Segment, stack *evaluationStack) (bool, error) {
	// A segment rule can reference another segment, so we have to guard against cycles. Seeing
	// the same segment again is a data error; the inner reference is treated as a non-match so
	// that the evaluation can still complete.
	for _, visitedKey := range stack.segmentChain {
		if visitedKey == s.Key {
			return false, nil
		}
	}

	// Explicit exclusion takes precedence over inclusion. For both, the kind-qualified lists are
	// consulted before the default-kind key lists.
	for i := range s.ExcludedContexts {
		if es.segmentTargetContainsContext(&s.ExcludedContexts[i]) {
			return false, nil
		}
	}
	if defaultKindContext := es.context.IndividualContextByKind(ldcontext.DefaultKind); defaultKindContext.IsDefined() {
		if ldmodel.SegmentExcludesKey(s, defaultKindContext.Key()) {
			return false, nil
		}
	}

	for i := range s.IncludedContexts {
		if es.segmentTargetContainsContext(&s.IncludedContexts[i]) {
			return true, nil
		}
	}
	if defaultKindContext := es.context.IndividualContextByKind(ldcontext.DefaultKind); defaultKindContext.IsDefined() {
		if ldmodel.SegmentIncludesKey(s, defaultKindContext.Key()) {
			return true, nil
		}
	}

	if s.Unbounded {
		// A big segment has no rules; its members are listed only in the big segment store.
		return es.bigSegmentContainsContext(s), nil
	}

	if len(s.Rules) == 0 {
		return false, nil
	}

	stack.segmentChain = append(stack.segmentChain, s.Key)
	defer func() {
		stack.segmentChain = stack.segmentChain[:len(stack.segmentChain)-1]
	}()

	for i := range s.Rules {
		match, err := es.segmentRuleMatchesContext(&s.Rules[i], stack, s.Key, s.Salt)
		if match || err != nil {
			return match, err
		}
	}
	return false, nil
}

func (es *evaluationScope) segmentTargetContainsContext(t *ldmodel.SegmentTarget) bool {
	kind := t.ContextKind
	if kind == "" {
		kind = ldcontext.DefaultKind
	}
	if individual := es.context.IndividualContextByKind(kind); individual.IsDefined() {
		return ldmodel.SegmentTargetContainsKey(t, individual.Key())
	}
	return false
}

func (es *evaluationScope) segmentRuleMatchesContext(
	r *ldmodel.SegmentRule,
	stack *evaluationStack,
	key, salt string,
) (bool, error) {
	// Note that r is passed by reference only for efficiency; we do not modify it
	for i := range r.Clauses {
		match, err := es.clauseMatchesContext(&r.Clauses[i], stack)
		if !match || err != nil {
			return false, err
		}
	}

	// If the weight is absent, this rule matches
	if !r.Weight.IsDefined() {
		return true, nil
	}

	// All of the clauses are met. Check to see if the context buckets in
	bucket, _ := es.computeBucketValue(false, ldvalue.OptionalInt{}, r.RolloutContextKind, key,
		r.BucketBy, salt)
	weight := float32(r.Weight.IntValue()) / 100000.0
	return bucket < weight, nil
}

func (es *evaluationScope) bigSegmentContainsContext(s *ldmodel.Segment) bool {
	if !s.Generation.IsDefined() {
		// Big segment data in a valid environment always has a generation. Without one we cannot
		// construct the membership key, so the segment can never match. This is a data problem
		// rather than a store outage, so the big segments status of the evaluation is unchanged.
		if !es.loggedMissingSegmentGeneration {
			es.loggedMissingSegmentGeneration = true
			if es.owner.errorLogger != nil {
				es.owner.errorLogger.Printf(
					"Big segment %q has no generation; this segment cannot be evaluated", s.Key)
			}
		}
		return false
	}

	kind := s.UnboundedContextKind
	if kind == "" {
		kind = ldcontext.DefaultKind
	}
	individual := es.context.IndividualContextByKind(kind)
	if !individual.IsDefined() {
		return false
	}
	contextKey := individual.Key()

	membership, haveMembership := es.bigSegmentsMemberships[contextKey]
	if !haveMembership {
		var status ldreason.BigSegmentsStatus
		if es.owner.bigSegmentProvider == nil {
			// A nil provider means the SDK was not configured to use big segments
			status = ldreason.BigSegmentsNotConfigured
		} else {
			// Even when an evaluation references multiple big segments, we query the provider at
			// most once per context key; one query returns all of the memberships for that key.
			membership, status = es.owner.bigSegmentProvider.GetMembership(contextKey)
			if es.bigSegmentsMemberships == nil {
				es.bigSegmentsMemberships = make(map[string]BigSegmentMembership)
			}
			es.bigSegmentsMemberships[contextKey] = membership
		}
		es.rememberBigSegmentsStatus(status)
	}
	es.bigSegmentsReferenced = true

	if membership == nil {
		return false
	}
	// An undefined membership answer means the context is not in the segment; there is no
	// fallback for big segments.
	return membership.CheckMembership(makeBigSegmentRef(s)).BoolValue()
}

// rememberBigSegmentsStatus records the status of a big segment query, keeping the least
// favorable status seen during the evaluation so far.
func (es *evaluationScope) rememberBigSegmentsStatus(status ldreason.BigSegmentsStatus) {
	if bigSegmentsStatusPriority(status) > bigSegmentsStatusPriority(es.bigSegmentsStatus) {
		es.bigSegmentsStatus = status
	}
}

func bigSegmentsStatusPriority(status ldreason.BigSegmentsStatus) int {
	switch status {
	case ldreason.BigSegmentsHealthy:
		return 1
	case ldreason.BigSegmentsStale:
		return 2
	case ldreason.BigSegmentsStoreError:
		return 3
	case ldreason.BigSegmentsNotConfigured:
		return 4
	default:
		return 0
	}
}

// makeBigSegmentRef produces the key that identifies a big segment in membership data. The
// generation is part of the key so that membership data written for an earlier generation of
// the segment is never used.
func makeBigSegmentRef(s *ldmodel.Segment) string {
	return fmt.Sprintf("%s.%d", s.Key, s.Generation.IntValue())
}
