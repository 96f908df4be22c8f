package ldstoreimpl

import (
	"github.com/launchdarkly/go-server-sdk-core/subsystems"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// NewBigSegmentMembershipFromSegmentRefs creates a BigSegmentMembership based on the specified
// lists of included and excluded segment references. This is intended to be used by Big Segment
// store implementations; application code does not need to use it.
//
// As described in subsystems.BigSegmentMembership, an inclusion takes priority over an exclusion
// for the same segment reference.
func NewBigSegmentMembershipFromSegmentRefs(
	includedSegmentRefs []string,
	excludedSegmentRefs []string,
) subsystems.BigSegmentMembership {
	membership := bigSegmentMembershipMapImpl{}
	for _, excluded := range excludedSegmentRefs {
		membership[excluded] = false
	}
	for _, included := range includedSegmentRefs {
		membership[included] = true
	}
	return membership
}

type bigSegmentMembershipMapImpl map[string]bool

func (m bigSegmentMembershipMapImpl) CheckMembership(segmentRef string) ldvalue.OptionalBool {
	if value, ok := m[segmentRef]; ok {
		return ldvalue.NewOptionalBool(value)
	}
	return ldvalue.OptionalBool{}
}
