package evaluation

import (
	"fmt"
	"strings"

	"github.com/launchdarkly/go-server-sdk-core/evaluation/ldbuilders"
	"github.com/launchdarkly/go-server-sdk-core/ldmodel"

	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldreason"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

var flagTestContext = ldcontext.New("userkey") //nolint:gochecknoglobals

var fallthroughValue = ldvalue.String("fall") //nolint:gochecknoglobals
var offValue = ldvalue.String("off")          //nolint:gochecknoglobals
var onValue = ldvalue.String("on")            //nolint:gochecknoglobals

// basicDataProvider is a DataProvider implementation based on maps.
type basicDataProvider struct {
	flags    map[string]*ldmodel.FeatureFlag
	segments map[string]*ldmodel.Segment
}

func basicDataProviderWithFlags(flags ...ldmodel.FeatureFlag) *basicDataProvider {
	return (&basicDataProvider{}).withFlags(flags...)
}

func basicDataProviderWithSegments(segments ...ldmodel.Segment) *basicDataProvider {
	return (&basicDataProvider{}).withSegments(segments...)
}

func (d *basicDataProvider) withFlags(flags ...ldmodel.FeatureFlag) *basicDataProvider {
	if d.flags == nil {
		d.flags = make(map[string]*ldmodel.FeatureFlag, len(flags))
	}
	for i := range flags {
		d.flags[flags[i].Key] = &flags[i]
	}
	return d
}

func (d *basicDataProvider) withSegments(segments ...ldmodel.Segment) *basicDataProvider {
	if d.segments == nil {
		d.segments = make(map[string]*ldmodel.Segment, len(segments))
	}
	for i := range segments {
		d.segments[segments[i].Key] = &segments[i]
	}
	return d
}

func (d *basicDataProvider) GetFeatureFlag(key string) *ldmodel.FeatureFlag {
	return d.flags[key]
}

func (d *basicDataProvider) GetSegment(key string) *ldmodel.Segment {
	return d.segments[key]
}

// mockBigSegmentProvider is a BigSegmentProvider implementation that records its queries.
type mockBigSegmentProvider struct {
	status            ldreason.BigSegmentsStatus
	statusForKey      map[string]ldreason.BigSegmentsStatus
	memberships       map[string]*mockBigSegmentMembership
	membershipQueries []string
}

type mockBigSegmentMembership struct {
	checks map[string]ldvalue.OptionalBool
}

func bigSegmentsProvider() *mockBigSegmentProvider {
	return &mockBigSegmentProvider{status: ldreason.BigSegmentsHealthy}
}

func (m *mockBigSegmentProvider) GetMembership(
	contextKey string,
) (BigSegmentMembership, ldreason.BigSegmentsStatus) {
	m.membershipQueries = append(m.membershipQueries, contextKey)
	status := m.status
	if s, ok := m.statusForKey[contextKey]; ok {
		status = s
	}
	// Don't return m.memberships[contextKey] directly: a nil *mockBigSegmentMembership must
	// become a nil interface value, not an interface wrapping a nil pointer.
	if membership := m.memberships[contextKey]; membership != nil {
		return membership, status
	}
	return nil, status
}

func (m *mockBigSegmentProvider) withStatus(status ldreason.BigSegmentsStatus) *mockBigSegmentProvider {
	m.status = status
	return m
}

func (m *mockBigSegmentProvider) withStatusForKey(
	contextKey string,
	status ldreason.BigSegmentsStatus,
) *mockBigSegmentProvider {
	if m.statusForKey == nil {
		m.statusForKey = make(map[string]ldreason.BigSegmentsStatus)
	}
	m.statusForKey[contextKey] = status
	return m
}

func (m *mockBigSegmentProvider) withMembership(
	contextKey string,
	segment *ldmodel.Segment,
	included ldvalue.OptionalBool,
) *mockBigSegmentProvider {
	if m.memberships == nil {
		m.memberships = make(map[string]*mockBigSegmentMembership)
	}
	membership := m.memberships[contextKey]
	if membership == nil {
		membership = &mockBigSegmentMembership{checks: make(map[string]ldvalue.OptionalBool)}
		m.memberships[contextKey] = membership
	}
	membership.checks[makeBigSegmentRef(segment)] = included
	return m
}

func (m *mockBigSegmentMembership) CheckMembership(segmentRef string) ldvalue.OptionalBool {
	return m.checks[segmentRef]
}

// capturingLogger implements ldlog.BaseLogger for testing error output.
type capturingLogger struct {
	output []string
}

func (l *capturingLogger) Println(values ...interface{}) {
	l.output = append(l.output, strings.TrimSuffix(fmt.Sprintln(values...), "\n"))
}

func (l *capturingLogger) Printf(format string, values ...interface{}) {
	l.output = append(l.output, fmt.Sprintf(format, values...))
}

func booleanFlagWithClause(clause ldmodel.Clause) ldmodel.FeatureFlag {
	return ldbuilders.NewFlagBuilder("feature").
		On(true).
		AddRule(ldbuilders.NewRuleBuilder().ID("rule-id").Clauses(clause).Variation(1)).
		FallthroughVariation(0).
		Variations(ldvalue.Bool(false), ldvalue.Bool(true)).
		Build()
}

func makeBooleanFlagToMatchAnyOfSegments(segmentKeys ...string) ldmodel.FeatureFlag {
	return booleanFlagWithClause(ldbuilders.SegmentMatchClause(segmentKeys...))
}
