package ldevents

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/launchdarkly/go-server-sdk-core/ldmodel"

	"github.com/launchdarkly/go-sdk-common/v3/ldmigration"
	"github.com/launchdarkly/go-sdk-common/v3/ldreason"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// MigrationOpTracker accumulates measurements for a single migration operation: which origins
// were invoked, how long they took, whether they failed, and optionally whether their results
// were consistent. When the operation is finished, Build converts the measurements into a
// MigrationOpEventData that can be passed to EventProcessor.RecordMigrationOpEvent.
//
// The tracker is safe for concurrent use, since the old and new implementations of a migrated
// operation may run in parallel.
type MigrationOpTracker struct {
	flagKey          string
	flag             *ldmodel.FeatureFlag
	context          EventInputContext
	detail           ldreason.EvaluationDetail
	defaultStage     ldmigration.Stage
	op               *ldmigration.Operation
	invoked          map[ldmigration.Origin]struct{}
	consistencyCheck *ldmigration.ConsistencyCheck
	errors           map[ldmigration.Origin]struct{}
	latencies        map[ldmigration.Origin]int
	checkSampler     sampler
	lock             sync.Mutex
}

// NewMigrationOpTracker creates a tracker for the migration flag evaluation described by the
// given parameters. The flag pointer may be nil if the flag was not found; measurements are
// still collected so that the event can report the evaluation failure.
func NewMigrationOpTracker(
	key string,
	flag *ldmodel.FeatureFlag,
	context EventInputContext,
	detail ldreason.EvaluationDetail,
	defaultStage ldmigration.Stage,
) *MigrationOpTracker {
	return &MigrationOpTracker{
		flagKey:      key,
		flag:         flag,
		context:      context,
		detail:       detail,
		defaultStage: defaultStage,
		invoked:      make(map[ldmigration.Origin]struct{}),
		errors:       make(map[ldmigration.Origin]struct{}),
		latencies:    make(map[ldmigration.Origin]int),
		checkSampler: newRandomSampler(),
	}
}

// Operation sets the migration related operation (read / write) associated with these tracking
// measurements.
func (t *MigrationOpTracker) Operation(op ldmigration.Operation) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.op = &op
}

// TrackInvoked records that the given origin was invoked as part of this operation.
func (t *MigrationOpTracker) TrackInvoked(origin ldmigration.Origin) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.invoked[origin] = struct{}{}
}

// TrackConsistency records the result of a consistency comparison between the old and new
// implementations. The comparison function is only run if this operation was selected by the
// flag's check ratio, so callers should not do the comparison work themselves beforehand.
func (t *MigrationOpTracker) TrackConsistency(isConsistent func() bool) {
	t.lock.Lock()
	defer t.lock.Unlock()

	checkRatio := 1
	if t.flag != nil && t.flag.Migration != nil {
		checkRatio = t.flag.Migration.CheckRatio.OrElse(1)
	}
	if !t.checkSampler.Sample(checkRatio) {
		return
	}
	t.consistencyCheck = ldmigration.NewConsistencyCheck(isConsistent(), checkRatio)
}

// TrackError records that the given origin failed during this operation.
func (t *MigrationOpTracker) TrackError(origin ldmigration.Origin) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.errors[origin] = struct{}{}
}

// TrackLatency records the time taken by the given origin.
func (t *MigrationOpTracker) TrackLatency(origin ldmigration.Origin, duration time.Duration) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.latencies[origin] = int(duration.Milliseconds())
}

// Build creates an event from the current state of the tracker. It returns an error instead if
// the measurements are incomplete or contradictory, in which case no event should be sent.
func (t *MigrationOpTracker) Build() (*MigrationOpEventData, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.op == nil {
		return nil, errors.New("migration operation not specified")
	}
	if t.flagKey == "" {
		return nil, errors.New("migration operation cannot contain an empty flag key")
	}
	if len(t.invoked) == 0 {
		return nil, errors.New("no origins were recorded as invoked")
	}
	if err := t.context.context.Err(); err != nil {
		return nil, fmt.Errorf("invalid context for migration operation: %w", err)
	}
	if err := t.checkOriginConsistency(); err != nil {
		return nil, err
	}

	var version, samplingRatio ldvalue.OptionalInt
	if t.flag != nil {
		version = ldvalue.NewOptionalInt(t.flag.Version)
		samplingRatio = t.flag.SamplingRatio
	}

	return &MigrationOpEventData{
		BaseEvent: BaseEvent{
			CreationDate: ldtime.UnixMillisNow(),
			Context:      t.context,
		},
		Op:               *t.op,
		FlagKey:          t.flagKey,
		Version:          version,
		Default:          t.defaultStage,
		Evaluation:       t.detail,
		SamplingRatio:    samplingRatio,
		ConsistencyCheck: t.consistencyCheck,
		Invoked:          t.invoked,
		Error:            t.errors,
		Latency:          t.latencies,
	}, nil
}

// Each latency, error, or consistency measurement must correspond to an invocation; a
// measurement for an origin that was never invoked means the caller's instrumentation is wrong,
// and the whole event is distrusted.
func (t *MigrationOpTracker) checkOriginConsistency() error {
	for origin := range t.latencies {
		if _, ok := t.invoked[origin]; !ok {
			return fmt.Errorf("provided latency for origin %q without recording invocation", origin)
		}
	}
	for origin := range t.errors {
		if _, ok := t.invoked[origin]; !ok {
			return fmt.Errorf("provided error for origin %q without recording invocation", origin)
		}
	}
	if t.consistencyCheck != nil && len(t.invoked) != 2 {
		return errors.New("provided consistency check without invoking both origins")
	}
	return nil
}
