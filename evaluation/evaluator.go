package evaluation

import (
	"fmt"
	"sync"

	"github.com/launchdarkly/go-server-sdk-core/ldmodel"

	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldreason"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// The visit chains normally stay small, so preallocating this much avoids slice growth except
// in pathologically deep prerequisite or segment graphs.
const initialVisitChainCapacity = 20

type evaluator struct {
	dataProvider       DataProvider
	bigSegmentProvider BigSegmentProvider
	errorLogger        ldlog.BaseLogger
}

// EvaluatorOption is an optional parameter for NewEvaluatorWithOptions.
type EvaluatorOption interface {
	apply(e *evaluator)
}

type evaluatorOptionBigSegmentProvider struct{ bigSegmentProvider BigSegmentProvider }

// EvaluatorOptionBigSegmentProvider is an option for NewEvaluatorWithOptions that specifies a
// BigSegmentProvider for evaluating big segment membership. If this is nil or unspecified,
// any flag evaluation that references a big segment will behave as if no big segment store is
// configured.
func EvaluatorOptionBigSegmentProvider(bigSegmentProvider BigSegmentProvider) EvaluatorOption {
	return evaluatorOptionBigSegmentProvider{bigSegmentProvider: bigSegmentProvider}
}

func (o evaluatorOptionBigSegmentProvider) apply(e *evaluator) {
	e.bigSegmentProvider = o.bigSegmentProvider
}

type evaluatorOptionErrorLogger struct{ errorLogger ldlog.BaseLogger }

// EvaluatorOptionErrorLogger is an option for NewEvaluatorWithOptions that specifies a logger
// for error reporting. The Evaluator will only log errors for conditions that indicate malformed
// flag data; it does not log ordinary conditions such as a context not matching anything.
func EvaluatorOptionErrorLogger(errorLogger ldlog.BaseLogger) EvaluatorOption {
	return evaluatorOptionErrorLogger{errorLogger: errorLogger}
}

func (o evaluatorOptionErrorLogger) apply(e *evaluator) {
	e.errorLogger = o.errorLogger
}

// NewEvaluator creates an Evaluator, specifying a DataProvider that it will use if it needs to
// query additional feature flags or segments during an evaluation.
//
// To support big segments, use NewEvaluatorWithOptions and EvaluatorOptionBigSegmentProvider.
func NewEvaluator(dataProvider DataProvider) Evaluator {
	return NewEvaluatorWithOptions(dataProvider)
}

// NewEvaluatorWithOptions creates an Evaluator, specifying a DataProvider that it will use if it
// needs to query additional feature flags or segments during an evaluation, and also any number
// of EvaluatorOption modifiers.
func NewEvaluatorWithOptions(dataProvider DataProvider, options ...EvaluatorOption) Evaluator {
	e := &evaluator{dataProvider: dataProvider}
	for _, o := range options {
		if o != nil {
			o.apply(e)
		}
	}
	return e
}

// Used internally to hold the parameters of an evaluation, to avoid repetitive parameter
// passing. Its methods use a pointer receiver both for efficiency and because the big-segment
// fields are updated as the evaluation proceeds; the struct itself lives on the stack.
type evaluationScope struct {
	owner                         *evaluator
	flag                          *ldmodel.FeatureFlag
	context                       ldcontext.Context
	prerequisiteFlagEventRecorder PrerequisiteFlagEventRecorder

	// Big-segment state is accumulated here across the whole evaluation, including prerequisite
	// evaluations, so that the final reason reflects every big segment that was referenced. The
	// membership map is lazily allocated since most evaluations never touch a big segment.
	bigSegmentsReferenced  bool
	bigSegmentsStatus      ldreason.BigSegmentsStatus
	bigSegmentsMemberships map[string]BigSegmentMembership

	loggedMissingSegmentGeneration bool
}

// evaluationStack holds the chains of flag and segment keys that are currently being visited,
// for detecting circular references. Stacks are pooled and reused across evaluations so that
// the ordinary case does not allocate.
type evaluationStack struct {
	prerequisiteFlagChain []string
	segmentChain          []string
}

var evaluationStackPool = sync.Pool{ //nolint:gochecknoglobals
	New: func() interface{} {
		return &evaluationStack{
			prerequisiteFlagChain: make([]string, 0, initialVisitChainCapacity),
			segmentChain:          make([]string, 0, initialVisitChainCapacity),
		}
	},
}

func getEvaluationStack() *evaluationStack {
	return evaluationStackPool.Get().(*evaluationStack)
}

func releaseEvaluationStack(stack *evaluationStack) {
	stack.prerequisiteFlagChain = stack.prerequisiteFlagChain[:0]
	stack.segmentChain = stack.segmentChain[:0]
	evaluationStackPool.Put(stack)
}

// Implementation of the Evaluator interface.
func (e *evaluator) Evaluate(
	flag *ldmodel.FeatureFlag,
	context ldcontext.Context,
	prerequisiteFlagEventRecorder PrerequisiteFlagEventRecorder,
) Result {
	if err := context.Err(); err != nil {
		return Result{Detail: ldreason.NewEvaluationDetailForError(
			ldreason.EvalErrorUserNotSpecified, ldvalue.Null())}
	}

	es := evaluationScope{
		owner:                         e,
		flag:                          flag,
		context:                       context,
		prerequisiteFlagEventRecorder: prerequisiteFlagEventRecorder,
	}

	stack := getEvaluationStack()
	defer releaseEvaluationStack(stack)

	result, err := es.evaluate(stack)
	if err != nil {
		// An error at this point means the flag data is invalid in a way that prevents any
		// meaningful result: a nonexistent variation index, an empty rollout, or a circular
		// prerequisite reference.
		es.logEvaluationError(err)
		return Result{Detail: ldreason.NewEvaluationDetailForError(
			ldreason.EvalErrorMalformedFlag, ldvalue.Null())}
	}
	if es.bigSegmentsReferenced {
		result.Detail.Reason = ldreason.NewEvalReasonFromReasonWithBigSegmentsStatus(
			result.Detail.Reason, es.bigSegmentsStatus)
	}
	return result
}

func (es *evaluationScope) evaluate(stack *evaluationStack) (Result, error) {
	if !es.flag.On {
		return es.getOffValue(ldreason.NewEvalReasonOff())
	}

	prereqFailureReason, ok, err := es.checkPrerequisites(stack)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return es.getOffValue(prereqFailureReason)
	}

	// Check to see if any context targets match
	if variation := es.anyTargetMatchVariation(); variation.IsDefined() {
		detail, err := es.getVariation(variation.IntValue(), ldreason.NewEvalReasonTargetMatch())
		return Result{Detail: detail}, err
	}

	// Now walk through the rules to see if any match
	for ruleIndex := range es.flag.Rules {
		rule := &es.flag.Rules[ruleIndex]
		match, err := es.ruleMatchesContext(rule, stack)
		if err != nil {
			return Result{}, err
		}
		if match {
			reason := ldreason.NewEvalReasonRuleMatch(ruleIndex, rule.ID)
			return es.getValueForVariationOrRollout(rule.VariationOrRollout, reason)
		}
	}

	return es.getValueForVariationOrRollout(es.flag.Fallthrough, ldreason.NewEvalReasonFallthrough())
}

// evaluateFlag evaluates another flag within the same scope, so that big-segment state and the
// event recorder carry across prerequisite evaluations.
func (es *evaluationScope) evaluateFlag(flag *ldmodel.FeatureFlag, stack *evaluationStack) (Result, error) {
	saved := es.flag
	es.flag = flag
	result, err := es.evaluate(stack)
	es.flag = saved
	return result, err
}

// Returns an empty reason if all prerequisites are OK, otherwise constructs an error reason that
// describes the failure.
func (es *evaluationScope) checkPrerequisites(stack *evaluationStack) (ldreason.EvaluationReason, bool, error) {
	if len(es.flag.Prerequisites) == 0 {
		return ldreason.EvaluationReason{}, true, nil
	}

	stack.prerequisiteFlagChain = append(stack.prerequisiteFlagChain, es.flag.Key)
	defer func() {
		stack.prerequisiteFlagChain = stack.prerequisiteFlagChain[:len(stack.prerequisiteFlagChain)-1]
	}()

	for _, prereq := range es.flag.Prerequisites {
		for _, visitedKey := range stack.prerequisiteFlagChain {
			if prereq.Key == visitedKey {
				return ldreason.EvaluationReason{}, false, circularPrereqReferenceError(prereq.Key)
			}
		}

		prereqFeatureFlag := es.owner.dataProvider.GetFeatureFlag(prereq.Key)
		if prereqFeatureFlag == nil {
			return ldreason.NewEvalReasonPrerequisiteFailed(prereq.Key), false, nil
		}

		prereqResult, err := es.evaluateFlag(prereqFeatureFlag, stack)
		if err != nil {
			return ldreason.EvaluationReason{}, false, err
		}

		// Note that if the prerequisite flag is off, we don't consider it a match no matter what
		// its off variation was. But we still need to evaluate it in order to generate an event.
		prereqOK := prereqFeatureFlag.On &&
			prereqResult.Detail.VariationIndex.IsDefined() &&
			prereqResult.Detail.VariationIndex.IntValue() == prereq.Variation

		if es.prerequisiteFlagEventRecorder != nil {
			event := PrerequisiteFlagEvent{es.flag.Key, es.context, prereqFeatureFlag, prereqResult}
			es.prerequisiteFlagEventRecorder(event)
		}

		if !prereqOK {
			return ldreason.NewEvalReasonPrerequisiteFailed(prereq.Key), false, nil
		}
	}
	return ldreason.EvaluationReason{}, true, nil
}

// anyTargetMatchVariation finds the variation for the first target list that contains the
// context, if any.
//
// Newer flag data expresses individual targeting with ContextTargets, where an entry for the
// default kind normally has an empty value list and acts as a placeholder referring to the
// old-style Targets entry with the same variation, so that the key lists are not duplicated in
// the JSON. Older data has only Targets.
func (es *evaluationScope) anyTargetMatchVariation() ldvalue.OptionalInt {
	if len(es.flag.ContextTargets) == 0 {
		for i := range es.flag.Targets {
			if variation := es.targetMatchVariation(&es.flag.Targets[i]); variation.IsDefined() {
				return variation
			}
		}
		return ldvalue.OptionalInt{}
	}

	for i := range es.flag.ContextTargets {
		target := &es.flag.ContextTargets[i]
		if (target.ContextKind == "" || target.ContextKind == ldcontext.DefaultKind) &&
			len(target.Values) == 0 {
			for j := range es.flag.Targets {
				if es.flag.Targets[j].Variation == target.Variation {
					if variation := es.targetMatchVariation(&es.flag.Targets[j]); variation.IsDefined() {
						return variation
					}
					break
				}
			}
		} else if variation := es.targetMatchVariation(target); variation.IsDefined() {
			return variation
		}
	}
	return ldvalue.OptionalInt{}
}

func (es *evaluationScope) targetMatchVariation(target *ldmodel.Target) ldvalue.OptionalInt {
	kind := target.ContextKind
	if kind == "" {
		kind = ldcontext.DefaultKind
	}
	if individual := es.context.IndividualContextByKind(kind); individual.IsDefined() {
		if ldmodel.TargetContainsKey(target, individual.Key()) {
			return ldvalue.NewOptionalInt(target.Variation)
		}
	}
	return ldvalue.OptionalInt{}
}

func (es *evaluationScope) getVariation(index int, reason ldreason.EvaluationReason) (ldreason.EvaluationDetail, error) {
	if index < 0 || index >= len(es.flag.Variations) {
		return ldreason.EvaluationDetail{}, badVariationError(index)
	}
	return ldreason.NewEvaluationDetail(es.flag.Variations[index], index, reason), nil
}

func (es *evaluationScope) getOffValue(reason ldreason.EvaluationReason) (Result, error) {
	if !es.flag.OffVariation.IsDefined() {
		return Result{Detail: ldreason.EvaluationDetail{Value: ldvalue.Null(), Reason: reason}}, nil
	}
	detail, err := es.getVariation(es.flag.OffVariation.IntValue(), reason)
	return Result{Detail: detail}, err
}

func (es *evaluationScope) getValueForVariationOrRollout(
	vr ldmodel.VariationOrRollout,
	reason ldreason.EvaluationReason,
) (Result, error) {
	index, inExperiment, err := es.variationOrRolloutResult(vr, es.flag.Key, es.flag.Salt)
	if err != nil {
		return Result{}, err
	}
	if inExperiment {
		reason = reasonToExperimentReason(reason)
	}
	detail, err := es.getVariation(index, reason)
	return Result{Detail: detail, IsExperiment: inExperiment}, err
}

func (es *evaluationScope) ruleMatchesContext(rule *ldmodel.FlagRule, stack *evaluationStack) (bool, error) {
	// Note that rule is passed by reference only for efficiency; we do not modify it
	for i := range rule.Clauses {
		match, err := es.clauseMatchesContext(&rule.Clauses[i], stack)
		if !match || err != nil {
			return false, err
		}
	}
	return true, nil
}

func (es *evaluationScope) clauseMatchesContext(clause *ldmodel.Clause, stack *evaluationStack) (bool, error) {
	// In the case of a segment match operator, we check if the context is in any of the segments,
	// and possibly negate. This is handled by the evaluator rather than the model's matching
	// logic because it requires looking up external data.
	if clause.Op == ldmodel.OperatorSegmentMatch {
		for _, value := range clause.Values {
			if value.Type() == ldvalue.StringType {
				segment := es.owner.dataProvider.GetSegment(value.StringValue())
				if segment == nil {
					continue // an unknown segment is simply a non-match, not an error
				}
				match, err := es.segmentContainsContext(segment, stack)
				if err != nil {
					return false, err
				}
				if match {
					return !clause.Negate, nil // match - true unless negated
				}
			}
		}
		return clause.Negate, nil // non-match - false unless negated
	}

	return ldmodel.ClauseMatchesContext(clause, &es.context)
}

func reasonToExperimentReason(reason ldreason.EvaluationReason) ldreason.EvaluationReason {
	switch reason.GetKind() {
	case ldreason.EvalReasonFallthrough:
		return ldreason.NewEvalReasonFallthroughExperiment(true)
	case ldreason.EvalReasonRuleMatch:
		return ldreason.NewEvalReasonRuleMatchExperiment(reason.GetRuleIndex(), reason.GetRuleID(), true)
	default:
		return reason // this is unreachable because only fallthroughs and rules have rollouts
	}
}

func (es *evaluationScope) logEvaluationError(err error) {
	if err == nil || es.owner.errorLogger == nil {
		return
	}
	es.owner.errorLogger.Printf("Invalid flag configuration detected in flag %q: %s",
		es.flag.Key, err)
}

// These error types distinguish the data inconsistencies that make an evaluation result
// impossible. They are reported to the error logger and converted to a MALFORMED_FLAG reason.

type badVariationError int

func (e badVariationError) Error() string {
	return fmt.Sprintf("rule, fallthrough, or target referenced a nonexistent variation index %d", int(e))
}

type emptyRolloutError struct{}

func (e emptyRolloutError) Error() string {
	return "rollout or experiment with no variations"
}

type circularPrereqReferenceError string

func (e circularPrereqReferenceError) Error() string {
	return fmt.Sprintf("prerequisite relationship to %q caused a circular reference;"+
		" this is probably a temporary condition due to an incomplete update", string(e))
}
