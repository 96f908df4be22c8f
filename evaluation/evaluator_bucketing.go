package evaluation

import (
	"crypto/sha1" //nolint:gosec // SHA1 is cryptographically weak but we are not using it to hash any credentials
	"encoding/hex"
	"io"
	"strconv"

	"github.com/launchdarkly/go-server-sdk-core/ldmodel"

	"github.com/launchdarkly/go-sdk-common/v3/ldattr"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// The hash is reduced to its first 15 hexadecimal digits (60 bits), so this is the scale that
// maps the parsed value into [0,1). Using the same scale on every platform is what makes bucket
// assignments consistent across SDKs.
const longScale = float32(0xFFFFFFFFFFFFFFF)

// bucketingFailureReason describes the conditions under which no real bucket value could be
// computed. These are not errors; each of them has a defined fallback behavior.
type bucketingFailureReason int

const (
	bucketingFailureContextLacksDesiredKind bucketingFailureReason = iota + 1
	bucketingFailureInvalidAttrRef
	bucketingFailureAttributeNotFound
	bucketingFailureAttributeValueWrongType
)

// variationOrRolloutResult computes the variation index for a fixed variation, a percentage
// rollout, or an experiment, returning also whether the context is participating in an
// experiment.
func (es *evaluationScope) variationOrRolloutResult(
	r ldmodel.VariationOrRollout, key, salt string) (variationIndex int, inExperiment bool, err error) {
	if r.Variation.IsDefined() {
		return r.Variation.IntValue(), false, nil
	}
	if len(r.Rollout.Variations) == 0 {
		// This is an error (malformed flag); either a variation or a non-empty rollout must be
		// specified.
		return -1, false, emptyRolloutError{}
	}

	isExperiment := r.Rollout.IsExperiment()

	bucketVal, failReason := es.computeBucketValue(isExperiment, r.Rollout.Seed,
		r.Rollout.ContextKind, key, r.Rollout.BucketBy, salt)
	// A failure does not terminate the evaluation; the undefined bucket value of zero selects
	// the first non-empty bucket. But a context that lacks the desired kind can never be in an
	// experiment.
	contextWasFound := failReason != bucketingFailureContextLacksDesiredKind

	var sum float32
	for _, wv := range r.Rollout.Variations {
		sum += float32(wv.Weight) / 100000.0
		if bucketVal < sum {
			return wv.Variation, isExperiment && !wv.Untracked && contextWasFound, nil
		}
	}

	// The context's bucket value was greater than or equal to the end of the last bucket. This
	// could happen due to a rounding error, or due to the fact that we are scaling to 100000
	// rather than 99999, or the flag data could contain buckets that don't actually add up to
	// 100000. Rather than returning an error in this case (or changing the scaling, which would
	// potentially change the results for *all* contexts), we will simply put the context in the
	// last bucket.
	lastVariation := r.Rollout.Variations[len(r.Rollout.Variations)-1]
	return lastVariation.Variation, isExperiment && !lastVariation.Untracked && contextWasFound, nil
}

// computeBucketValue computes a deterministic bucket value in [0,1) for a context.
//
// If the value could not be computed, it returns zero and a non-zero bucketingFailureReason.
// The zero value is still usable in a rollout (it selects the first non-empty bucket), which is
// the defined behavior for every failure condition here.
func (es *evaluationScope) computeBucketValue(
	isExperiment bool,
	seed ldvalue.OptionalInt,
	contextKind ldcontext.Kind,
	key string,
	attr ldattr.Ref,
	salt string,
) (float32, bucketingFailureReason) {
	var prefix string
	if seed.IsDefined() {
		// Rollouts or experiments that are shared between flags use a seed instead of the
		// flag key and salt, so that they bucket identically everywhere.
		prefix = strconv.Itoa(seed.IntValue())
	} else {
		prefix = key + "." + salt
	}

	if contextKind == "" {
		contextKind = ldcontext.DefaultKind
	}
	individual := es.context.IndividualContextByKind(contextKind)
	if !individual.IsDefined() {
		return 0, bucketingFailureContextLacksDesiredKind
	}

	var uValue ldvalue.Value
	if isExperiment || !attr.IsDefined() {
		// An experiment always buckets by the context key; a custom bucketBy attribute applies
		// only to plain rollouts.
		uValue = ldvalue.String(individual.Key())
	} else {
		if attr.Err() != nil {
			return 0, bucketingFailureInvalidAttrRef
		}
		uValue = individual.GetValueForRef(attr)
		if uValue.IsNull() {
			return 0, bucketingFailureAttributeNotFound
		}
	}

	idHash, ok := bucketableStringValue(uValue)
	if !ok {
		return 0, bucketingFailureAttributeValueWrongType
	}

	h := sha1.New() //nolint:gosec // just used for insecure hashing
	_, _ = io.WriteString(h, prefix+"."+idHash)
	hash := hex.EncodeToString(h.Sum(nil))[:15]

	intVal, _ := strconv.ParseInt(hash, 16, 64)

	return float32(intVal) / longScale, 0
}

// bucketableStringValue returns the string form of an attribute value for hashing purposes.
// Strings are used as-is; numbers are used only if they are whole integers, in which case they
// are hashed as their base-10 representation. Nothing else can be bucketed on.
func bucketableStringValue(uValue ldvalue.Value) (string, bool) {
	if uValue.Type() == ldvalue.StringType {
		return uValue.StringValue(), true
	}
	if uValue.IsInt() {
		return strconv.Itoa(uValue.IntValue()), true
	}
	return "", false
}
