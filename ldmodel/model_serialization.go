package ldmodel

import (
	"github.com/launchdarkly/go-jsonstream/v3/jreader"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"

	"github.com/launchdarkly/go-sdk-common/v3/ldattr"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// DataModelSerialization defines an encoding for SDK data model objects.
//
// For the default JSON encoding used by LaunchDarkly SDKs, use NewJSONDataModelSerialization.
type DataModelSerialization interface {
	// MarshalFeatureFlag converts a FeatureFlag into its serialized encoding.
	MarshalFeatureFlag(item FeatureFlag) ([]byte, error)

	// MarshalSegment converts a Segment into its serialized encoding.
	MarshalSegment(item Segment) ([]byte, error)

	// UnmarshalFeatureFlag attempts to convert a FeatureFlag from its serialized encoding.
	UnmarshalFeatureFlag(data []byte) (FeatureFlag, error)

	// UnmarshalSegment attempts to convert a Segment from its serialized encoding.
	UnmarshalSegment(data []byte) (Segment, error)
}

type jsonDataModelSerialization struct{}

// NewJSONDataModelSerialization provides the default JSON encoding for SDK data model objects.
//
// Always use this rather than relying on json.Marshal() and json.Unmarshal(), because the
// deserializer also attaches precomputed data that the evaluation engine relies on (see
// PreprocessFlag, PreprocessSegment).
func NewJSONDataModelSerialization() DataModelSerialization {
	return jsonDataModelSerialization{}
}

func (s jsonDataModelSerialization) MarshalFeatureFlag(item FeatureFlag) ([]byte, error) {
	w := jwriter.NewWriter()
	MarshalFeatureFlagToJSONWriter(item, &w)
	return w.Bytes(), w.Error()
}

func (s jsonDataModelSerialization) MarshalSegment(item Segment) ([]byte, error) {
	w := jwriter.NewWriter()
	MarshalSegmentToJSONWriter(item, &w)
	return w.Bytes(), w.Error()
}

func (s jsonDataModelSerialization) UnmarshalFeatureFlag(data []byte) (FeatureFlag, error) {
	r := jreader.NewReader(data)
	item := UnmarshalFeatureFlagFromJSONReader(&r)
	return item, r.Error()
}

func (s jsonDataModelSerialization) UnmarshalSegment(data []byte) (Segment, error) {
	r := jreader.NewReader(data)
	item := UnmarshalSegmentFromJSONReader(&r)
	return item, r.Error()
}

// MarshalJSON overrides the default json.Marshal behavior to provide the same marshalling behavior
// that is used by NewJSONDataModelSerialization().
func (f FeatureFlag) MarshalJSON() ([]byte, error) {
	return jsonDataModelSerialization{}.MarshalFeatureFlag(f)
}

// MarshalJSON overrides the default json.Marshal behavior to provide the same marshalling behavior
// that is used by NewJSONDataModelSerialization().
func (s Segment) MarshalJSON() ([]byte, error) {
	return jsonDataModelSerialization{}.MarshalSegment(s)
}

// UnmarshalJSON overrides the default json.Unmarshal behavior to provide the same unmarshalling
// behavior that is used by NewJSONDataModelSerialization().
func (f *FeatureFlag) UnmarshalJSON(data []byte) error {
	result, err := jsonDataModelSerialization{}.UnmarshalFeatureFlag(data)
	if err == nil {
		*f = result
	}
	return err
}

// UnmarshalJSON overrides the default json.Unmarshal behavior to provide the same unmarshalling
// behavior that is used by NewJSONDataModelSerialization().
func (s *Segment) UnmarshalJSON(data []byte) error {
	result, err := jsonDataModelSerialization{}.UnmarshalSegment(data)
	if err == nil {
		*s = result
	}
	return err
}

// MarshalFeatureFlagToJSONWriter attempts to convert a FeatureFlag to JSON using the jsonstream
// API. For details, see: https://github.com/launchdarkly/go-jsonstream
func MarshalFeatureFlagToJSONWriter(item FeatureFlag, w *jwriter.Writer) {
	obj := w.Object()

	obj.Name("key").String(item.Key)
	obj.Name("on").Bool(item.On)

	prereqsArr := obj.Name("prerequisites").Array()
	for _, p := range item.Prerequisites {
		prereqObj := w.Object()
		prereqObj.Name("key").String(p.Key)
		prereqObj.Name("variation").Int(p.Variation)
		prereqObj.End()
	}
	prereqsArr.End()

	writeTargets(w, &obj, "targets", item.Targets, false)
	writeTargets(w, &obj, "contextTargets", item.ContextTargets, true)

	rulesArr := obj.Name("rules").Array()
	for _, rule := range item.Rules {
		ruleObj := w.Object()
		writeVariationOrRollout(w, &ruleObj, rule.VariationOrRollout)
		ruleObj.Name("id").String(rule.ID)
		writeClauses(w, &ruleObj, rule.Clauses)
		ruleObj.Name("trackEvents").Bool(rule.TrackEvents)
		ruleObj.End()
	}
	rulesArr.End()

	fallthroughObj := obj.Name("fallthrough").Object()
	writeVariationOrRollout(w, &fallthroughObj, item.Fallthrough)
	fallthroughObj.End()

	obj.Name("offVariation").IntOrNull(item.OffVariation.IsDefined(), item.OffVariation.IntValue())

	variationsArr := obj.Name("variations").Array()
	for _, v := range item.Variations {
		v.WriteToJSONWriter(w)
	}
	variationsArr.End()

	if item.ClientSideAvailability.Explicit {
		csaObj := obj.Name("clientSideAvailability").Object()
		csaObj.Name("usingMobileKey").Bool(item.ClientSideAvailability.UsingMobileKey)
		csaObj.Name("usingEnvironmentId").Bool(item.ClientSideAvailability.UsingEnvironmentID)
		csaObj.End()
	}
	// clientSide is the older schema for this property; we always write it for interoperability
	// with consumers of the data that do not know about clientSideAvailability
	obj.Name("clientSide").Bool(item.ClientSideAvailability.UsingEnvironmentID)

	obj.Name("salt").String(item.Salt)
	obj.Name("trackEvents").Bool(item.TrackEvents)
	obj.Name("trackEventsFallthrough").Bool(item.TrackEventsFallthrough)
	obj.Name("debugEventsUntilDate").Float64OrNull(item.DebugEventsUntilDate > 0,
		float64(item.DebugEventsUntilDate))
	obj.Name("version").Int(item.Version)
	obj.Name("deleted").Bool(item.Deleted)

	if item.Migration != nil {
		migrationObj := obj.Name("migration").Object()
		if item.Migration.CheckRatio.IsDefined() {
			migrationObj.Name("checkRatio").Int(item.Migration.CheckRatio.IntValue())
		}
		migrationObj.End()
	}
	if item.SamplingRatio.IsDefined() {
		obj.Name("samplingRatio").Int(item.SamplingRatio.IntValue())
	}
	if item.ExcludeFromSummaries {
		obj.Name("excludeFromSummaries").Bool(true)
	}

	obj.End()
}

// MarshalSegmentToJSONWriter attempts to convert a Segment to JSON using the jsonstream API. For
// details, see: https://github.com/launchdarkly/go-jsonstream
func MarshalSegmentToJSONWriter(item Segment, w *jwriter.Writer) {
	obj := w.Object()

	obj.Name("key").String(item.Key)
	writeStrings(w, &obj, "included", item.Included)
	writeStrings(w, &obj, "excluded", item.Excluded)
	writeSegmentTargets(w, &obj, "includedContexts", item.IncludedContexts)
	writeSegmentTargets(w, &obj, "excludedContexts", item.ExcludedContexts)
	obj.Name("salt").String(item.Salt)

	rulesArr := obj.Name("rules").Array()
	for _, rule := range item.Rules {
		ruleObj := w.Object()
		ruleObj.Name("id").String(rule.ID)
		writeClauses(w, &ruleObj, rule.Clauses)
		if rule.Weight.IsDefined() {
			ruleObj.Name("weight").Int(rule.Weight.IntValue())
		}
		writeAttrRef(&ruleObj, "bucketBy", rule.BucketBy, rule.RolloutContextKind)
		ruleObj.Maybe("rolloutContextKind", rule.RolloutContextKind != "").
			String(string(rule.RolloutContextKind))
		ruleObj.End()
	}
	rulesArr.End()

	obj.Maybe("unbounded", item.Unbounded).Bool(item.Unbounded)
	obj.Maybe("unboundedContextKind", item.UnboundedContextKind != "").
		String(string(item.UnboundedContextKind))
	obj.Name("version").Int(item.Version)
	if item.Generation.IsDefined() {
		obj.Name("generation").Int(item.Generation.IntValue())
	}
	obj.Name("deleted").Bool(item.Deleted)

	obj.End()
}

// UnmarshalFeatureFlagFromJSONReader attempts to parse a FeatureFlag using the jsonstream API.
// Any parsing failure is reported through the Reader's error state. For details, see:
// https://github.com/launchdarkly/go-jsonstream
//
// On a successful parse, the returned flag has all of its precomputed evaluation data attached
// (see PreprocessFlag).
func UnmarshalFeatureFlagFromJSONReader(r *jreader.Reader) FeatureFlag {
	var item FeatureFlag
	var hasExplicitClientSideAvailability, oldClientSide bool
	for obj := r.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "key":
			item.Key = r.String()
		case "on":
			item.On = r.Bool()
		case "prerequisites":
			for arr := r.ArrayOrNull(); arr.Next(); {
				var p Prerequisite
				for pObj := r.Object(); pObj.Next(); {
					switch string(pObj.Name()) {
					case "key":
						p.Key = r.String()
					case "variation":
						p.Variation = r.Int()
					}
				}
				item.Prerequisites = append(item.Prerequisites, p)
			}
		case "targets":
			item.Targets = readTargets(r)
		case "contextTargets":
			item.ContextTargets = readTargets(r)
		case "rules":
			for arr := r.ArrayOrNull(); arr.Next(); {
				var rule FlagRule
				for ruleObj := r.Object(); ruleObj.Next(); {
					switch string(ruleObj.Name()) {
					case "id":
						rule.ID = r.String()
					case "variation":
						rule.Variation = readOptionalInt(r)
					case "rollout":
						rule.Rollout = readRollout(r)
					case "clauses":
						rule.Clauses = readClauses(r)
					case "trackEvents":
						rule.TrackEvents = r.Bool()
					}
				}
				item.Rules = append(item.Rules, rule)
			}
		case "fallthrough":
			for ftObj := r.Object(); ftObj.Next(); {
				switch string(ftObj.Name()) {
				case "variation":
					item.Fallthrough.Variation = readOptionalInt(r)
				case "rollout":
					item.Fallthrough.Rollout = readRollout(r)
				}
			}
		case "offVariation":
			item.OffVariation = readOptionalInt(r)
		case "variations":
			for arr := r.ArrayOrNull(); arr.Next(); {
				var v ldvalue.Value
				v.ReadFromJSONReader(r)
				item.Variations = append(item.Variations, v)
			}
		case "clientSideAvailability":
			hasExplicitClientSideAvailability = true
			for csaObj := r.Object(); csaObj.Next(); {
				switch string(csaObj.Name()) {
				case "usingMobileKey":
					item.ClientSideAvailability.UsingMobileKey = r.Bool()
				case "usingEnvironmentId":
					item.ClientSideAvailability.UsingEnvironmentID = r.Bool()
				}
			}
		case "clientSide":
			oldClientSide = r.Bool()
		case "salt":
			item.Salt = r.String()
		case "trackEvents":
			item.TrackEvents = r.Bool()
		case "trackEventsFallthrough":
			item.TrackEventsFallthrough = r.Bool()
		case "debugEventsUntilDate":
			if n, nonNull := r.Float64OrNull(); nonNull {
				item.DebugEventsUntilDate = ldtime.UnixMillisecondTime(n)
			}
		case "version":
			item.Version = r.Int()
		case "deleted":
			item.Deleted = r.Bool()
		case "migration":
			var params MigrationFlagParameters
			mObj := r.ObjectOrNull()
			for mObj.Next() {
				if string(mObj.Name()) == "checkRatio" {
					params.CheckRatio = readOptionalInt(r)
				}
			}
			if mObj.IsDefined() {
				item.Migration = &params
			}
		case "samplingRatio":
			item.SamplingRatio = readOptionalInt(r)
		case "excludeFromSummaries":
			item.ExcludeFromSummaries = r.Bool()
		}
	}
	if hasExplicitClientSideAvailability {
		item.ClientSideAvailability.Explicit = true
	} else {
		// In the older schema, there is an assumption that a flag is always available via the
		// mobile key, and the clientSide property corresponds to what is now UsingEnvironmentID.
		item.ClientSideAvailability.UsingMobileKey = true
		item.ClientSideAvailability.UsingEnvironmentID = oldClientSide
	}
	if r.Error() == nil {
		PreprocessFlag(&item)
	}
	return item
}

// UnmarshalSegmentFromJSONReader attempts to parse a Segment using the jsonstream API. Any
// parsing failure is reported through the Reader's error state. For details, see:
// https://github.com/launchdarkly/go-jsonstream
//
// On a successful parse, the returned segment has all of its precomputed evaluation data attached
// (see PreprocessSegment).
func UnmarshalSegmentFromJSONReader(r *jreader.Reader) Segment {
	var item Segment
	for obj := r.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "key":
			item.Key = r.String()
		case "included":
			item.Included = readStrings(r)
		case "excluded":
			item.Excluded = readStrings(r)
		case "includedContexts":
			item.IncludedContexts = readSegmentTargets(r)
		case "excludedContexts":
			item.ExcludedContexts = readSegmentTargets(r)
		case "salt":
			item.Salt = r.String()
		case "rules":
			for arr := r.ArrayOrNull(); arr.Next(); {
				var rule SegmentRule
				var bucketBy string
				for ruleObj := r.Object(); ruleObj.Next(); {
					switch string(ruleObj.Name()) {
					case "id":
						rule.ID = r.String()
					case "clauses":
						rule.Clauses = readClauses(r)
					case "weight":
						rule.Weight = readOptionalInt(r)
					case "bucketBy":
						bucketBy, _ = r.StringOrNull()
					case "rolloutContextKind":
						rule.RolloutContextKind = ldcontext.Kind(r.String())
					}
				}
				rule.BucketBy = parseAttrRef(bucketBy, rule.RolloutContextKind)
				item.Rules = append(item.Rules, rule)
			}
		case "unbounded":
			item.Unbounded = r.Bool()
		case "unboundedContextKind":
			item.UnboundedContextKind = ldcontext.Kind(r.String())
		case "version":
			item.Version = r.Int()
		case "generation":
			item.Generation = readOptionalInt(r)
		case "deleted":
			item.Deleted = r.Bool()
		}
	}
	if r.Error() == nil {
		PreprocessSegment(&item)
	}
	return item
}

func writeTargets(w *jwriter.Writer, obj *jwriter.ObjectState, name string, targets []Target,
	withKind bool) {
	targetsArr := obj.Name(name).Array()
	for _, t := range targets {
		targetObj := w.Object()
		if withKind {
			targetObj.Maybe("contextKind", t.ContextKind != "").String(string(t.ContextKind))
		}
		writeStrings(w, &targetObj, "values", t.Values)
		targetObj.Name("variation").Int(t.Variation)
		targetObj.End()
	}
	targetsArr.End()
}

func writeSegmentTargets(w *jwriter.Writer, obj *jwriter.ObjectState, name string,
	targets []SegmentTarget) {
	if len(targets) == 0 {
		return
	}
	targetsArr := obj.Name(name).Array()
	for _, t := range targets {
		targetObj := w.Object()
		targetObj.Maybe("contextKind", t.ContextKind != "").String(string(t.ContextKind))
		writeStrings(w, &targetObj, "values", t.Values)
		targetObj.End()
	}
	targetsArr.End()
}

func writeVariationOrRollout(w *jwriter.Writer, obj *jwriter.ObjectState, vr VariationOrRollout) {
	if vr.Variation.IsDefined() {
		obj.Name("variation").Int(vr.Variation.IntValue())
	}
	if len(vr.Rollout.Variations) > 0 {
		rolloutObj := obj.Name("rollout").Object()
		rolloutObj.Maybe("kind", vr.Rollout.Kind != "").String(string(vr.Rollout.Kind))
		rolloutObj.Maybe("contextKind", vr.Rollout.ContextKind != "").
			String(string(vr.Rollout.ContextKind))
		variationsArr := rolloutObj.Name("variations").Array()
		for _, wv := range vr.Rollout.Variations {
			wvObj := w.Object()
			wvObj.Name("variation").Int(wv.Variation)
			wvObj.Name("weight").Int(wv.Weight)
			if wv.Untracked {
				wvObj.Name("untracked").Bool(true)
			}
			wvObj.End()
		}
		variationsArr.End()
		writeAttrRef(&rolloutObj, "bucketBy", vr.Rollout.BucketBy, vr.Rollout.ContextKind)
		if vr.Rollout.Seed.IsDefined() {
			rolloutObj.Name("seed").Int(vr.Rollout.Seed.IntValue())
		}
		rolloutObj.End()
	}
}

func writeClauses(w *jwriter.Writer, obj *jwriter.ObjectState, clauses []Clause) {
	clausesArr := obj.Name("clauses").Array()
	for _, c := range clauses {
		clauseObj := w.Object()
		clauseObj.Maybe("contextKind", c.ContextKind != "").String(string(c.ContextKind))
		writeAttrRef(&clauseObj, "attribute", c.Attribute, c.ContextKind)
		clauseObj.Name("op").String(string(c.Op))
		valuesArr := clauseObj.Name("values").Array()
		for _, v := range c.Values {
			v.WriteToJSONWriter(w)
		}
		valuesArr.End()
		clauseObj.Name("negate").Bool(c.Negate)
		clauseObj.End()
	}
	clausesArr.End()
}

func writeStrings(w *jwriter.Writer, obj *jwriter.ObjectState, name string, values []string) {
	arr := obj.Name(name).Array()
	for _, v := range values {
		w.String(v)
	}
	arr.End()
}

// writeAttrRef writes an attribute reference in either the new or the old schema, depending on
// whether a context kind was present alongside it. In the old schema, the string is a plain
// attribute name; in the new one, it is a slash-delimited path. See parseAttrRef.
func writeAttrRef(obj *jwriter.ObjectState, name string, ref ldattr.Ref, kind ldcontext.Kind) {
	if !ref.IsDefined() {
		return
	}
	if kind == "" && ref.Depth() == 1 {
		obj.Name(name).String(ref.Component(0))
	} else {
		obj.Name(name).String(ref.String())
	}
}

func readTargets(r *jreader.Reader) []Target {
	var ret []Target
	for arr := r.ArrayOrNull(); arr.Next(); {
		var t Target
		for obj := r.Object(); obj.Next(); {
			switch string(obj.Name()) {
			case "contextKind":
				t.ContextKind = ldcontext.Kind(r.String())
			case "values":
				t.Values = readStrings(r)
			case "variation":
				t.Variation = r.Int()
			}
		}
		ret = append(ret, t)
	}
	return ret
}

func readSegmentTargets(r *jreader.Reader) []SegmentTarget {
	var ret []SegmentTarget
	for arr := r.ArrayOrNull(); arr.Next(); {
		var t SegmentTarget
		for obj := r.Object(); obj.Next(); {
			switch string(obj.Name()) {
			case "contextKind":
				t.ContextKind = ldcontext.Kind(r.String())
			case "values":
				t.Values = readStrings(r)
			}
		}
		ret = append(ret, t)
	}
	return ret
}

func readRollout(r *jreader.Reader) Rollout {
	var ret Rollout
	var bucketBy string
	for obj := r.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "kind":
			ret.Kind = RolloutKind(r.String())
		case "contextKind":
			ret.ContextKind = ldcontext.Kind(r.String())
		case "variations":
			for arr := r.ArrayOrNull(); arr.Next(); {
				var wv WeightedVariation
				for wvObj := r.Object(); wvObj.Next(); {
					switch string(wvObj.Name()) {
					case "variation":
						wv.Variation = r.Int()
					case "weight":
						wv.Weight = r.Int()
					case "untracked":
						wv.Untracked = r.Bool()
					}
				}
				ret.Variations = append(ret.Variations, wv)
			}
		case "bucketBy":
			bucketBy, _ = r.StringOrNull()
		case "seed":
			ret.Seed = readOptionalInt(r)
		}
	}
	ret.BucketBy = parseAttrRef(bucketBy, ret.ContextKind)
	return ret
}

func readClauses(r *jreader.Reader) []Clause {
	var ret []Clause
	for arr := r.ArrayOrNull(); arr.Next(); {
		var c Clause
		var attribute string
		for obj := r.Object(); obj.Next(); {
			switch string(obj.Name()) {
			case "contextKind":
				c.ContextKind = ldcontext.Kind(r.String())
			case "attribute":
				attribute, _ = r.StringOrNull()
			case "op":
				c.Op = Operator(r.String())
			case "values":
				for valuesArr := r.ArrayOrNull(); valuesArr.Next(); {
					var v ldvalue.Value
					v.ReadFromJSONReader(r)
					c.Values = append(c.Values, v)
				}
			case "negate":
				c.Negate = r.Bool()
			}
		}
		c.Attribute = parseAttrRef(attribute, c.ContextKind)
		ret = append(ret, c)
	}
	return ret
}

func readStrings(r *jreader.Reader) []string {
	var ret []string
	for arr := r.ArrayOrNull(); arr.Next(); {
		ret = append(ret, r.String())
	}
	return ret
}

func readOptionalInt(r *jreader.Reader) ldvalue.OptionalInt {
	if n, nonNull := r.IntOrNull(); nonNull {
		return ldvalue.NewOptionalInt(n)
	}
	return ldvalue.OptionalInt{}
}

// parseAttrRef interprets an attribute string from JSON data. For backward compatibility with
// data from older schemas, the string is interpreted as a plain attribute name if there was no
// context kind alongside it, or as a slash-delimited attribute reference path if there was one.
func parseAttrRef(s string, kind ldcontext.Kind) ldattr.Ref {
	if s == "" {
		return ldattr.Ref{}
	}
	if kind == "" {
		return ldattr.NewLiteralRef(s)
	}
	return ldattr.NewRef(s)
}
