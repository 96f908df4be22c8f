package ldevents

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// eventOutputFormatter transforms the internal event representations into the JSON payload
// schema that the events service accepts.
type eventOutputFormatter struct {
	contextFormatter eventContextFormatter
}

func newEventOutputFormatter(config EventsConfiguration) eventOutputFormatter {
	return eventOutputFormatter{contextFormatter: newEventContextFormatter(config)}
}

// makeOutputEvents serializes a list of events and the summary data for a flush interval into a
// single JSON array. It returns the JSON data and the number of events written, which includes
// the summary event if there was anything to summarize.
func (ef eventOutputFormatter) makeOutputEvents(events []anyEventOutput, summary eventSummary) ([]byte, int) {
	n := len(events)

	w := jwriter.NewWriter()
	arr := w.Array()

	for _, e := range events {
		ef.writeOutputEvent(&w, e)
	}
	if summary.hasCounters() {
		ef.writeSummaryEvent(&w, summary)
		n++
	}

	if n == 0 {
		return nil, 0
	}
	arr.End()
	return w.Bytes(), n
}

func (ef eventOutputFormatter) writeOutputEvent(w *jwriter.Writer, evt anyEventOutput) {
	switch evt := evt.(type) {
	case EvaluationData:
		obj := w.Object()
		kind := FeatureRequestEventKind
		if evt.debug {
			kind = FeatureDebugEventKind
		}
		obj.Name("kind").String(kind)
		obj.Name("creationDate").Float64(float64(evt.CreationDate))
		obj.Name("key").String(evt.Key)
		if evt.debug {
			// Debug events get a full context, since their purpose is to show exactly what went
			// into an evaluation.
			ef.contextFormatter.WriteContext(obj.Name("context"), &evt.Context)
		} else {
			writeContextKeys(&obj, &evt.Context.context)
		}
		if evt.Version.IsDefined() {
			obj.Name("version").Int(evt.Version.IntValue())
		}
		if evt.Variation.IsDefined() {
			obj.Name("variation").Int(evt.Variation.IntValue())
		}
		evt.Value.WriteToJSONWriter(obj.Name("value"))
		evt.Default.WriteToJSONWriter(obj.Name("default"))
		if evt.PrereqOf.IsDefined() {
			obj.Name("prereqOf").String(evt.PrereqOf.StringValue())
		}
		if evt.Reason.GetKind() != "" {
			evt.Reason.WriteToJSONWriter(obj.Name("reason"))
		}
		writeSamplingRatio(&obj, evt.SamplingRatio)
		obj.End()

	case indexEvent:
		obj := w.Object()
		obj.Name("kind").String(IndexEventKind)
		obj.Name("creationDate").Float64(float64(evt.CreationDate))
		ef.contextFormatter.WriteContext(obj.Name("context"), &evt.Context)
		obj.End()

	case IdentifyEventData:
		obj := w.Object()
		obj.Name("kind").String(IdentifyEventKind)
		obj.Name("creationDate").Float64(float64(evt.CreationDate))
		ef.contextFormatter.WriteContext(obj.Name("context"), &evt.Context)
		writeSamplingRatio(&obj, evt.SamplingRatio)
		obj.End()

	case CustomEventData:
		obj := w.Object()
		obj.Name("kind").String(CustomEventKind)
		obj.Name("creationDate").Float64(float64(evt.CreationDate))
		obj.Name("key").String(evt.Key)
		writeContextKeys(&obj, &evt.Context.context)
		if !evt.Data.IsNull() {
			evt.Data.WriteToJSONWriter(obj.Name("data"))
		}
		if evt.HasMetric {
			obj.Name("metricValue").Float64(evt.MetricValue)
		}
		writeSamplingRatio(&obj, evt.SamplingRatio)
		obj.End()

	case MigrationOpEventData:
		ef.writeMigrationOpEvent(w, evt)

	case rawEvent:
		w.Raw(evt.data)
	}
}

func (ef eventOutputFormatter) writeMigrationOpEvent(w *jwriter.Writer, evt MigrationOpEventData) {
	obj := w.Object()
	obj.Name("kind").String(MigrationOpEventKind)
	obj.Name("creationDate").Float64(float64(evt.CreationDate))
	obj.Name("operation").String(string(evt.Op))
	writeContextKeys(&obj, &evt.Context.context)
	writeSamplingRatio(&obj, evt.SamplingRatio)

	evaluationObj := obj.Name("evaluation").Object()
	evaluationObj.Name("key").String(evt.FlagKey)
	if evt.Version.IsDefined() {
		evaluationObj.Name("version").Int(evt.Version.IntValue())
	}
	if evt.Evaluation.VariationIndex.IsDefined() {
		evaluationObj.Name("variation").Int(evt.Evaluation.VariationIndex.IntValue())
	}
	evt.Evaluation.Value.WriteToJSONWriter(evaluationObj.Name("value"))
	evaluationObj.Name("default").String(string(evt.Default))
	if evt.Evaluation.Reason.GetKind() != "" {
		evt.Evaluation.Reason.WriteToJSONWriter(evaluationObj.Name("reason"))
	}
	evaluationObj.End()

	measurementsArr := obj.Name("measurements").Array()

	if len(evt.Invoked) != 0 {
		mObj := w.Object()
		mObj.Name("key").String("invoked")
		valuesObj := mObj.Name("values").Object()
		for origin := range evt.Invoked {
			valuesObj.Name(string(origin)).Bool(true)
		}
		valuesObj.End()
		mObj.End()
	}

	if evt.ConsistencyCheck != nil {
		mObj := w.Object()
		mObj.Name("key").String("consistent")
		mObj.Name("value").Bool(evt.ConsistencyCheck.Consistent())
		if ratio := evt.ConsistencyCheck.SamplingRatio(); ratio != 1 {
			mObj.Name("samplingRatio").Int(ratio)
		}
		mObj.End()
	}

	if len(evt.Latency) != 0 {
		mObj := w.Object()
		mObj.Name("key").String("latency_ms")
		valuesObj := mObj.Name("values").Object()
		for origin, latencyMS := range evt.Latency {
			valuesObj.Name(string(origin)).Int(latencyMS)
		}
		valuesObj.End()
		mObj.End()
	}

	if len(evt.Error) != 0 {
		mObj := w.Object()
		mObj.Name("key").String("error")
		valuesObj := mObj.Name("values").Object()
		for origin := range evt.Error {
			valuesObj.Name(string(origin)).Bool(true)
		}
		valuesObj.End()
		mObj.End()
	}

	measurementsArr.End()
	obj.End()
}

func (ef eventOutputFormatter) writeSummaryEvent(w *jwriter.Writer, summary eventSummary) {
	obj := w.Object()
	obj.Name("kind").String(SummaryEventKind)
	obj.Name("startDate").Float64(float64(summary.startDate))
	obj.Name("endDate").Float64(float64(summary.endDate))

	flagsObj := obj.Name("features").Object()

	// Group the counters by flag key.
	countersByFlag := make(map[string][]counterKey, len(summary.counters))
	for key := range summary.counters {
		countersByFlag[key.key] = append(countersByFlag[key.key], key)
	}

	for flagKey, counterKeys := range countersByFlag {
		flagObj := flagsObj.Name(flagKey).Object()

		// The default value is the same for all counters of one flag, so take it from the first.
		summary.counters[counterKeys[0]].flagDefault.WriteToJSONWriter(flagObj.Name("default"))

		kindsArr := flagObj.Name("contextKinds").Array()
		for kind := range summary.contextKinds[flagKey] {
			w.String(string(kind))
		}
		kindsArr.End()

		countersArr := flagObj.Name("counters").Array()
		for _, counterKey := range counterKeys {
			value := summary.counters[counterKey]
			counterObj := w.Object()
			if counterKey.variation.IsDefined() {
				counterObj.Name("variation").Int(counterKey.variation.IntValue())
			}
			if counterKey.version.IsDefined() {
				counterObj.Name("version").Int(counterKey.version.IntValue())
			} else {
				counterObj.Name("unknown").Bool(true)
			}
			value.flagValue.WriteToJSONWriter(counterObj.Name("value"))
			counterObj.Name("count").Int(value.count)
			counterObj.End()
		}
		countersArr.End()

		flagObj.End()
	}

	flagsObj.End()
	obj.End()
}

// writeContextKeys writes the minimal representation of the context for event kinds that do not
// carry the full (redacted) context: an object mapping each individual context's kind to its key.
func writeContextKeys(obj *jwriter.ObjectState, c *ldcontext.Context) {
	keysObj := obj.Name("contextKeys").Object()
	for i := 0; i < c.IndividualContextCount(); i++ {
		if individual := c.IndividualContextByIndex(i); individual.IsDefined() {
			keysObj.Name(string(individual.Kind())).String(individual.Key())
		}
	}
	keysObj.End()
}

func writeSamplingRatio(obj *jwriter.ObjectState, ratio ldvalue.OptionalInt) {
	if value := ratio.OrElse(1); value != 1 {
		obj.Name("samplingRatio").Int(value)
	}
}
