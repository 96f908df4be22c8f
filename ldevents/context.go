package ldevents

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
)

// EventInputContext represents context information that is being used as part of the inputs to an
// event-generating action. It is a combination of the standard Context struct with additional
// information that may be relevant outside of the standard SDK event generation context.
//
// Specifically, event-forwarding services may use this package to reprocess events they have
// received from other SDKs. In that scenario the JSON representation of the context may have
// custom properties that are only relevant to that usage, so the original JSON must be preserved
// as-is rather than re-serialized.
type EventInputContext struct {
	context       ldcontext.Context
	preserialized []byte
}

// EventContext is a synonym for EventInputContext, retained for compatibility with code written
// against earlier versions of this package.
type EventContext = EventInputContext

// Context creates an EventInputContext that is exactly equivalent to the given Context.
func Context(context ldcontext.Context) EventInputContext {
	return EventInputContext{context: context}
}

// PreserializedContext creates an EventInputContext that contains both a Context and its already-
// computed JSON representation. Use this when the JSON representation was received from elsewhere
// and must be preserved verbatim; the event output formatter will write the serialized form
// as-is, bypassing all attribute redaction logic.
func PreserializedContext(context ldcontext.Context, jsonData []byte) EventInputContext {
	return EventInputContext{context: context, preserialized: jsonData}
}
