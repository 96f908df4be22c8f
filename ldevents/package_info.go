// Package ldevents implements the analytics event pipeline: buffering of evaluation,
// identify, custom, and migration operation events, summarization of evaluation counts,
// private attribute redaction, and scheduled delivery of JSON payloads to an EventSender.
//
// The event processor guarantees that recording an event never blocks the caller. Events
// are posted to a bounded inbox and consumed by a single dispatcher goroutine; if the
// inbox fills up, new events are dropped (with a warning logged once per lifetime of the
// processor). Delivery itself is delegated to the EventSender, so this package contains
// no HTTP logic of its own.
package ldevents
