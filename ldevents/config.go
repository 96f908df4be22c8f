package ldevents

import (
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldattr"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
)

// Default values used when the corresponding EventsConfiguration field is zero.
const (
	// DefaultEventCapacity is the default value for EventsConfiguration.Capacity.
	DefaultEventCapacity = 1000
	// DefaultFlushInterval is the default value for EventsConfiguration.FlushInterval.
	DefaultFlushInterval = 5 * time.Second
	// DefaultContextKeysCapacity is the default value for EventsConfiguration.UserKeysCapacity.
	DefaultContextKeysCapacity = 1000
	// DefaultContextKeysFlushInterval is the default value for
	// EventsConfiguration.UserKeysFlushInterval.
	DefaultContextKeysFlushInterval = 5 * time.Minute
)

// EventsConfiguration contains options affecting the behavior of the events engine.
type EventsConfiguration struct {
	// Sets whether or not all context attributes (other than the key) should be hidden from
	// LaunchDarkly. If this is true, all attribute values will be private, not just the attributes
	// specified in PrivateAttributes.
	AllAttributesPrivate bool
	// The capacity of the events buffer. The client buffers up to this many events in memory before
	// flushing. If the capacity is exceeded before the buffer is flushed, events will be discarded.
	Capacity int
	// The implementation of event delivery to use.
	EventSender EventSender
	// The time between flushes of the event buffer. Decreasing the flush interval means that the
	// event buffer is less likely to reach capacity.
	FlushInterval time.Duration
	// The destination for log output.
	Loggers ldlog.Loggers
	// Attribute references that should be considered private for all contexts.
	PrivateAttributes []ldattr.Ref
	// The number of context keys that the event processor can remember at any one time, so that
	// duplicate context details will not be sent in analytics events.
	//
	// The name of this field refers to "users" because it predates the context model, and is
	// retained so that configuration code written against older versions keeps working.
	UserKeysCapacity int
	// The interval at which the event processor will reset its set of known context keys.
	UserKeysFlushInterval time.Duration
	// Used in testing to instrument the current time.
	currentTimeProvider func() ldtime.UnixMillisecondTime
	// Used in testing to make sampling decisions deterministic.
	eventSampler sampler
}
