package ldevents

import (
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
)

type defaultEventProcessor struct {
	inboxCh       chan eventDispatcherMessage
	inboxFullOnce sync.Once
	closeOnce     sync.Once
	loggers       ldlog.Loggers
}

// eventDispatcher is the single goroutine that owns all mutable event state: the outbox, the
// summarizer, and the set of recently seen context keys. Everything reaches it as a message on
// the inbox channel.
type eventDispatcher struct {
	config             EventsConfiguration
	outbox             *eventsOutbox
	flushCh            chan *flushPayload
	workersGroup       *sync.WaitGroup
	contextKeys        lruCache
	lastKnownPastTime  ldtime.UnixMillisecondTime
	disabled           bool
	currentTimestampFn func() ldtime.UnixMillisecondTime
	eventSampler       sampler
	stateLock          sync.Mutex
}

type flushPayload struct {
	events  []anyEventOutput
	summary eventSummary
}

// Payload of the inboxCh channel.
type eventDispatcherMessage interface{}

type sendEventMessage struct {
	event anyEventInput
}

type flushEventsMessage struct{}

type shutdownEventsMessage struct {
	replyCh chan struct{}
}

type syncEventsMessage struct {
	replyCh chan struct{}
}

const maxFlushWorkers = 5

// NewDefaultEventProcessor creates an instance of the default implementation of analytics event
// processing.
func NewDefaultEventProcessor(config EventsConfiguration) EventProcessor {
	capacity := config.Capacity
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}
	inboxCh := make(chan eventDispatcherMessage, capacity)
	startEventDispatcher(config, capacity, inboxCh)
	return &defaultEventProcessor{
		inboxCh: inboxCh,
		loggers: config.Loggers,
	}
}

func (ep *defaultEventProcessor) RecordEvaluation(e EvaluationData) {
	ep.postNonBlockingMessageToInbox(sendEventMessage{event: e})
}

func (ep *defaultEventProcessor) RecordIdentifyEvent(e IdentifyEventData) {
	ep.postNonBlockingMessageToInbox(sendEventMessage{event: e})
}

func (ep *defaultEventProcessor) RecordCustomEvent(e CustomEventData) {
	ep.postNonBlockingMessageToInbox(sendEventMessage{event: e})
}

func (ep *defaultEventProcessor) RecordMigrationOpEvent(e MigrationOpEventData) {
	ep.postNonBlockingMessageToInbox(sendEventMessage{event: e})
}

func (ep *defaultEventProcessor) RecordRawEvent(data []byte) {
	ep.postNonBlockingMessageToInbox(sendEventMessage{event: rawEvent{data: data}})
}

func (ep *defaultEventProcessor) Flush() {
	ep.postNonBlockingMessageToInbox(flushEventsMessage{})
}

func (ep *defaultEventProcessor) FlushBlocking(timeout time.Duration) bool {
	ep.postNonBlockingMessageToInbox(flushEventsMessage{})
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	m := syncEventsMessage{replyCh: make(chan struct{})}
	select {
	case ep.inboxCh <- m:
	case <-deadline:
		return false
	}
	select {
	case <-m.replyCh:
		return true
	case <-deadline:
		return false
	}
}

func (ep *defaultEventProcessor) postNonBlockingMessageToInbox(e eventDispatcherMessage) {
	select {
	case ep.inboxCh <- e:
		return
	default:
	}
	// If the inbox is full, it means the eventDispatcher is seriously backed up with not-yet-processed
	// events. This is unlikely, but if it happens, it means the application is probably doing a ton of
	// flag evaluations across many goroutines, so if we wait for a space in the inbox, we risk a very
	// serious slowdown of the app. To avoid that, we'll just drop the event. The log warning about this
	// will only be shown once.
	ep.inboxFullOnce.Do(func() {
		ep.loggers.Warn("Events are being produced faster than they can be processed; some events will be dropped")
	})
}

func (ep *defaultEventProcessor) Close() error {
	ep.closeOnce.Do(func() {
		// We put the flush and shutdown messages directly into the channel instead of calling
		// postNonBlockingMessageToInbox, because we *do* want to block to make sure there is room in the
		// channel; these aren't analytics events, they are messages that are necessary for an orderly
		// shutdown.
		ep.inboxCh <- flushEventsMessage{}
		m := shutdownEventsMessage{replyCh: make(chan struct{})}
		ep.inboxCh <- m
		<-m.replyCh
	})
	return nil
}

func startEventDispatcher(
	config EventsConfiguration,
	outboxCapacity int,
	inboxCh <-chan eventDispatcherMessage,
) {
	ed := &eventDispatcher{
		config:             config,
		outbox:             newEventsOutbox(outboxCapacity, config.Loggers),
		flushCh:            make(chan *flushPayload, 1),
		workersGroup:       &sync.WaitGroup{},
		contextKeys:        newLruCache(config.UserKeysCapacity),
		currentTimestampFn: config.currentTimeProvider,
		eventSampler:       config.eventSampler,
	}

	if ed.currentTimestampFn == nil {
		ed.currentTimestampFn = ldtime.UnixMillisNow
	}
	if ed.eventSampler == nil {
		ed.eventSampler = newRandomSampler()
	}

	// Start a fixed-size pool of workers that wait on flushCh. This is the maximum number of
	// flushes we can do concurrently.
	formatter := newEventOutputFormatter(config)
	for i := 0; i < maxFlushWorkers; i++ {
		go runFlushTask(config, formatter, ed.flushCh, ed.workersGroup, ed.handleResult)
	}
	go ed.runMainLoop(inboxCh)
}

func (ed *eventDispatcher) runMainLoop(inboxCh <-chan eventDispatcherMessage) {
	flushInterval := ed.config.FlushInterval
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}
	contextKeysFlushInterval := ed.config.UserKeysFlushInterval
	if contextKeysFlushInterval <= 0 {
		contextKeysFlushInterval = DefaultContextKeysFlushInterval
	}
	flushTicker := time.NewTicker(flushInterval)
	contextKeysResetTicker := time.NewTicker(contextKeysFlushInterval)

	for {
		select {
		case message := <-inboxCh:
			switch m := message.(type) {
			case sendEventMessage:
				ed.processEvent(m.event)
			case flushEventsMessage:
				ed.triggerFlush()
			case syncEventsMessage:
				ed.workersGroup.Wait()
				m.replyCh <- struct{}{}
			case shutdownEventsMessage:
				flushTicker.Stop()
				contextKeysResetTicker.Stop()
				ed.workersGroup.Wait() // Wait for all in-progress flushes to complete
				close(ed.flushCh)      // Causes all idle flush workers to terminate
				m.replyCh <- struct{}{}
				return
			}
		case <-flushTicker.C:
			ed.triggerFlush()
		case <-contextKeysResetTicker.C:
			ed.contextKeys.clear()
		}
	}
}

func (ed *eventDispatcher) processEvent(evt anyEventInput) {
	switch evt := evt.(type) {
	case EvaluationData:
		ed.processEvaluationEvent(evt)
	case IdentifyEventData:
		ed.processIdentifyEvent(evt)
	case CustomEventData:
		ed.processCustomEvent(evt)
	case MigrationOpEventData:
		ed.processMigrationOpEvent(evt)
	case rawEvent:
		ed.outbox.addEvent(evt)
	}
}

func (ed *eventDispatcher) processEvaluationEvent(evt EvaluationData) {
	if !evt.ExcludeFromSummaries {
		ed.outbox.addToSummary(evt)
	}

	// The sampling decision is made once per input event, so that a full event and its debug
	// copy never disagree about whether the event happened.
	sampled := ed.eventSampler.Sample(evt.SamplingRatio.OrElse(1))

	willAddFullEvent := sampled && evt.RequireFullEvent
	var debugEvent anyEventOutput
	if sampled && ed.shouldDebugEvent(&evt) {
		de := evt
		de.debug = true
		debugEvent = de
	}

	ed.recordContext(evt.BaseEvent)

	if willAddFullEvent {
		ed.outbox.addEvent(evt)
	}
	if debugEvent != nil {
		ed.outbox.addEvent(debugEvent)
	}
}

func (ed *eventDispatcher) processIdentifyEvent(evt IdentifyEventData) {
	// An identify event carries the full context itself, so it takes the place of an index event
	// for that context.
	_ = ed.contextKeys.add(evt.Context.context.FullyQualifiedKey())
	if ed.eventSampler.Sample(evt.SamplingRatio.OrElse(1)) {
		ed.outbox.addEvent(evt)
	}
}

func (ed *eventDispatcher) processCustomEvent(evt CustomEventData) {
	ed.recordContext(evt.BaseEvent)
	if ed.eventSampler.Sample(evt.SamplingRatio.OrElse(1)) {
		ed.outbox.addEvent(evt)
	}
}

func (ed *eventDispatcher) processMigrationOpEvent(evt MigrationOpEventData) {
	if ed.eventSampler.Sample(evt.SamplingRatio.OrElse(1)) {
		ed.outbox.addEvent(evt)
	}
}

// recordContext adds an index event for any context that has not been seen recently. Index
// events are exempt from sampling; dropping one would leave the context keys in subsequent
// events without a referent.
func (ed *eventDispatcher) recordContext(base BaseEvent) {
	if ed.contextKeys.add(base.Context.context.FullyQualifiedKey()) {
		return
	}
	ed.outbox.addEvent(indexEvent{BaseEvent: base})
}

func (ed *eventDispatcher) shouldDebugEvent(evt *EvaluationData) bool {
	if evt.DebugEventsUntilDate == 0 {
		return false
	}
	// The "last known past time" comes from the last HTTP response we got from the server. In
	// case the client's time is set wrong, at least we know that any expiration date earlier
	// than that point is definitely in the past. If there's any discrepancy, we want to err on
	// the side of cutting off event debugging sooner.
	ed.stateLock.Lock() // This should be done infrequently since it's only for debug events
	defer ed.stateLock.Unlock()
	return evt.DebugEventsUntilDate > ed.lastKnownPastTime &&
		evt.DebugEventsUntilDate > ed.currentTimestampFn()
}

// Signal that we would like to do a flush as soon as possible.
func (ed *eventDispatcher) triggerFlush() {
	if ed.isDisabled() {
		ed.outbox.clear()
		return
	}
	// Is there anything to flush?
	payload := ed.outbox.getPayload()
	totalEventCount := len(payload.events)
	if payload.summary.hasCounters() {
		totalEventCount++
	}
	if totalEventCount == 0 {
		return
	}
	ed.workersGroup.Add(1) // Increment the count of active flushes
	select {
	case ed.flushCh <- &payload:
		// If the channel wasn't full, then there is a worker available who will pick up this
		// flush payload and send it. The event outbox and summary state can now be cleared from
		// the main goroutine.
		ed.outbox.clear()
	default:
		// We can't start a flush right now because we're waiting for one of the workers to pick
		// up the last one. Do not reset the event outbox or summary state.
		ed.workersGroup.Done()
	}
}

func (ed *eventDispatcher) isDisabled() bool {
	// Since we're using a mutex, we should avoid calling this often.
	ed.stateLock.Lock()
	defer ed.stateLock.Unlock()
	return ed.disabled
}

func (ed *eventDispatcher) handleResult(result EventSenderResult) {
	if result.MustShutDown {
		ed.stateLock.Lock()
		defer ed.stateLock.Unlock()
		ed.disabled = true
	} else if result.TimeFromServer > 0 {
		ed.stateLock.Lock()
		defer ed.stateLock.Unlock()
		ed.lastKnownPastTime = result.TimeFromServer
	}
}

func runFlushTask(config EventsConfiguration, formatter eventOutputFormatter, flushCh <-chan *flushPayload,
	workersGroup *sync.WaitGroup, resultFn func(EventSenderResult)) {
	for {
		payload, more := <-flushCh
		if !more {
			// Channel has been closed - we're shutting down
			break
		}
		bytes, count := formatter.makeOutputEvents(payload.events, payload.summary)
		if len(bytes) > 0 {
			result := config.EventSender.SendEventData(AnalyticsEventDataKind, bytes, count)
			resultFn(result)
		}
		workersGroup.Done() // Decrement the count of in-progress flushes
	}
}
