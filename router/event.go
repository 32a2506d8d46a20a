package router

import "context"

// Path is the execution path chosen for a request.
type Path string

// Execution paths.
const (
	PathStandard Path = "standard"
	PathAdvanced Path = "advanced"
)

// Reason explains a routing event.
type Reason string

// Routing reasons.
const (
	ReasonNoToolFields          Reason = "no_tool_fields"
	ReasonToolFields            Reason = "tool_fields"
	ReasonCapabilityUnavailable Reason = "capability_unavailable"
	ReasonPayloadBuildFailure   Reason = "payload_build_failure"
	ReasonEmptyResult           Reason = "empty_or_unparsable_result"
	ReasonProducerFailure       Reason = "producer_failure"
)

// EventKind classifies an Event.
type EventKind string

// Event kinds.
const (
	EventPathSelected    EventKind = "path_selected"
	EventFallback        EventKind = "fallback"
	EventStreamTruncated EventKind = "stream_truncated"
)

// Event describes one routing decision or absorbed failure. Err is set for fallbacks
// and truncations caused by an error.
type Event struct {
	Kind      EventKind
	Path      Path
	Reason    Reason
	Model     string
	Streaming bool
	Err       error
}

// Observer receives routing events. Implementations must be safe for concurrent use
// and must not block; truncation events arrive on the producer goroutine.
type Observer interface {
	Observe(ctx context.Context, e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, e Event)

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, e Event) { f(ctx, e) }

// Observers fans out to several observers in order.
type Observers []Observer

// Observe calls every observer.
func (o Observers) Observe(ctx context.Context, e Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(ctx, e)
		}
	}
}

type nopObserver struct{}

func (nopObserver) Observe(context.Context, Event) {}
