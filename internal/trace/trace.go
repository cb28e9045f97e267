// Package trace reads and writes match traces: newline-delimited JSON
// streams of the events the tracker ingests. The capture/classification
// pipeline appends detections to a live event log which the tracker
// tails; recorded traces can be replayed offline to evaluate tunables.
package trace

import (
	"fmt"
	"time"

	"github.com/croverlay/croverlay/internal/knowledge"
	"github.com/croverlay/croverlay/internal/tracker"
)

// Event kinds in a trace line.
const (
	TypeDetection = "detection"
	TypeTick      = "tick"
	TypeLifecycle = "lifecycle"
)

// Event is one line of a trace file. Exactly one of the kind-specific
// field groups is populated, selected by Type.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Detection fields
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
	FrameID       string             `json:"frameId,omitempty"`
	Evolved       bool               `json:"evolved,omitempty"`

	// Lifecycle fields
	Kind  string `json:"kind,omitempty"`
	Phase string `json:"phase,omitempty"`
}

// Sink consumes trace events. *tracker.Session satisfies it.
type Sink interface {
	HandleDetection(ev tracker.DetectionEvent) error
	HandleTick(ev tracker.TickEvent) error
	HandleLifecycle(ev tracker.MatchLifecycleEvent) error
}

// Deliver converts the event to its tracker form and feeds the sink.
func (e Event) Deliver(sink Sink) error {
	switch e.Type {
	case TypeDetection:
		probs := make(map[knowledge.CardID]float64, len(e.Probabilities))
		for id, p := range e.Probabilities {
			probs[knowledge.CardID(id)] = p
		}
		return sink.HandleDetection(tracker.DetectionEvent{
			Timestamp:     e.Timestamp,
			Probabilities: probs,
			FrameID:       e.FrameID,
			Evolved:       e.Evolved,
		})
	case TypeTick:
		return sink.HandleTick(tracker.TickEvent{Timestamp: e.Timestamp})
	case TypeLifecycle:
		return sink.HandleLifecycle(tracker.MatchLifecycleEvent{
			Kind:      tracker.LifecycleKind(e.Kind),
			Timestamp: e.Timestamp,
			Phase:     knowledge.Phase(e.Phase),
		})
	default:
		return fmt.Errorf("unknown trace event type %q", e.Type)
	}
}

// FromDetection builds a trace line from a tracker detection.
func FromDetection(ev tracker.DetectionEvent) Event {
	probs := make(map[string]float64, len(ev.Probabilities))
	for id, p := range ev.Probabilities {
		probs[string(id)] = p
	}
	return Event{
		Type:          TypeDetection,
		Timestamp:     ev.Timestamp,
		Probabilities: probs,
		FrameID:       ev.FrameID,
		Evolved:       ev.Evolved,
	}
}

// FromTick builds a trace line from a tick.
func FromTick(ev tracker.TickEvent) Event {
	return Event{Type: TypeTick, Timestamp: ev.Timestamp}
}

// FromLifecycle builds a trace line from a lifecycle transition.
func FromLifecycle(ev tracker.MatchLifecycleEvent) Event {
	return Event{
		Type:      TypeLifecycle,
		Timestamp: ev.Timestamp,
		Kind:      string(ev.Kind),
		Phase:     string(ev.Phase),
	}
}
