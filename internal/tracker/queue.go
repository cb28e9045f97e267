package tracker

import (
	"log"
	"sort"
	"time"

	"golang.org/x/time/rate"
)

// inboundEvent is the sum of everything the session ingests. Exactly one
// field is set.
type inboundEvent struct {
	detection *DetectionEvent
	tick      *TickEvent
	lifecycle *MatchLifecycleEvent
}

func (e inboundEvent) timestamp() time.Time {
	switch {
	case e.detection != nil:
		return e.detection.Timestamp
	case e.tick != nil:
		return e.tick.Timestamp
	case e.lifecycle != nil:
		return e.lifecycle.Timestamp
	}
	return time.Time{}
}

// reorderQueue buffers incoming events for a short window so that
// producers may deliver them out of arrival order, and releases them in
// strict timestamp order. The delay is bounded, the size is not. Events
// older than the already-committed frontier are dropped with a throttled
// diagnostic rather than silently misordered.
type reorderQueue struct {
	window   time.Duration
	pending  []inboundEvent // sorted by timestamp
	frontier time.Time      // timestamp of the newest committed event
	maxSeen  time.Time
	dropped  int

	dropLog *rate.Limiter
}

func newReorderQueue(window time.Duration) *reorderQueue {
	return &reorderQueue{
		window: window,
		// At most one drop diagnostic per second; a misbehaving producer
		// must not flood the log.
		dropLog: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// push buffers an event and returns every buffered event that has aged
// past the reordering window, in timestamp order. dropped reports that
// the pushed event arrived behind the committed frontier and was
// discarded.
func (q *reorderQueue) push(ev inboundEvent) (ready []inboundEvent, dropped bool) {
	ts := ev.timestamp()
	if !q.frontier.IsZero() && ts.Before(q.frontier) {
		q.dropped++
		if q.dropLog.Allow() {
			log.Printf("[ReorderQueue] Dropped event %v behind committed frontier %v (%d dropped total)",
				ts, q.frontier, q.dropped)
		}
		return nil, true
	}

	idx := sort.Search(len(q.pending), func(i int) bool {
		return q.pending[i].timestamp().After(ts)
	})
	q.pending = append(q.pending, inboundEvent{})
	copy(q.pending[idx+1:], q.pending[idx:])
	q.pending[idx] = ev

	if ts.After(q.maxSeen) {
		q.maxSeen = ts
	}

	cutoff := q.maxSeen.Add(-q.window)
	n := 0
	for n < len(q.pending) && !q.pending[n].timestamp().After(cutoff) {
		n++
	}
	ready = q.pending[:n:n]
	q.pending = q.pending[n:]
	if n > 0 {
		q.frontier = ready[n-1].timestamp()
	}
	return ready, false
}

// flush releases everything still buffered, in timestamp order. Used at
// match end.
func (q *reorderQueue) flush() []inboundEvent {
	out := q.pending
	q.pending = nil
	if len(out) > 0 {
		q.frontier = out[len(out)-1].timestamp()
	}
	return out
}

// reset discards all buffered events and the frontier.
func (q *reorderQueue) reset() {
	q.pending = nil
	q.frontier = time.Time{}
	q.maxSeen = time.Time{}
	q.dropped = 0
}

func (q *reorderQueue) droppedCount() int {
	return q.dropped
}
