package trace

import (
	"context"
	"fmt"
	"time"
)

// ReplayOptions controls pacing during a replay.
type ReplayOptions struct {
	// Speed multiplies replay speed: 2.0 plays twice as fast as recorded.
	// Zero or negative replays with no delays at all.
	Speed float64

	// MaxGap caps the delay between consecutive events, so long idle
	// stretches in a recording don't stall the replay.
	// Default: 5 seconds
	MaxGap time.Duration

	// Progress, if set, is called after each delivered event with the
	// number delivered so far and the total.
	Progress func(done, total int)
}

// Replay feeds recorded events into a sink, pacing them by their recorded
// timestamps. Delivery errors abort the replay with the offending line's
// index.
func Replay(ctx context.Context, events []Event, sink Sink, opts ReplayOptions) error {
	if opts.MaxGap == 0 {
		opts.MaxGap = 5 * time.Second
	}

	var prev time.Time
	for i, ev := range events {
		if opts.Speed > 0 && !prev.IsZero() {
			gap := ev.Timestamp.Sub(prev)
			if gap > 0 {
				delay := time.Duration(float64(gap) / opts.Speed)
				if delay > opts.MaxGap {
					delay = opts.MaxGap
				}
				if delay < 10*time.Millisecond {
					delay = 10 * time.Millisecond
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}
		}
		prev = ev.Timestamp

		if err := ev.Deliver(sink); err != nil {
			return fmt.Errorf("replay event %d: %w", i+1, err)
		}
		if opts.Progress != nil {
			opts.Progress(i+1, len(events))
		}
	}
	return nil
}
