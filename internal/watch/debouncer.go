package watch

import (
	"context"
	"sync"
	"time"
)

// debouncer coalesces bursts of change events into a single rebuild. It is
// single-flight: the rebuild runs on the debouncer's own goroutine, and
// events arriving while a rebuild is in flight collapse into exactly one
// follow-up run. Overlapping writers on the output trees are therefore
// impossible.
type debouncer struct {
	quiet time.Duration
	fn    func(ctx context.Context, reason string)

	mu         sync.Mutex
	lastReason string

	ch chan struct{}
}

func newDebouncer(quiet time.Duration, fn func(ctx context.Context, reason string)) *debouncer {
	return &debouncer{
		quiet: quiet,
		fn:    fn,
		ch:    make(chan struct{}, 1),
	}
}

// trigger requests a rebuild. Safe from any goroutine.
func (d *debouncer) trigger(reason string) {
	d.mu.Lock()
	d.lastReason = reason
	d.mu.Unlock()

	select {
	case d.ch <- struct{}{}:
	default:
		// A trigger is already pending.
	}
}

// take consumes the pending reason, returning "" when nothing is pending.
func (d *debouncer) take() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	reason := d.lastReason
	d.lastReason = ""
	return reason
}

// run processes triggers until ctx is done.
func (d *debouncer) run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	var timerC <-chan time.Time

	reset := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(d.quiet)
		timerC = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-d.ch:
			// Restart the quiet window on every burst of events.
			reset()
		case <-timerC:
			timerC = nil
			reason := d.take()
			if reason == "" {
				continue
			}
			// Runs on this goroutine: triggers arriving meanwhile buffer in
			// d.ch and produce one follow-up pass.
			d.fn(ctx, reason)
		}
	}
}
