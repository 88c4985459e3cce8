package feed

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// TriggerOptions configures a Trigger.
type TriggerOptions struct {
	// ThresholdPx is the remaining scroll distance, in pixels, at or below
	// which an approach event fires the callback.
	ThresholdPx float64
	// Throttle is the minimum interval between evaluations; observations
	// arriving faster than this are dropped so the callback cannot fire on
	// every scroll tick. Zero disables throttling.
	Throttle time.Duration
	// HasMore gates firing entirely: when it reports false the trigger
	// never fires. Nil means always armed.
	HasMore func() bool
}

// Trigger invokes a load-more callback when the viewport nears the end of
// content.
//
// The owning view feeds it approach events (remaining scroll distance in
// pixels) via Observe. The callback fires at most once per approach: while
// a prior invocation is unsettled, further observations are suppressed. If
// the callback fails, the trigger re-arms so a later approach retries; the
// error itself is the accumulator's to surface, not the trigger's.
type Trigger struct {
	onTrigger func(context.Context) error
	opts      TriggerOptions

	mu       sync.Mutex
	lastEval time.Time
	inFlight bool
	closed   bool
	settled  sync.WaitGroup

	// now is stubbed in tests
	now func() time.Time
}

// NewTrigger creates a trigger around the given load-more callback.
func NewTrigger(onTrigger func(context.Context) error, opts TriggerOptions) *Trigger {
	return &Trigger{
		onTrigger: onTrigger,
		opts:      opts,
		now:       time.Now,
	}
}

// Observe reports the remaining scroll distance to content-end and fires
// the callback asynchronously when warranted. It returns true if this
// observation fired the callback.
func (t *Trigger) Observe(ctx context.Context, remainingPx float64) bool {
	t.mu.Lock()

	if t.closed || t.inFlight {
		t.mu.Unlock()
		return false
	}

	// Throttle evaluation: drop observations arriving inside the window
	now := t.now()
	if t.opts.Throttle > 0 && !t.lastEval.IsZero() && now.Sub(t.lastEval) < t.opts.Throttle {
		t.mu.Unlock()
		return false
	}
	t.lastEval = now

	if remainingPx > t.opts.ThresholdPx {
		t.mu.Unlock()
		return false
	}
	if t.opts.HasMore != nil && !t.opts.HasMore() {
		t.mu.Unlock()
		return false
	}

	t.inFlight = true
	t.settled.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.settled.Done()
		if err := t.onTrigger(ctx); err != nil {
			// Re-arm and leave error surfacing to the accumulator
			log.Debug().Err(err).Msg("load-more trigger failed, re-arming")
		}
		t.mu.Lock()
		t.inFlight = false
		t.mu.Unlock()
	}()
	return true
}

// Close detaches the trigger: no further observations fire. It waits for
// any in-flight callback to settle so the owning view can tear down without
// leaving work dangling.
func (t *Trigger) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	t.settled.Wait()
}
