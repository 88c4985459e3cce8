package feed

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestTrigger_FiresOnApproach(t *testing.T) {
	var fired atomic.Int32
	tr := NewTrigger(func(ctx context.Context) error {
		fired.Add(1)
		return nil
	}, TriggerOptions{ThresholdPx: 200})
	defer tr.Close()

	if tr.Observe(context.Background(), 500) {
		t.Error("fired above threshold")
	}
	if !tr.Observe(context.Background(), 150) {
		t.Error("did not fire at threshold approach")
	}

	waitFor(t, func() bool { return fired.Load() == 1 })
}

func TestTrigger_SuppressedWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	var fired atomic.Int32
	tr := NewTrigger(func(ctx context.Context) error {
		fired.Add(1)
		<-release
		return nil
	}, TriggerOptions{ThresholdPx: 200})

	if !tr.Observe(context.Background(), 0) {
		t.Fatal("first observation did not fire")
	}
	// Unsettled callback suppresses further firing
	for i := 0; i < 5; i++ {
		if tr.Observe(context.Background(), 0) {
			t.Fatal("fired while previous trigger unsettled")
		}
	}

	close(release)
	tr.Close()
	if n := fired.Load(); n != 1 {
		t.Errorf("fired %d times, want 1", n)
	}
}

func TestTrigger_SuppressedWhenNoMore(t *testing.T) {
	var fired atomic.Int32
	tr := NewTrigger(func(ctx context.Context) error {
		fired.Add(1)
		return nil
	}, TriggerOptions{
		ThresholdPx: 200,
		HasMore:     func() bool { return false },
	})
	defer tr.Close()

	if tr.Observe(context.Background(), 0) {
		t.Error("fired although hasMore is false")
	}
	if fired.Load() != 0 {
		t.Error("callback ran although hasMore is false")
	}
}

func TestTrigger_RearmsAfterFailure(t *testing.T) {
	var calls atomic.Int32
	tr := NewTrigger(func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			return errors.New("load failed")
		}
		return nil
	}, TriggerOptions{ThresholdPx: 200})
	defer tr.Close()

	if !tr.Observe(context.Background(), 0) {
		t.Fatal("first observation did not fire")
	}
	waitFor(t, func() bool { return calls.Load() == 1 })

	// After the failed settle the trigger is armed again
	waitFor(t, func() bool { return tr.Observe(context.Background(), 0) })
	waitFor(t, func() bool { return calls.Load() == 2 })
}

func TestTrigger_Throttle(t *testing.T) {
	var fired atomic.Int32
	now := time.Now()
	tr := NewTrigger(func(ctx context.Context) error {
		fired.Add(1)
		return nil
	}, TriggerOptions{ThresholdPx: 200, Throttle: 100 * time.Millisecond})
	tr.now = func() time.Time { return now }
	defer tr.Close()

	// First observation above threshold consumes the evaluation window
	if tr.Observe(context.Background(), 1000) {
		t.Fatal("fired above threshold")
	}
	// Observation inside the window is dropped even though it approaches
	if tr.Observe(context.Background(), 0) {
		t.Error("throttled observation fired")
	}

	// Past the window it evaluates and fires
	now = now.Add(150 * time.Millisecond)
	if !tr.Observe(context.Background(), 0) {
		t.Error("observation after throttle window did not fire")
	}
	waitFor(t, func() bool { return fired.Load() == 1 })
}

func TestTrigger_ClosedNeverFires(t *testing.T) {
	var fired atomic.Int32
	tr := NewTrigger(func(ctx context.Context) error {
		fired.Add(1)
		return nil
	}, TriggerOptions{ThresholdPx: 200})

	tr.Close()
	if tr.Observe(context.Background(), 0) {
		t.Error("fired after Close")
	}
	if fired.Load() != 0 {
		t.Error("callback ran after Close")
	}
}

func TestTrigger_DrivesAccumulator(t *testing.T) {
	filters := map[string]string{}
	f := newFakeFetcher()
	f.page(filters, 1, 2, 2, 3, "A", "B")
	f.page(filters, 2, 2, 2, 3, "C")

	acc := NewAccumulator(f, "foods", 2)
	acc.Reset(filters)
	if err := acc.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tr := NewTrigger(acc.LoadMore, TriggerOptions{
		ThresholdPx: 200,
		HasMore:     acc.HasMore,
	})
	defer tr.Close()

	if !tr.Observe(context.Background(), 50) {
		t.Fatal("approach did not fire load-more")
	}
	waitFor(t, func() bool { return len(acc.Snapshot().Items) == 3 })

	// List exhausted: further approaches never fire
	if tr.Observe(context.Background(), 0) {
		t.Error("fired after exhaustion")
	}
}
