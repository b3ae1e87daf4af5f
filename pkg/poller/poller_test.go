package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestStartPollsImmediately(t *testing.T) {
	d := New()
	defer d.StopAll()

	var calls int64
	d.Start(Concern{
		Name:     "unread",
		Interval: time.Hour, // only the immediate poll can fire
		Fetch: func(context.Context) (interface{}, error) {
			atomic.AddInt64(&calls, 1)
			return 7, nil
		},
	})

	waitFor(t, time.Second, func() bool {
		_, ok := d.Snapshot("unread")
		return ok
	})

	res, _ := d.Snapshot("unread")
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value.(int) != 7 {
		t.Fatalf("value = %v, want 7", res.Value)
	}
	if atomic.LoadInt64(&calls) != 1 {
		t.Fatalf("fetch called %d times, want 1", calls)
	}
}

func TestFailureRetainsLastKnownGood(t *testing.T) {
	d := New()
	defer d.StopAll()

	var calls int64
	d.Start(Concern{
		Name:     "unread",
		Interval: 10 * time.Millisecond,
		Fetch: func(context.Context) (interface{}, error) {
			n := atomic.AddInt64(&calls, 1)
			if n == 1 {
				return 42, nil
			}
			return nil, errors.New("backend down")
		},
	})

	waitFor(t, time.Second, func() bool {
		res, ok := d.Snapshot("unread")
		return ok && res.Err != nil
	})

	res, _ := d.Snapshot("unread")
	if res.Value.(int) != 42 {
		t.Fatalf("last known good value lost: %v", res.Value)
	}
	if res.Err == nil {
		t.Fatalf("error not surfaced alongside the stale value")
	}
}

func TestStopRetainsSnapshot(t *testing.T) {
	d := New()

	d.Start(Concern{
		Name:     "unread",
		Interval: 10 * time.Millisecond,
		Fetch:    func(context.Context) (interface{}, error) { return 3, nil },
	})
	waitFor(t, time.Second, func() bool {
		_, ok := d.Snapshot("unread")
		return ok
	})
	d.Stop("unread")

	// snapshot survives unmount so a remounting UI can render instantly
	res, ok := d.Snapshot("unread")
	if !ok || res.Value.(int) != 3 {
		t.Fatalf("snapshot lost after stop: %v ok=%v", res.Value, ok)
	}
}

func TestRestartReplacesGeneration(t *testing.T) {
	d := New()
	defer d.StopAll()

	block := make(chan struct{})
	d.Start(Concern{
		Name:     "unread",
		Interval: time.Hour,
		Fetch: func(ctx context.Context) (interface{}, error) {
			<-block
			return "stale", nil
		},
	})

	// replace while the first fetch is still in flight
	d.Start(Concern{
		Name:     "unread",
		Interval: time.Hour,
		Fetch:    func(context.Context) (interface{}, error) { return "fresh", nil },
	})
	waitFor(t, time.Second, func() bool {
		res, ok := d.Snapshot("unread")
		return ok && res.Value == "fresh"
	})

	// let the replaced generation finish; its result must be discarded
	close(block)
	time.Sleep(50 * time.Millisecond)
	res, _ := d.Snapshot("unread")
	if res.Value != "fresh" {
		t.Fatalf("stale generation overwrote the snapshot: %v", res.Value)
	}
}

func TestOnUpdateObservesEveryAttempt(t *testing.T) {
	d := New()
	defer d.StopAll()

	got := make(chan Result, 8)
	d.Start(Concern{
		Name:     "watermark",
		Interval: time.Hour,
		Fetch:    func(context.Context) (interface{}, error) { return int64(5), nil },
		OnUpdate: func(r Result) { got <- r },
	})

	select {
	case r := <-got:
		if r.Value.(int64) != 5 {
			t.Fatalf("observer saw %v, want 5", r.Value)
		}
	case <-time.After(time.Second):
		t.Fatalf("observer never called")
	}
}

func TestInvalidConcernIgnored(t *testing.T) {
	d := New()
	d.Start(Concern{Name: "bad", Interval: 0, Fetch: func(context.Context) (interface{}, error) { return nil, nil }})
	d.Start(Concern{Name: "worse", Interval: time.Second})
	if _, ok := d.Snapshot("bad"); ok {
		t.Fatalf("zero-interval concern should not run")
	}
	if _, ok := d.Snapshot("worse"); ok {
		t.Fatalf("fetch-less concern should not run")
	}
}
