package poller

import (
	"context"
	"sync"
	"time"

	"marketsync/pkg/logger"
	"marketsync/pkg/telemetry"
)

// Driver owns the named polling concerns of a client (unread count,
// conversation messages, watermark collections). Each concern has an
// explicit start/stop lifecycle tied to UI mount/unmount, one fixed-interval
// loop, and never more than one outstanding request: the fetch runs inline
// in the concern's own loop, so overlapping polls cannot happen by
// construction. On failure the last known good value is retained and the
// concern retries with exponential backoff capped at the next tick.

// FetchFunc performs one poll. The context is canceled when the concern is
// stopped; in-flight fetches may finish but their results are discarded.
type FetchFunc func(ctx context.Context) (interface{}, error)

// Result is the snapshot surfaced to UI observers.
type Result struct {
	Value       interface{}
	LastUpdated time.Time
	Err         error
}

// Concern describes one polled value.
type Concern struct {
	Name     string
	Interval time.Duration
	Fetch    FetchFunc
	// OnUpdate, when set, is called after every attempt with the current
	// snapshot. Called from the concern's loop; keep it cheap.
	OnUpdate func(Result)
}

type running struct {
	Concern
	cancel context.CancelFunc
}

// Driver schedules the concerns. The zero value is not usable; call New.
type Driver struct {
	mu       sync.Mutex
	concerns map[string]*running
	results  map[string]Result

	// backoffBase seeds the failure backoff; doubling is capped at the
	// concern's interval so a failing concern degrades to plain ticking.
	backoffBase time.Duration
}

// New returns an empty driver.
func New() *Driver {
	return &Driver{
		concerns:    map[string]*running{},
		results:     map[string]Result{},
		backoffBase: 500 * time.Millisecond,
	}
}

// Start begins polling the concern. Starting a name that is already running
// replaces it: the old loop is canceled and any in-flight result discarded.
// The first fetch fires immediately.
func (d *Driver) Start(c Concern) {
	if c.Interval <= 0 || c.Fetch == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &running{Concern: c, cancel: cancel}

	d.mu.Lock()
	if old, ok := d.concerns[c.Name]; ok {
		old.cancel()
	}
	d.concerns[c.Name] = r
	d.mu.Unlock()

	go d.loop(ctx, r)
	logger.Debug("poll_concern_started", "concern", c.Name, "interval", c.Interval)
}

// Stop cancels the concern's loop. The last snapshot stays readable so the
// UI keeps showing the last known data after unmount and remount.
func (d *Driver) Stop(name string) {
	d.mu.Lock()
	r, ok := d.concerns[name]
	if ok {
		delete(d.concerns, name)
	}
	d.mu.Unlock()
	if ok {
		r.cancel()
		logger.Debug("poll_concern_stopped", "concern", name)
	}
}

// StopAll cancels every running concern.
func (d *Driver) StopAll() {
	d.mu.Lock()
	rs := make([]*running, 0, len(d.concerns))
	for _, r := range d.concerns {
		rs = append(rs, r)
	}
	d.concerns = map[string]*running{}
	d.mu.Unlock()
	for _, r := range rs {
		r.cancel()
	}
}

// Snapshot returns the latest result for a concern. ok is false when the
// concern has never polled.
func (d *Driver) Snapshot(name string) (Result, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res, ok := d.results[name]
	return res, ok
}

func (d *Driver) loop(ctx context.Context, r *running) {
	failures := 0
	var holdUntil time.Time

	tick := time.NewTicker(r.Interval)
	defer tick.Stop()

	d.poll(ctx, r, &failures, &holdUntil)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if time.Now().Before(holdUntil) {
				telemetry.PollTicks.WithLabelValues(r.Name, "skipped").Inc()
				continue
			}
			d.poll(ctx, r, &failures, &holdUntil)
		}
	}
}

func (d *Driver) poll(ctx context.Context, r *running, failures *int, holdUntil *time.Time) {
	value, err := r.Fetch(ctx)
	if ctx.Err() != nil {
		// concern was stopped mid-flight; discard the result
		return
	}

	d.mu.Lock()
	if cur, ok := d.concerns[r.Name]; !ok || cur != r {
		// replaced by a newer generation while we were fetching
		d.mu.Unlock()
		return
	}
	prev := d.results[r.Name]
	var res Result
	if err != nil {
		// retain last known good value, surface the error alongside it
		res = Result{Value: prev.Value, LastUpdated: prev.LastUpdated, Err: err}
	} else {
		res = Result{Value: value, LastUpdated: time.Now()}
	}
	d.results[r.Name] = res
	d.mu.Unlock()

	if err != nil {
		*failures++
		shift := uint(*failures) - 1
		if shift > 10 {
			shift = 10
		}
		backoff := d.backoffBase << shift
		if backoff > r.Interval {
			backoff = r.Interval
		}
		*holdUntil = time.Now().Add(backoff)
		telemetry.PollTicks.WithLabelValues(r.Name, "error").Inc()
		logger.Warn("poll_failed", "concern", r.Name, "failures", *failures, "error", err)
	} else {
		*failures = 0
		*holdUntil = time.Time{}
		telemetry.PollTicks.WithLabelValues(r.Name, "ok").Inc()
	}

	if r.OnUpdate != nil {
		r.OnUpdate(res)
	}
}
