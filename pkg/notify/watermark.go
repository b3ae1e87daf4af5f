package notify

import (
	"errors"
	"fmt"
	"sync"

	"marketsync/pkg/logger"
	"marketsync/pkg/store"
	"marketsync/pkg/telemetry"
)

// ErrUnknownCollection reports a diff against a collection that is neither
// configured nor registered.
var ErrUnknownCollection = errors.New("unknown collection")

// CounterFunc resolves the current item count of a collection as seen by an
// observer. Collections owned by external services register a counter that
// queries them; the messaging core registers its own for "messages".
type CounterFunc func(observerID string) (int64, error)

// Engine computes "new since last observed" deltas per (collection,
// observer) without re-notifying for already-seen items and without missing
// items created between polls. The baseline advance is atomic with the diff
// computation, so concurrent polls for the same observer cannot both claim
// the same items as new.
type Engine struct {
	mu       sync.RWMutex
	counters map[string]CounterFunc
	allowed  map[string]struct{}
}

// NewEngine returns an engine accepting the named collections. Collections
// later given a counter via Register are accepted as well.
func NewEngine(collections []string) *Engine {
	e := &Engine{
		counters: map[string]CounterFunc{},
		allowed:  map[string]struct{}{},
	}
	for _, c := range collections {
		e.allowed[c] = struct{}{}
	}
	return e
}

// Register installs the count resolver for a collection.
func (e *Engine) Register(collection string, fn CounterFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.counters[collection] = fn
	e.allowed[collection] = struct{}{}
}

func (e *Engine) counter(collection string) (CounterFunc, bool, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, allowed := e.allowed[collection]
	fn, ok := e.counters[collection]
	return fn, ok, allowed
}

// Diff resolves the collection's current count through its registered
// counter and returns the delta since the observer's stored baseline,
// advancing the baseline in the same atomic step.
func (e *Engine) Diff(collection, observerID string) (int64, error) {
	fn, ok, allowed := e.counter(collection)
	if !allowed {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s has no registered counter", ErrUnknownCollection, collection)
	}
	current, err := fn(observerID)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return e.DiffAt(collection, observerID, current)
}

// DiffAt computes the delta against a caller-supplied current count. Used
// when the collection count is produced by an external collaborator (the
// catalog backend reporting its product count).
func (e *Engine) DiffAt(collection, observerID string, current int64) (int64, error) {
	if _, _, allowed := e.counter(collection); !allowed {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	delta, err := store.AdvanceWatermark(collection, observerID, current)
	if err != nil {
		return 0, err
	}
	telemetry.WatermarkDiffs.WithLabelValues(collection).Inc()
	if delta > 0 {
		logger.Debug("watermark_diff", "collection", collection, "observer", observerID, "new", delta)
	}
	return delta, nil
}

// Reset drops the observer's baseline to zero: the next Diff reports the
// full current count as new. Clearing removes the notification, not the
// items already acknowledged.
func (e *Engine) Reset(collection, observerID string) error {
	if _, _, allowed := e.counter(collection); !allowed {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	return store.ResetWatermark(collection, observerID)
}
