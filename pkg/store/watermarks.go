package store

import (
	"time"

	"marketsync/pkg/logger"
	"marketsync/pkg/models"
)

// AdvanceWatermark computes the "new since last seen" delta for
// (collection, observer) against current and advances the stored baseline
// to current in the same critical section. Two concurrent calls for the
// same pair can never both see the old baseline: one observes the other's
// advance, so deltas neither double-count nor drop items. The baseline
// never retreats when current is smaller (items removed server-side).
func AdvanceWatermark(collection, observer string, current int64) (int64, error) {
	if db == nil {
		return 0, notOpened()
	}
	key := watermarkKey(collection, observer)
	l := lockRow(key)
	l.Lock()
	defer l.Unlock()

	var wm models.Watermark
	if err := getJSON(key, &wm); err != nil && !IsNotFound(err) {
		return 0, err
	}
	delta := current - wm.Count
	if delta < 0 {
		delta = 0
	}
	if current > wm.Count {
		wm.Count = current
		wm.TS = time.Now().UTC().UnixNano()
		if err := setJSON(key, wm); err != nil {
			logger.Error("advance_watermark_failed", "collection", collection, "observer", observer, "error", err)
			return 0, err
		}
	}
	return delta, nil
}

// ResetWatermark sets the baseline for (collection, observer) back to zero,
// so the next diff reports the full current count as new.
func ResetWatermark(collection, observer string) error {
	if db == nil {
		return notOpened()
	}
	key := watermarkKey(collection, observer)
	l := lockRow(key)
	l.Lock()
	defer l.Unlock()
	return setJSON(key, models.Watermark{Count: 0, TS: time.Now().UTC().UnixNano()})
}

// GetWatermark returns the stored baseline; ok is false when none exists.
func GetWatermark(collection, observer string) (models.Watermark, bool, error) {
	if db == nil {
		return models.Watermark{}, false, notOpened()
	}
	var wm models.Watermark
	if err := getJSON(watermarkKey(collection, observer), &wm); err != nil {
		if IsNotFound(err) {
			return models.Watermark{}, false, nil
		}
		return models.Watermark{}, false, err
	}
	return wm, true, nil
}
