package chat

import (
	"fmt"

	"marketsync/pkg/models"
	"marketsync/pkg/store"
)

// Tracker wraps the read-marker table. Markers are monotonic: concurrent or
// repeated MarkRead calls for the same pair commute, and applying an older
// position is a no-op.
type Tracker struct{}

// MarkerFor returns the marker for (convKey, observer). When none exists it
// returns the zero marker, the "beginning of time" sentinel, so unread
// counts naturally cover the full history for a first-time observer.
func (Tracker) MarkerFor(convKey, observer string) (models.ReadMarker, error) {
	rm, _, err := store.Marker(convKey, observer)
	if err != nil {
		return models.ReadMarker{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return rm, nil
}

// Advance moves the marker forward to the given message; older or equal
// positions are ignored. Returns whether the marker moved.
func (Tracker) Advance(convKey, observer string, upto models.Message) (bool, error) {
	moved, err := store.AdvanceMarker(convKey, observer, upto)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return moved, nil
}

// UnreadCount sums unacknowledged, non-tombstoned messages addressed to the
// observer across all of the observer's conversations.
func (Tracker) UnreadCount(observer string) (int, error) {
	n, err := store.UnreadCount(observer)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}
