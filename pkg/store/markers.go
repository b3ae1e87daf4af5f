package store

import (
	"marketsync/pkg/logger"
	"marketsync/pkg/models"
)

// Marker returns the read marker for (convKey, observer). The second return
// is false when no marker exists yet; the zero ReadMarker then acts as the
// "beginning of time" sentinel.
func Marker(convKey, observer string) (models.ReadMarker, bool, error) {
	if db == nil {
		return models.ReadMarker{}, false, notOpened()
	}
	var rm models.ReadMarker
	if err := getJSON(markerKey(convKey, observer), &rm); err != nil {
		if IsNotFound(err) {
			return models.ReadMarker{}, false, nil
		}
		return models.ReadMarker{}, false, err
	}
	return rm, true, nil
}

// AdvanceMarker moves the read marker for (convKey, observer) up to the
// given message, but only forward: applying the same or an older position is
// a no-op. The read-modify-write runs under the marker's row lock so
// concurrent acknowledgements stay monotonic. Messages addressed to the
// observer between the old and new position get their read flag set.
func AdvanceMarker(convKey, observer string, upto models.Message) (bool, error) {
	if db == nil {
		return false, notOpened()
	}
	key := markerKey(convKey, observer)
	l := lockRow(key)
	l.Lock()
	defer l.Unlock()

	var cur models.ReadMarker
	if err := getJSON(key, &cur); err != nil && !IsNotFound(err) {
		return false, err
	}
	if !cur.Before(upto.CreatedTS, upto.Seq) {
		return false, nil
	}
	next := models.ReadMarker{MessageID: upto.ID, TS: upto.CreatedTS, Seq: upto.Seq}
	if err := setJSON(key, next); err != nil {
		logger.Error("advance_marker_failed", "conv", convKey, "observer", observer, "error", err)
		return false, err
	}
	if err := flagRead(convKey, observer, cur, next); err != nil {
		return false, err
	}
	logger.Debug("marker_advanced", "conv", convKey, "observer", observer, "upto", upto.ID)
	return true, nil
}

// flagRead sets Read=true on messages addressed to the observer with a
// position in (from, to]. Best effort consistency between the flag and the
// marker; unread counts derive from the marker alone.
func flagRead(convKey, observer string, from, to models.ReadMarker) error {
	msgs, err := ListConversation(convKey, &Cursor{TS: from.TS, Seq: from.Seq}, 0)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		if m.After(to.TS, to.Seq) {
			break
		}
		if m.ReceiverID != observer || m.Read {
			continue
		}
		if err := flagRowRead(convRowKey(convKey, m.CreatedTS, m.Seq), observer); err != nil {
			return err
		}
	}
	return nil
}

// flagRowRead flips the read flag on a single message row. The row is
// re-read under its own lock, the same lock MutateMessage holds, so a
// concurrent edit or delete is never overwritten with the stale listing
// snapshot. Tombstones stay untouched.
func flagRowRead(rowKey, observer string) error {
	l := lockRow(rowKey)
	l.Lock()
	defer l.Unlock()

	var m models.Message
	if err := getJSON(rowKey, &m); err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	if m.Deleted || m.Read || m.ReceiverID != observer {
		return nil
	}
	m.Read = true
	return setJSON(rowKey, m)
}

// UnreadCount sums, over every conversation involving the observer, the
// non-tombstoned messages addressed to the observer positioned after that
// conversation's read marker.
func UnreadCount(observer string) (int, error) {
	convs, err := ConversationsOf(observer)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, conv := range convs {
		rm, _, err := Marker(conv, observer)
		if err != nil {
			return 0, err
		}
		msgs, err := ListConversation(conv, &Cursor{TS: rm.TS, Seq: rm.Seq}, 0)
		if err != nil {
			return 0, err
		}
		for _, m := range msgs {
			if m.ReceiverID == observer {
				total++
			}
		}
	}
	return total, nil
}
