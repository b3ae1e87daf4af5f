package models

// ReadMarker records, per (conversation, observer), the position of the last
// acknowledged message. The zero value is the "beginning of time" sentinel:
// every message in the conversation counts as unread against it.
type ReadMarker struct {
	MessageID string `json:"message_id,omitempty"`
	TS        int64  `json:"ts"`
	Seq       uint64 `json:"seq"`
}

// Before reports whether the marker sits strictly before the (ts, seq)
// position. MarkRead only advances a marker when Before is true, which makes
// repeated or out-of-order acknowledgements no-ops.
func (r ReadMarker) Before(ts int64, seq uint64) bool {
	if r.TS != ts {
		return r.TS < ts
	}
	return r.Seq < seq
}

// Watermark is the per (observer, collection) baseline used to compute
// "new since last seen" deltas. It only advances.
type Watermark struct {
	Count int64 `json:"count"`
	TS    int64 `json:"ts,omitempty"`
}
