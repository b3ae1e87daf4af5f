package models

// Message is the durable record of a single chat message. CreatedTS is the
// server-authoritative creation time (ns); edits never change it, so the
// mutation window and conversation ordering both stay anchored to it.
type Message struct {
	ID         string `json:"id"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Body       string `json:"body,omitempty"`
	CreatedTS  int64  `json:"created_ts"`
	// EditedTS is set on each successful edit; zero means never edited.
	EditedTS int64 `json:"edited_ts,omitempty"`
	// Seq disambiguates messages sharing the same nanosecond timestamp and
	// is fixed at send time.
	Seq  uint64 `json:"seq"`
	Read bool   `json:"read,omitempty"`
	// Deleted marks a tombstone: retained for audit, excluded from listing
	// and unread counts.
	Deleted   bool  `json:"deleted,omitempty"`
	DeletedTS int64 `json:"deleted_ts,omitempty"`
}

// After reports whether m was created strictly after the (ts, seq) position.
func (m Message) After(ts int64, seq uint64) bool {
	if m.CreatedTS != ts {
		return m.CreatedTS > ts
	}
	return m.Seq > seq
}
