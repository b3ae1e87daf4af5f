package chat

import (
	"time"

	"marketsync/pkg/models"
)

// CanMutate decides whether actorID may edit or delete the message at the
// given instant. True iff the actor is the sender, the message is not
// tombstoned, and no more than window has passed since creation. The window
// is always measured from CreatedTS: edits do not reset it.
func CanMutate(m models.Message, actorID string, now time.Time, window time.Duration) bool {
	if m.Deleted {
		return false
	}
	if actorID == "" || actorID != m.SenderID {
		return false
	}
	return now.UnixNano()-m.CreatedTS <= window.Nanoseconds()
}
