package chat

import (
	"errors"
	"fmt"
	"time"

	"marketsync/pkg/logger"
	"marketsync/pkg/models"
	"marketsync/pkg/store"
	"marketsync/pkg/telemetry"
	"marketsync/pkg/utils"
	"marketsync/pkg/validation"
)

// Service orchestrates send/list/edit/delete/mark-read against the store,
// the mutation policy and the read-state tracker. All writes to messages
// and markers go through here.
type Service struct {
	// Window is the bounded edit/delete span measured from creation.
	Window time.Duration
	// Dir resolves chat counterparts; nil disables counterpart listing.
	Dir Directory
	// Now is the authoritative server clock, replaceable in tests.
	Now func() time.Time

	tracker Tracker
}

// NewService returns a service with the given mutation window.
func NewService(window time.Duration, dir Directory) *Service {
	return &Service{Window: window, Dir: dir, Now: func() time.Time { return time.Now().UTC() }}
}

func storeErr(err error) error {
	if store.IsNotFound(err) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	telemetry.StoreErrors.Inc()
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// Send validates and stores a new message. The creation timestamp is the
// server clock; the stored message is returned.
func (s *Service) Send(senderID, receiverID, body string) (models.Message, error) {
	if err := ValidateParticipantID(senderID); err != nil {
		return models.Message{}, err
	}
	if err := ValidateParticipantID(receiverID); err != nil {
		return models.Message{}, err
	}
	if senderID == receiverID {
		return models.Message{}, fmt.Errorf("%w: sender and receiver are the same participant", ErrValidation)
	}
	if err := validation.ValidateBody(body); err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	msg := models.Message{
		ID:         utils.GenMessageID(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
		CreatedTS:  s.Now().UnixNano(),
		Seq:        utils.NextSeq(),
	}
	conv := ConversationKey(senderID, receiverID)
	if err := store.AppendMessage(conv, msg); err != nil {
		return models.Message{}, storeErr(err)
	}
	telemetry.MessagesSent.Inc()
	logger.Info("message_sent", "conv", conv, "id", msg.ID, "sender", senderID)
	return msg, nil
}

// List returns messages of a conversation ordered by (created_ts, seq)
// ascending, tombstones excluded. cursor resumes a previous listing; an
// empty cursor restarts from the beginning. limit <= 0 lists everything;
// otherwise a next-cursor is returned when the page filled up.
func (s *Service) List(convKey, cursor string, limit int) ([]models.Message, string, error) {
	after, err := store.DecodeCursor(cursor)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	msgs, err := store.ListConversation(convKey, after, limit)
	if err != nil {
		return nil, "", storeErr(err)
	}
	next := ""
	if limit > 0 && len(msgs) == limit {
		last := msgs[len(msgs)-1]
		next = (&store.Cursor{TS: last.CreatedTS, Seq: last.Seq}).Encode()
	}
	return msgs, next, nil
}

// Versions returns the immutable revision history of a message.
func (s *Service) Versions(id string) ([]models.Message, error) {
	vs, err := store.ListMessageVersions(id)
	if err != nil {
		return nil, storeErr(err)
	}
	if len(vs) == 0 {
		return nil, fmt.Errorf("%w: message %s", ErrNotFound, id)
	}
	return vs, nil
}

// Edit replaces the body of a message. The actor must be the sender and the
// mutation window, anchored to creation time, must still be open; a denial
// leaves the stored message untouched.
func (s *Service) Edit(id, actorID, newBody string) (models.Message, error) {
	if err := validation.ValidateBody(newBody); err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	now := s.Now()
	updated, err := store.MutateMessage(id, func(m *models.Message) error {
		if err := s.deny(*m, actorID, now); err != nil {
			return err
		}
		m.Body = newBody
		m.EditedTS = now.UnixNano()
		return nil
	})
	if err != nil {
		return models.Message{}, s.mutationErr("edit", id, actorID, err)
	}
	logger.AuditEvent("message_edited", "id", id, "actor", actorID)
	return updated, nil
}

// Delete tombstones a message: it stays on disk for audit but disappears
// from listings and unread counts. Deleting an absent or already-deleted
// message is an idempotent no-op.
func (s *Service) Delete(id, actorID string) error {
	now := s.Now()
	_, err := store.MutateMessage(id, func(m *models.Message) error {
		if m.Deleted {
			return errAlreadyDeleted
		}
		if err := s.deny(*m, actorID, now); err != nil {
			return err
		}
		m.Deleted = true
		m.DeletedTS = now.UnixNano()
		return nil
	})
	if err != nil {
		if errors.Is(err, errAlreadyDeleted) || store.IsNotFound(err) {
			return nil
		}
		return s.mutationErr("delete", id, actorID, err)
	}
	logger.AuditEvent("message_deleted", "id", id, "actor", actorID)
	return nil
}

var errAlreadyDeleted = errors.New("already deleted")

// deny returns the typed policy error for a mutation attempt, or nil when
// CanMutate allows it. Ownership is checked before the window so the caller
// learns the more fundamental objection.
func (s *Service) deny(m models.Message, actorID string, now time.Time) error {
	if CanMutate(m, actorID, now, s.Window) {
		return nil
	}
	if m.Deleted {
		return fmt.Errorf("%w: message %s", ErrNotFound, m.ID)
	}
	if actorID != m.SenderID {
		return ErrNotOwner
	}
	return ErrWindowExpired
}

func (s *Service) mutationErr(op, id, actorID string, err error) error {
	switch {
	case errors.Is(err, ErrNotOwner):
		telemetry.MutationDenied.WithLabelValues("not_owner").Inc()
		logger.Warn("mutation_denied", "op", op, "id", id, "actor", actorID, "reason", "not_owner")
		return ErrNotOwner
	case errors.Is(err, ErrWindowExpired):
		telemetry.MutationDenied.WithLabelValues("window_expired").Inc()
		logger.Warn("mutation_denied", "op", op, "id", id, "actor", actorID, "reason", "window_expired")
		return ErrWindowExpired
	case errors.Is(err, ErrNotFound):
		return err
	case store.IsNotFound(err):
		return fmt.Errorf("%w: message %s", ErrNotFound, id)
	default:
		return storeErr(err)
	}
}

// MarkRead advances the read marker of (pair, observer) up to the given
// message. The observer must be a member of the conversation; positions at
// or before the current marker are ignored.
// An empty uptoID acknowledges the whole conversation up to its latest
// message; acknowledging an empty conversation is a no-op.
func (s *Service) MarkRead(a, b, observerID, uptoID string) error {
	if err := ValidateParticipantID(a); err != nil {
		return err
	}
	if err := ValidateParticipantID(b); err != nil {
		return err
	}
	conv := ConversationKey(a, b)
	if observerID != a && observerID != b {
		return fmt.Errorf("%w: observer %s is not in the conversation", ErrValidation, observerID)
	}
	var m models.Message
	if uptoID == "" {
		last, ok, err := store.LastMessage(conv)
		if err != nil {
			return storeErr(err)
		}
		if !ok {
			return nil
		}
		m = last
	} else {
		msg, msgConv, err := store.GetMessage(uptoID)
		if err != nil {
			return storeErr(err)
		}
		if msgConv != conv {
			return fmt.Errorf("%w: message %s is not in the conversation", ErrValidation, uptoID)
		}
		m = msg
	}
	if _, err := s.tracker.Advance(conv, observerID, m); err != nil {
		return err
	}
	return nil
}

// UnreadCount returns the observer's aggregate unread message count.
func (s *Service) UnreadCount(observerID string) (int, error) {
	if err := ValidateParticipantID(observerID); err != nil {
		return 0, err
	}
	return s.tracker.UnreadCount(observerID)
}

// Counterparts lists the valid chat counterparts for a participant role.
func (s *Service) Counterparts(participantID string, role models.Role) ([]models.Participant, error) {
	return CounterpartsFor(s.Dir, participantID, role)
}
