package chat

import (
	"fmt"
	"strings"

	"marketsync/pkg/models"
)

// A conversation is not a persisted row: its key is a pure function of the
// unordered participant pair, so history survives regardless of who
// messaged first.

// ConversationKey returns the canonical key for the pair (a, b). The total
// order on ids guarantees ConversationKey(a, b) == ConversationKey(b, a).
func ConversationKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// SplitConversationKey returns the two participant ids of a key.
func SplitConversationKey(key string) (string, string, bool) {
	a, b, ok := strings.Cut(key, "|")
	return a, b, ok
}

// ValidateParticipantID rejects ids that are empty or would collide with
// the store key schema.
func ValidateParticipantID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty participant id", ErrValidation)
	}
	if strings.ContainsAny(id, ":|") {
		return fmt.Errorf("%w: participant id contains reserved characters", ErrValidation)
	}
	return nil
}

// Directory is the external participant directory collaborator. It answers
// who a participant may talk to; profiles and sessions stay its concern.
type Directory interface {
	ResolveCounterparts(participantID string, role models.Role) ([]models.Participant, error)
}

// CounterpartsFor lists valid chat counterparts of the participant for the
// given role. A nil directory or an unknown participant yields an empty
// list rather than an error.
func CounterpartsFor(dir Directory, participantID string, role models.Role) ([]models.Participant, error) {
	if err := ValidateParticipantID(participantID); err != nil {
		return nil, err
	}
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	if dir == nil {
		return []models.Participant{}, nil
	}
	out, err := dir.ResolveCounterparts(participantID, role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if out == nil {
		out = []models.Participant{}
	}
	return out, nil
}
