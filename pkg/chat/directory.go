package chat

import "marketsync/pkg/models"

// StaticDirectory is a config-backed Directory for deployments that run
// without the external participant service. Lookups are keyed by the
// participant id plus the role the caller asks for, so the same id can see
// different counterpart sets per role.
type StaticDirectory struct {
	entries map[string][]models.Participant
}

// StaticEntry seeds one participant's visible counterparts for a role.
type StaticEntry struct {
	ID           string
	Role         models.Role
	Counterparts []models.Participant
}

func NewStaticDirectory(entries []StaticEntry) *StaticDirectory {
	d := &StaticDirectory{entries: make(map[string][]models.Participant, len(entries))}
	for _, e := range entries {
		key := e.ID + "\x00" + string(e.Role)
		d.entries[key] = append(d.entries[key], e.Counterparts...)
	}
	return d
}

// ResolveCounterparts returns the configured counterparts, or an empty list
// for participants the directory does not know about.
func (d *StaticDirectory) ResolveCounterparts(participantID string, role models.Role) ([]models.Participant, error) {
	if d == nil || d.entries == nil {
		return []models.Participant{}, nil
	}
	out := d.entries[participantID+"\x00"+string(role)]
	if out == nil {
		return []models.Participant{}, nil
	}
	return append([]models.Participant{}, out...), nil
}
