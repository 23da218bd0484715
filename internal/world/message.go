// Package world holds the shared-room model: messages, the append-only
// per-building log contract, and the capacity-gated building registry.
package world

import (
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleHost marks narrative notices written by the runtime itself
	// (arrivals, refused moves, mood notes). Host messages are not
	// addressed to any particular listener.
	RoleHost Role = "host"
)

// Message is one entry in a building's log. Immutable once appended; Seq is
// assigned by the store.
type Message struct {
	Seq       int64     `json:"seq"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	PersonaID string    `json:"persona_id,omitempty"`
	PulseID   string    `json:"pulse_id,omitempty"`
	HeardBy   []string  `json:"heard_by,omitempty"`
	// Metadata carries tool-staged attachments (media references and the
	// like); it never influences perception.
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AudibleTo reports whether the message's audience list names the persona.
// A message with no audience is audible to nobody; host notices that should
// be seen by the whole room carry the room's occupant list explicitly.
func (m Message) AudibleTo(personaID string) bool {
	for _, id := range m.HeardBy {
		if id == personaID {
			return true
		}
	}
	return false
}
