package persona

import (
	"github.com/habitatworks/habitat/internal/world"
)

// ComputeNewMessages scans a building's history in sequence order and splits
// it into what the persona may now perceive and how far the watermark moves.
//
// The returned cursor tracks the maximum seq over every message with
// seq > lastCursor, audible or not, so progress is forward-only and a retry
// never rescans. A message is emitted only when seq > entryMarker, the
// audience names the persona, and the persona did not author it.
func ComputeNewMessages(history []world.Message, lastCursor, entryMarker int64, personaID string) ([]world.Message, int64) {
	updated := lastCursor
	var fresh []world.Message

	for _, msg := range history {
		if msg.Seq <= lastCursor {
			continue
		}
		if msg.Seq > updated {
			updated = msg.Seq
		}
		if msg.Seq <= entryMarker {
			continue
		}
		if msg.PersonaID == personaID {
			continue
		}
		if !msg.AudibleTo(personaID) {
			continue
		}
		fresh = append(fresh, msg)
	}

	return fresh, updated
}

// Cursors holds the per-building perception watermarks for one persona.
// Invariant after every cycle: entry[b] <= pulse[b] <= max seq in log[b].
type Cursors struct {
	Pulse map[string]int64 `json:"pulse"`
	Entry map[string]int64 `json:"entry"`
}

func NewCursors() Cursors {
	return Cursors{
		Pulse: make(map[string]int64),
		Entry: make(map[string]int64),
	}
}

// Observe advances the building's pulse cursor over history and returns the
// messages newly audible to the persona.
func (c *Cursors) Observe(buildingID string, history []world.Message, personaID string) []world.Message {
	fresh, updated := ComputeNewMessages(history, c.Pulse[buildingID], c.Entry[buildingID], personaID)
	c.Pulse[buildingID] = updated
	return fresh
}

// RegisterEntry pins the entry marker to the room's last sequence on
// arrival: room history predating the persona's presence is never surfaced,
// even if re-addressed later. The pulse cursor is raised to at least the
// marker so the first pulse after arrival starts from silence.
func (c *Cursors) RegisterEntry(buildingID string, lastSeq int64) {
	c.Entry[buildingID] = lastSeq
	if c.Pulse[buildingID] < lastSeq {
		c.Pulse[buildingID] = lastSeq
	}
}
