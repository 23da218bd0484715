package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/habitatworks/habitat/internal/world"
)

func msg(seq int64, heardBy ...string) world.Message {
	return world.Message{Seq: seq, Role: world.RoleUser, Content: "m", HeardBy: heardBy}
}

func TestComputeNewMessagesEmptyHistory(t *testing.T) {
	fresh, cursor := ComputeNewMessages(nil, 7, 3, "mira")
	assert.Empty(t, fresh)
	assert.Equal(t, int64(7), cursor)
}

func TestComputeNewMessagesAdvancesOverInaudible(t *testing.T) {
	// Nothing is addressed to mira, yet the watermark must still cover
	// everything scanned so retries never reprocess.
	history := []world.Message{msg(1, "zed"), msg(2), msg(3, "zed")}

	fresh, cursor := ComputeNewMessages(history, 0, 0, "mira")
	assert.Empty(t, fresh)
	assert.Equal(t, int64(3), cursor)
}

func TestComputeNewMessagesAudienceEnforced(t *testing.T) {
	history := []world.Message{msg(1, "mira"), msg(2, "zed"), msg(3, "mira", "zed")}

	fresh, cursor := ComputeNewMessages(history, 0, 0, "mira")
	assert.Equal(t, int64(3), cursor)
	assert.Len(t, fresh, 2)
	assert.Equal(t, int64(1), fresh[0].Seq)
	assert.Equal(t, int64(3), fresh[1].Seq)
}

func TestComputeNewMessagesEntryIsolation(t *testing.T) {
	// Messages at or before the entry marker stay unheard even when the
	// audience names the persona.
	history := []world.Message{msg(1, "mira"), msg(2, "mira"), msg(3, "mira")}

	fresh, cursor := ComputeNewMessages(history, 0, 2, "mira")
	assert.Equal(t, int64(3), cursor)
	assert.Len(t, fresh, 1)
	assert.Equal(t, int64(3), fresh[0].Seq)
}

func TestComputeNewMessagesSkipsSelfAuthored(t *testing.T) {
	history := []world.Message{
		{Seq: 1, Role: world.RoleAssistant, PersonaID: "mira", HeardBy: []string{"mira", "zed"}},
		{Seq: 2, Role: world.RoleAssistant, PersonaID: "zed", HeardBy: []string{"mira"}},
	}

	fresh, cursor := ComputeNewMessages(history, 0, 0, "mira")
	assert.Equal(t, int64(2), cursor)
	assert.Len(t, fresh, 1)
	assert.Equal(t, "zed", fresh[0].PersonaID)
}

func TestComputeNewMessagesSpecScenario(t *testing.T) {
	// cursor=10, entry=5, seq 6..12 with only 9 and 12 addressed: 11 and 12
	// are the unscanned candidates, only 12 is audible, cursor lands on 12.
	var history []world.Message
	for s := int64(6); s <= 12; s++ {
		if s == 9 || s == 12 {
			history = append(history, msg(s, "mira"))
		} else {
			history = append(history, msg(s, "zed"))
		}
	}

	fresh, cursor := ComputeNewMessages(history, 10, 5, "mira")
	assert.Equal(t, int64(12), cursor)
	assert.Len(t, fresh, 1)
	assert.Equal(t, int64(12), fresh[0].Seq)
}

func TestCursorMonotonicity(t *testing.T) {
	c := NewCursors()
	history := []world.Message{msg(1, "zed"), msg(2, "zed")}

	c.Observe("b", history, "mira")
	assert.Equal(t, int64(2), c.Pulse["b"])

	// Re-observing the same history moves nothing backwards.
	c.Observe("b", history, "mira")
	assert.Equal(t, int64(2), c.Pulse["b"])

	history = append(history, msg(3, "mira"))
	fresh := c.Observe("b", history, "mira")
	assert.Equal(t, int64(3), c.Pulse["b"])
	assert.Len(t, fresh, 1)
}

func TestRegisterEntryPinsWatermarks(t *testing.T) {
	c := NewCursors()
	c.RegisterEntry("b", 14)

	assert.Equal(t, int64(14), c.Entry["b"])
	assert.Equal(t, int64(14), c.Pulse["b"])

	// A later return visit resumes; entry re-pins to the new last seq.
	c.RegisterEntry("b", 20)
	assert.Equal(t, int64(20), c.Entry["b"])
	assert.Equal(t, int64(20), c.Pulse["b"])
}

func TestRegisterEntryNeverLowersPulseCursor(t *testing.T) {
	c := NewCursors()
	c.Pulse["b"] = 30
	c.RegisterEntry("b", 20)

	assert.Equal(t, int64(20), c.Entry["b"])
	assert.Equal(t, int64(30), c.Pulse["b"])
}
