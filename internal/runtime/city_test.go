package runtime

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habitatworks/habitat/internal/llm"
	"github.com/habitatworks/habitat/internal/persona"
	"github.com/habitatworks/habitat/internal/state"
	"github.com/habitatworks/habitat/internal/world"
)

type stubLLM struct{ response string }

func (s stubLLM) Generate(ctx context.Context, req llm.Request) (string, error) {
	if s.response == "" {
		return "", fmt.Errorf("no response scripted")
	}
	return s.response, nil
}

type fakeDispatcher struct {
	calls []string
	err   error
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, personaID, cityID, homeURL string) error {
	d.calls = append(d.calls, personaID+"->"+cityID)
	return d.err
}

func newTestCity(t *testing.T, opts Options) *City {
	t.Helper()
	if opts.Buildings == nil {
		opts.Buildings = world.NewRegistry()
		opts.Buildings.AddBuilding(world.Building{ID: "lounge", Name: "Lounge", CityID: "aster"})
		opts.Buildings.AddBuilding(world.Building{ID: "booth", Name: "Booth", CityID: "aster", Capacity: 1})
	}
	if opts.Log == nil {
		opts.Log = world.NewMemoryLog()
	}
	if opts.LLM == nil {
		opts.LLM = stubLLM{response: `{"perception": "quiet", "todo": "rest", "decision": "wait"}`}
	}
	if opts.CityID == "" {
		opts.CityID = "aster"
	}
	opts.Clock = func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }
	return NewCity(opts)
}

func addTestPersona(t *testing.T, c *City, id, name, building string) *persona.Persona {
	t.Helper()
	p, err := c.AddPersona(context.Background(), persona.Config{ID: id, Name: name}, building)
	require.NoError(t, err)
	return p
}

func lastMessage(t *testing.T, c *City, buildingID string) world.Message {
	t.Helper()
	msgs, err := c.Log().Read(context.Background(), buildingID)
	require.NoError(t, err)
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

func TestMoveToGranted(t *testing.T) {
	c := newTestCity(t, Options{})
	ctx := context.Background()

	// Chatter that predates the arrival must stay behind the entry marker.
	_, err := c.Log().Append(ctx, "booth", world.Message{Role: world.RoleUser, Content: "old talk", HeardBy: []string{"mira"}})
	require.NoError(t, err)

	p := addTestPersona(t, c, "mira", "Mira", "lounge")

	note, err := c.MoveTo(ctx, "mira", "booth")
	require.NoError(t, err)
	assert.Equal(t, "You are now in Booth.", note)
	assert.Equal(t, "booth", p.BuildingID())
	assert.Equal(t, []string{"mira"}, c.Buildings().Occupants("booth"))
	assert.Empty(t, c.Buildings().Occupants("lounge"))

	arrival := lastMessage(t, c, "booth")
	assert.Equal(t, world.RoleHost, arrival.Role)
	assert.Equal(t, "Mira arrives.", arrival.Content)

	snap := p.Snapshot()
	assert.Equal(t, int64(1), snap.Cursors.Entry["booth"])
}

func TestMoveToCurrentBuildingIsANoop(t *testing.T) {
	c := newTestCity(t, Options{})
	ctx := context.Background()
	p := addTestPersona(t, c, "mira", "Mira", "lounge")

	// An unread message must survive a stay-put move: the entry marker may
	// not be re-pinned past it.
	_, err := c.Log().Append(ctx, "lounge", world.Message{Role: world.RoleUser, Content: "still here?", HeardBy: []string{"mira"}})
	require.NoError(t, err)

	note, err := c.MoveTo(ctx, "mira", "lounge")
	require.NoError(t, err)
	assert.Equal(t, "You are already in Lounge.", note)
	assert.Equal(t, []string{"mira"}, c.Buildings().Occupants("lounge"))

	snap := p.Snapshot()
	assert.Equal(t, int64(0), snap.Cursors.Entry["lounge"])
	assert.Equal(t, int64(0), snap.Cursors.Pulse["lounge"])

	msgs, err := c.Log().Read(ctx, "lounge")
	require.NoError(t, err)
	assert.Len(t, msgs, 1, "no arrival narration for staying put")
}

func TestMoveToDeniedNarratesAndKeepsOccupancy(t *testing.T) {
	c := newTestCity(t, Options{})
	ctx := context.Background()

	addTestPersona(t, c, "zed", "Zed", "booth")
	p := addTestPersona(t, c, "mira", "Mira", "lounge")

	note, err := c.MoveTo(ctx, "mira", "booth")
	assert.ErrorIs(t, err, world.ErrRoomFull)
	assert.Empty(t, note)
	assert.Equal(t, "lounge", p.BuildingID())
	assert.Equal(t, []string{"zed"}, c.Buildings().Occupants("booth"))

	refusal := lastMessage(t, c, "lounge")
	assert.Equal(t, world.RoleHost, refusal.Role)
	assert.Contains(t, refusal.Content, "Mira makes to leave, but cannot")
}

func TestDispatchToWithoutDispatcher(t *testing.T) {
	c := newTestCity(t, Options{})
	addTestPersona(t, c, "mira", "Mira", "lounge")

	_, err := c.DispatchTo(context.Background(), "mira", "briar")
	assert.ErrorIs(t, err, ErrNoDispatcher)

	notice := lastMessage(t, c, "lounge")
	assert.Contains(t, notice.Content, "no road leads out of town")
	assert.False(t, c.Buildings().IsDispatched("mira"))
}

func TestDispatchToSuccess(t *testing.T) {
	d := &fakeDispatcher{}
	c := newTestCity(t, Options{Dispatcher: d, PublicURL: "http://aster.example"})
	addTestPersona(t, c, "mira", "Mira", "lounge")

	note, err := c.DispatchTo(context.Background(), "mira", "briar")
	require.NoError(t, err)
	assert.Equal(t, "You set out for briar.", note)
	assert.Equal(t, []string{"mira->briar"}, d.calls)
	assert.True(t, c.Buildings().IsDispatched("mira"))
	assert.Empty(t, c.Buildings().Occupants("lounge"))

	// Dispatched personas think on their destination runtime now.
	replies, err := c.RunPulse(context.Background(), "mira", nil, false)
	require.NoError(t, err)
	assert.Nil(t, replies)
}

func TestDispatchToFailureKeepsPersonaHome(t *testing.T) {
	d := &fakeDispatcher{err: fmt.Errorf("connection refused")}
	c := newTestCity(t, Options{Dispatcher: d})
	addTestPersona(t, c, "mira", "Mira", "lounge")

	_, err := c.DispatchTo(context.Background(), "mira", "briar")
	require.Error(t, err)
	assert.False(t, c.Buildings().IsDispatched("mira"))
	assert.Equal(t, []string{"mira"}, c.Buildings().Occupants("lounge"))

	notice := lastMessage(t, c, "lounge")
	assert.Contains(t, notice.Content, "the journey fell through")
}

func TestRunPulseUnknownPersona(t *testing.T) {
	c := newTestCity(t, Options{})
	_, err := c.RunPulse(context.Background(), "ghost", nil, false)
	assert.Error(t, err)
}

func TestRunPulseWaitDecision(t *testing.T) {
	c := newTestCity(t, Options{})
	addTestPersona(t, c, "mira", "Mira", "lounge")

	replies, err := c.RunPulse(context.Background(), "mira", []string{"mira"}, false)
	require.NoError(t, err)
	assert.Nil(t, replies)
}

func TestAddPersonaRestoresSnapshot(t *testing.T) {
	db, err := state.Open(filepath.Join(t.TempDir(), "city.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := state.NewPersonaStore(db)

	c := newTestCity(t, Options{Store: store})
	addTestPersona(t, c, "mira", "Mira", "lounge")

	_, err = c.MoveTo(context.Background(), "mira", "booth")
	require.NoError(t, err)

	// A fresh runtime over the same store puts the persona back where it
	// was, not in the configured default building.
	c2 := newTestCity(t, Options{Store: store, Log: world.NewMemoryLog()})
	p2 := addTestPersona(t, c2, "mira", "Mira", "lounge")
	assert.Equal(t, "booth", p2.BuildingID())
	assert.Equal(t, []string{"mira"}, c2.Buildings().Occupants("booth"))
}
