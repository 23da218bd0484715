package world

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	r.AddBuilding(Building{ID: "lounge", Name: "Lounge", CityID: "aster"})
	r.AddBuilding(Building{ID: "booth", Name: "Booth", CityID: "aster", Capacity: 1})
	return r
}

func TestPlaceRespectsCapacity(t *testing.T) {
	r := newTestRegistry(t)

	require.NoError(t, r.Place("mira", "booth"))
	err := r.Place("zed", "booth")
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Equal(t, []string{"mira"}, r.Occupants("booth"))
}

func TestPlaceIsIdempotent(t *testing.T) {
	r := newTestRegistry(t)

	require.NoError(t, r.Place("mira", "booth"))
	require.NoError(t, r.Place("mira", "booth"))
	assert.Equal(t, []string{"mira"}, r.Occupants("booth"))
}

func TestMoveTransfersAtomically(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Place("mira", "lounge"))

	require.NoError(t, r.Move("mira", "lounge", "booth"))
	assert.Empty(t, r.Occupants("lounge"))
	assert.Equal(t, []string{"mira"}, r.Occupants("booth"))
}

func TestMoveToCurrentBuildingKeepsOccupancy(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Place("mira", "booth"))

	require.NoError(t, r.Move("mira", "booth", "booth"))
	assert.Equal(t, []string{"mira"}, r.Occupants("booth"))

	// The slot is still held; nobody else fits.
	assert.ErrorIs(t, r.Place("zed", "booth"), ErrRoomFull)
	// And a real move out still works afterwards.
	require.NoError(t, r.Move("mira", "booth", "lounge"))
	assert.Equal(t, []string{"mira"}, r.Occupants("lounge"))
}

func TestMoveDenialLeavesOccupancyUntouched(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Place("mira", "booth"))
	require.NoError(t, r.Place("zed", "lounge"))

	err := r.Move("zed", "lounge", "booth")
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Equal(t, []string{"zed"}, r.Occupants("lounge"))
	assert.Equal(t, []string{"mira"}, r.Occupants("booth"))
}

func TestMoveUnknownDestination(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Place("mira", "lounge"))

	err := r.Move("mira", "lounge", "attic")
	assert.ErrorIs(t, err, ErrUnknownBuilding)
	assert.Equal(t, []string{"mira"}, r.Occupants("lounge"))
}

func TestMoveRequiresPresence(t *testing.T) {
	r := newTestRegistry(t)

	err := r.Move("mira", "lounge", "booth")
	assert.ErrorIs(t, err, ErrNotPresent)
}

func TestConcurrentMoversOneWinner(t *testing.T) {
	r := newTestRegistry(t)
	movers := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, id := range movers {
		require.NoError(t, r.Place(id, "lounge"))
	}

	var wg sync.WaitGroup
	wins := make(chan string, len(movers))
	for _, id := range movers {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := r.Move(id, "lounge", "booth"); err == nil {
				wins <- id
			}
		}(id)
	}
	wg.Wait()
	close(wins)

	var winners []string
	for id := range wins {
		winners = append(winners, id)
	}
	require.Len(t, winners, 1)
	assert.Equal(t, winners, r.Occupants("booth"))
	assert.Len(t, r.Occupants("lounge"), len(movers)-1)
}

func TestMarkDispatchedFreesSlot(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Place("mira", "booth"))

	r.MarkDispatched("mira", "booth")
	assert.True(t, r.IsDispatched("mira"))
	assert.Empty(t, r.Occupants("booth"))

	// The freed slot is reusable immediately.
	require.NoError(t, r.Place("zed", "booth"))
}

func TestUnlimitedCapacity(t *testing.T) {
	r := newTestRegistry(t)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, r.Place(id, "lounge"))
	}
	assert.Len(t, r.Occupants("lounge"), 5)
}
