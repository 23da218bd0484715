package world

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrRoomFull        = errors.New("room is at capacity")
	ErrUnknownBuilding = errors.New("unknown building")
	ErrNotPresent      = errors.New("persona is not in the expected building")
)

// Building is a shared room inside a city. Capacity <= 0 means unlimited.
type Building struct {
	ID       string
	Name     string
	CityID   string
	Capacity int
}

// Registry tracks buildings and their occupants. One mutex serializes every
// capacity check and transfer, so two personas racing for the last slot in a
// room cannot both be admitted.
type Registry struct {
	mu         sync.Mutex
	buildings  map[string]Building
	occupants  map[string][]string
	dispatched map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{
		buildings:  make(map[string]Building),
		occupants:  make(map[string][]string),
		dispatched: make(map[string]bool),
	}
}

func (r *Registry) AddBuilding(b Building) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buildings[b.ID] = b
}

func (r *Registry) Building(id string) (Building, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buildings[id]
	return b, ok
}

// Buildings returns the known buildings sorted by id, for directory listings.
func (r *Registry) Buildings() []Building {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Building, 0, len(r.buildings))
	for _, b := range r.buildings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Occupants returns a copy of the occupant list for a building.
func (r *Registry) Occupants(buildingID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	occ := r.occupants[buildingID]
	out := make([]string, len(occ))
	copy(out, occ)
	return out
}

// Place puts a persona into a building at provisioning time. Capacity is
// enforced the same way as for a move.
func (r *Registry) Place(personaID, buildingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.admit(personaID, buildingID)
}

// Move transfers a persona between buildings. The check-and-transfer is
// atomic: on denial occupancy is untouched and the returned error wraps
// ErrRoomFull or ErrUnknownBuilding with a human-readable reason.
func (r *Registry) Move(personaID, from, to string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.buildings[from]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBuilding, from)
	}
	if !r.present(personaID, from) {
		return fmt.Errorf("%w: %s not in %s", ErrNotPresent, personaID, from)
	}
	if from == to {
		return nil
	}
	if err := r.admit(personaID, to); err != nil {
		return err
	}
	r.remove(personaID, from)
	return nil
}

// MarkDispatched records that a persona has been handed to a remote city.
// The local scheduler skips dispatched personas; the occupant slot in the
// origin building is released.
func (r *Registry) MarkDispatched(personaID, from string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(personaID, from)
	r.dispatched[personaID] = true
}

func (r *Registry) IsDispatched(personaID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dispatched[personaID]
}

// admit and the helpers below assume r.mu is held.

func (r *Registry) admit(personaID, buildingID string) error {
	b, ok := r.buildings[buildingID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBuilding, buildingID)
	}
	occ := r.occupants[buildingID]
	for _, id := range occ {
		if id == personaID {
			return nil
		}
	}
	if b.Capacity > 0 && len(occ) >= b.Capacity {
		return fmt.Errorf("%w: %s holds %d", ErrRoomFull, b.Name, b.Capacity)
	}
	r.occupants[buildingID] = append(occ, personaID)
	return nil
}

func (r *Registry) present(personaID, buildingID string) bool {
	for _, id := range r.occupants[buildingID] {
		if id == personaID {
			return true
		}
	}
	return false
}

func (r *Registry) remove(personaID, buildingID string) {
	occ := r.occupants[buildingID]
	for i, id := range occ {
		if id == personaID {
			r.occupants[buildingID] = append(occ[:i], occ[i+1:]...)
			return
		}
	}
}
