// Package runtime composes the world registry, log store, persona engine,
// tools, memory and persistence into one city, and implements the
// WorldActions capability surface personas trigger from their decision
// loops.
package runtime

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/habitatworks/habitat/internal/llm"
	"github.com/habitatworks/habitat/internal/memory"
	"github.com/habitatworks/habitat/internal/persona"
	"github.com/habitatworks/habitat/internal/state"
	"github.com/habitatworks/habitat/internal/tasks"
	"github.com/habitatworks/habitat/internal/world"
)

// Pulser is anything that can take a pulse: a local persona or a remote
// proxy for one hosted elsewhere.
type Pulser interface {
	ID() string
	RunPulse(ctx context.Context, occupants []string, userOnline bool) []string
}

type Options struct {
	CityID    string
	PublicURL string

	Buildings  *world.Registry
	Log        world.LogStore
	LLM        llm.Client
	Memory     memory.Adapter      // optional
	Tasks      tasks.Source        // optional
	Store      *state.PersonaStore // optional
	Dispatcher Dispatcher          // optional
	Logger     *zap.SugaredLogger
	Clock      func() time.Time
}

type City struct {
	id        string
	publicURL string

	buildings  *world.Registry
	log        world.LogStore
	llm        llm.Client
	memory     memory.Adapter
	tasks      tasks.Source
	store      *state.PersonaStore
	dispatcher Dispatcher
	logger     *zap.SugaredLogger
	clock      func() time.Time

	personas map[string]Pulser
	locals   map[string]*persona.Persona
}

func NewCity(opts Options) *City {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Buildings == nil {
		opts.Buildings = world.NewRegistry()
	}
	return &City{
		id:         opts.CityID,
		publicURL:  opts.PublicURL,
		buildings:  opts.Buildings,
		log:        opts.Log,
		llm:        opts.LLM,
		memory:     opts.Memory,
		tasks:      opts.Tasks,
		store:      opts.Store,
		dispatcher: opts.Dispatcher,
		logger:     opts.Logger,
		clock:      opts.Clock,
		personas:   make(map[string]Pulser),
		locals:     make(map[string]*persona.Persona),
	}
}

func (c *City) ID() string                 { return c.id }
func (c *City) Buildings() *world.Registry { return c.buildings }
func (c *City) Log() world.LogStore        { return c.log }

// AddPersona provisions a local persona, rehydrating its snapshot when one
// exists and placing it into a building (capacity-gated like any move).
func (c *City) AddPersona(ctx context.Context, cfg persona.Config, buildingID string) (*persona.Persona, error) {
	p := persona.New(cfg, persona.Deps{
		LLM:       c.llm,
		Log:       c.log,
		Buildings: c.buildings,
		Tools:     c.toolRegistryFor(cfg.ID),
		Memory:    c.memory,
		Tasks:     c.tasks,
		Logger:    c.logger,
		Clock:     c.clock,
	})

	restored := false
	if c.store != nil {
		if snap, err := c.store.Load(ctx, cfg.ID); err == nil {
			p.Restore(snap)
			restored = true
		}
	}

	home := buildingID
	if restored && p.BuildingID() != "" {
		home = p.BuildingID()
	}
	if err := c.buildings.Place(cfg.ID, home); err != nil {
		return nil, fmt.Errorf("place %s: %w", cfg.ID, err)
	}
	if !restored || p.BuildingID() == "" {
		// First provisioning counts as an arrival: pre-existing room
		// history stays unheard. A process restart does not.
		if err := p.EnterBuilding(ctx, home); err != nil {
			return nil, fmt.Errorf("enter %s: %w", home, err)
		}
	}

	c.personas[cfg.ID] = p
	c.locals[cfg.ID] = p
	return p, nil
}

// AddRemotePersona hosts a persona whose decision loop runs on its home
// city. Pulses for it are forwarded, not executed locally.
func (c *City) AddRemotePersona(personaID, homeURL, buildingID string) error {
	if err := c.buildings.Place(personaID, buildingID); err != nil {
		return fmt.Errorf("place remote %s: %w", personaID, err)
	}
	c.personas[personaID] = persona.NewRemoteProxy(personaID, homeURL, c.logger)
	c.logger.Infow("hosting remote persona", "persona", personaID, "home", homeURL, "building", buildingID)
	return nil
}

// Persona returns the local persona aggregate, for admin reads.
func (c *City) Persona(personaID string) (*persona.Persona, bool) {
	p, ok := c.locals[personaID]
	return p, ok
}

// RunPulse is the scheduler entry point. Dispatched personas are skipped;
// their host city forwards pulses through RunForwardedPulse instead.
func (c *City) RunPulse(ctx context.Context, personaID string, occupants []string, userOnline bool) ([]string, error) {
	if c.buildings.IsDispatched(personaID) {
		return nil, nil
	}
	return c.RunForwardedPulse(ctx, personaID, occupants, userOnline)
}

// RunForwardedPulse runs a pulse regardless of dispatch state. The HTTP
// dispatch surface lands here so a dispatched persona still thinks on its
// home runtime.
func (c *City) RunForwardedPulse(ctx context.Context, personaID string, occupants []string, userOnline bool) ([]string, error) {
	pl, ok := c.personas[personaID]
	if !ok {
		return nil, fmt.Errorf("unknown persona %q", personaID)
	}

	replies := pl.RunPulse(ctx, occupants, userOnline)
	c.flush(ctx, personaID)
	return replies, nil
}

// RegisterEntry is the forced-relocation hook: admin tooling moved the
// persona outside its own decision loop and its watermarks must follow.
func (c *City) RegisterEntry(ctx context.Context, personaID, buildingID string) error {
	p, ok := c.locals[personaID]
	if !ok {
		return fmt.Errorf("unknown persona %q", personaID)
	}
	if err := p.EnterBuilding(ctx, buildingID); err != nil {
		return err
	}
	c.flush(ctx, personaID)
	return nil
}

// MoveTo implements persona.WorldActions. Refusals narrate a host notice in
// the persona's current room and return the policy error; grants reset the
// destination watermarks and narrate the arrival.
func (c *City) MoveTo(ctx context.Context, personaID, buildingID string) (string, error) {
	p, ok := c.locals[personaID]
	if !ok {
		return "", fmt.Errorf("unknown persona %q", personaID)
	}
	from := p.BuildingID()

	// Staying put is not an arrival: no narration, and the watermarks keep
	// whatever is still unread.
	if from == buildingID {
		dest := buildingID
		if b, ok := c.buildings.Building(buildingID); ok {
			dest = b.Name
		}
		return fmt.Sprintf("You are already in %s.", dest), nil
	}

	if err := c.buildings.Move(personaID, from, buildingID); err != nil {
		c.narrate(ctx, from, fmt.Sprintf("%s makes to leave, but cannot: %v.", p.Name(), err))
		return "", err
	}

	if err := p.EnterBuilding(ctx, buildingID); err != nil {
		return "", fmt.Errorf("enter %s: %w", buildingID, err)
	}

	dest := buildingID
	if b, ok := c.buildings.Building(buildingID); ok {
		dest = b.Name
	}
	c.narrate(ctx, buildingID, fmt.Sprintf("%s arrives.", p.Name()))
	c.flush(ctx, personaID)
	return fmt.Sprintf("You are now in %s.", dest), nil
}

// DispatchTo implements persona.WorldActions for cross-city travel.
func (c *City) DispatchTo(ctx context.Context, personaID, cityID string) (string, error) {
	p, ok := c.locals[personaID]
	if !ok {
		return "", fmt.Errorf("unknown persona %q", personaID)
	}
	from := p.BuildingID()

	if c.dispatcher == nil {
		c.narrate(ctx, from, fmt.Sprintf("%s looks toward the horizon, but no road leads out of town.", p.Name()))
		return "", ErrNoDispatcher
	}

	if err := c.dispatcher.Dispatch(ctx, personaID, cityID, c.publicURL); err != nil {
		c.narrate(ctx, from, fmt.Sprintf("%s tried to travel to %s, but the journey fell through.", p.Name(), cityID))
		return "", err
	}

	c.buildings.MarkDispatched(personaID, from)
	c.narrate(ctx, from, fmt.Sprintf("%s departs for %s.", p.Name(), cityID))
	c.flush(ctx, personaID)
	return fmt.Sprintf("You set out for %s.", cityID), nil
}

// narrate appends a host notice audible to the room's current occupants.
func (c *City) narrate(ctx context.Context, buildingID, text string) {
	msg := world.Message{
		Role:      world.RoleHost,
		Content:   text,
		HeardBy:   c.buildings.Occupants(buildingID),
		CreatedAt: c.now(),
	}
	if _, err := c.log.Append(ctx, buildingID, msg); err != nil {
		c.logger.Warnw("failed to narrate", "building", buildingID, "err", err)
	}
}

func (c *City) flush(ctx context.Context, personaID string) {
	if c.store == nil {
		return
	}
	p, ok := c.locals[personaID]
	if !ok {
		return
	}
	if err := c.store.Save(ctx, p.Snapshot()); err != nil {
		c.logger.Errorw("failed to flush persona state", "persona", personaID, "err", err)
	}
}

func (c *City) now() time.Time {
	if c.clock != nil {
		return c.clock()
	}
	return time.Now()
}
