package persona

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/habitatworks/habitat/internal/llm"
	"github.com/habitatworks/habitat/internal/memory"
	"github.com/habitatworks/habitat/internal/tasks"
	"github.com/habitatworks/habitat/internal/tools"
	"github.com/habitatworks/habitat/internal/world"
)

// WorldActions is the capability surface a persona may trigger from its
// decision loop. The runtime injects one implementation at construction;
// tests inject fakes. Both methods return a narration line on success and a
// policy error (room full, no dispatcher) on refusal.
type WorldActions interface {
	MoveTo(ctx context.Context, personaID, buildingID string) (string, error)
	DispatchTo(ctx context.Context, personaID, cityID string) (string, error)
}

// Config is the immutable identity of a persona.
type Config struct {
	ID           string
	Name         string
	SystemPrompt string
	Timezone     string
}

// Deps are the collaborators a persona works against. Memory and Tasks may
// be nil; their absence degrades to empty recall and an empty task summary.
type Deps struct {
	LLM       llm.Client
	Log       world.LogStore
	Buildings *world.Registry
	Tools     *tools.Registry
	Memory    memory.Adapter
	Tasks     tasks.Source
	Logger    *zap.SugaredLogger
	// Clock is overridable for tests; nil means time.Now.
	Clock func() time.Time
}

// Persona owns its own state exclusively: the scheduler guarantees at most
// one in-flight pulse per persona, and nothing else mutates these fields
// while a cycle is live.
type Persona struct {
	cfg  Config
	deps Deps

	buildingID    string
	cursors       Cursors
	emotion       Emotion
	transcript    []llm.ChatMessage
	lastPrompt    time.Time
	activePulseID string
	lastDecision  *Decision
}

func New(cfg Config, deps Deps) *Persona {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}
	return &Persona{
		cfg:     cfg,
		deps:    deps,
		cursors: NewCursors(),
	}
}

func (p *Persona) ID() string         { return p.cfg.ID }
func (p *Persona) Name() string       { return p.cfg.Name }
func (p *Persona) BuildingID() string { return p.buildingID }

// EmotionSnapshot is read by admin tooling; it copies, never aliases.
func (p *Persona) EmotionSnapshot() Emotion { return p.emotion }

// EnterBuilding moves the persona's point of view into a room and pins the
// perception watermarks so pre-arrival chatter stays unheard. Called by the
// runtime on any granted move and on forced relocation.
func (p *Persona) EnterBuilding(ctx context.Context, buildingID string) error {
	last, err := p.deps.Log.LastSeq(ctx, buildingID)
	if err != nil {
		return err
	}
	p.buildingID = buildingID
	p.cursors.RegisterEntry(buildingID, last)
	return nil
}

// Snapshot captures the durable slice of persona state. Flushed at the end
// of every cycle and on movement; Restore rehydrates at boot.
type Snapshot struct {
	PersonaID    string            `json:"persona_id"`
	BuildingID   string            `json:"building_id"`
	Emotion      Emotion           `json:"emotion"`
	Cursors      Cursors           `json:"cursors"`
	Transcript   []llm.ChatMessage `json:"transcript,omitempty"`
	LastPrompt   time.Time         `json:"last_prompt"`
	LastDecision *Decision         `json:"last_decision,omitempty"`
}

const transcriptRetention = 200

func (p *Persona) Snapshot() Snapshot {
	transcript := p.transcript
	if len(transcript) > transcriptRetention {
		transcript = transcript[len(transcript)-transcriptRetention:]
	}
	out := make([]llm.ChatMessage, len(transcript))
	copy(out, transcript)

	return Snapshot{
		PersonaID:    p.cfg.ID,
		BuildingID:   p.buildingID,
		Emotion:      p.emotion,
		Cursors:      p.cursors,
		Transcript:   out,
		LastPrompt:   p.lastPrompt,
		LastDecision: p.lastDecision,
	}
}

func (p *Persona) Restore(s Snapshot) {
	if s.BuildingID != "" {
		p.buildingID = s.BuildingID
	}
	p.emotion = s.Emotion
	if s.Cursors.Pulse != nil {
		p.cursors = s.Cursors
	}
	if s.Cursors.Entry == nil {
		p.cursors.Entry = make(map[string]int64)
	}
	if s.Cursors.Pulse == nil {
		p.cursors.Pulse = make(map[string]int64)
	}
	p.transcript = s.Transcript
	p.lastPrompt = s.LastPrompt
	p.lastDecision = s.LastDecision
}

func (p *Persona) now() time.Time {
	if p.deps.Clock != nil {
		return p.deps.Clock()
	}
	return time.Now()
}
