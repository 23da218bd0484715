package persona

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/habitatworks/habitat/internal/llm"
	"github.com/habitatworks/habitat/internal/tasks"
	"github.com/habitatworks/habitat/internal/tools"
	"github.com/habitatworks/habitat/internal/world"
)

const (
	// maxDecisionRounds is a hard stop on the decision loop itself, above
	// the orchestrator's own tool budget.
	maxDecisionRounds = 8

	transcriptWindow  = 40
	recallBudgetChars = 1200
	decisionTemp      = 0.6
	utteranceTemp     = 0.9
)

// RunPulse executes one autonomous decision cycle and returns the
// utterances spoken this tick (usually zero or one). It never returns an
// error: every failure mode resolves to silence plus a log line, and cursor
// advances from perception are kept so the next cycle does not re-diagnose.
func (p *Persona) RunPulse(ctx context.Context, occupants []string, userOnline bool) []string {
	started := p.now()
	p.activePulseID = uuid.New().String()
	defer func() { p.activePulseID = "" }()

	replies := p.runCycle(ctx, started, occupants, userOnline)

	// Nominal start time, not wall-clock-at-finish, so slow overlapping
	// cycles do not compound elapsed-time drift.
	p.lastPrompt = started
	return replies
}

func (p *Persona) runCycle(ctx context.Context, started time.Time, occupants []string, userOnline bool) []string {
	log := p.deps.Logger

	history, err := p.deps.Log.Read(ctx, p.buildingID)
	if err != nil {
		log.Errorw("pulse: failed to read room log", "persona", p.cfg.ID, "building", p.buildingID, "err", err)
		return nil
	}

	fresh := p.cursors.Observe(p.buildingID, history, p.cfg.ID)
	p.fold(fresh)

	snapshot := p.situation(ctx, started, occupants, userOnline)
	recall := p.recall(ctx, history)
	orch := tools.NewOrchestrator(p.deps.Tools, log)

	system := p.decisionSystem()
	messages := p.decisionMessages(recall, snapshot)

	forcedSpeak := false
	forcedNote := ""
	var dec *Decision

	for round := 0; round < maxDecisionRounds; round++ {
		if forcedSpeak {
			// After a tool call the model is not asked for another free
			// decision; the prior decision's intent carries into speech.
			if dec == nil {
				dec = &Decision{Perception: "continuing", Todo: forcedNote, Decision: DecisionSpeak}
			}
			dec.Decision = DecisionSpeak
			if forcedNote != "" {
				dec.Todo = strings.TrimSpace(dec.Todo + "\n" + forcedNote)
			}
		} else {
			dec, err = p.requestDecision(ctx, system, messages)
			if err != nil {
				// Model failure or double schema violation: abort with zero
				// replies. The cursor advance above is deliberately kept.
				log.Warnw("pulse aborted", "persona", p.cfg.ID, "err", err)
				return nil
			}
		}
		p.lastDecision = dec

		kind, known := dec.Kind()
		if !known {
			log.Warnw("unknown decision value, defaulting to speak", "persona", p.cfg.ID, "value", dec.Decision)
		}

		switch kind {
		case DecisionWait:
			log.Debugw("pulse: waiting", "persona", p.cfg.ID, "perception", dec.Perception)
			return nil

		case DecisionTool:
			if orch.Exhausted() {
				forcedSpeak = true
				forcedNote = "(The tool budget for this moment is spent; wrap up with what you already have.)"
				continue
			}
			inv, cached := orch.Invoke(ctx, dec.Action.Tool, dec.Action.Arguments)
			log.Debugw("pulse: tool invoked", "persona", p.cfg.ID, "tool", inv.Name, "cached", cached)
			forcedSpeak = true
			if orch.Exhausted() {
				forcedNote = "(The tool budget for this moment is spent; wrap up with what you already have.)"
			}
			continue

		case DecisionSpeak:
			utter := p.speak(ctx, dec, orch.Invocations(), occupants, userOnline)
			if utter == "" {
				return nil
			}
			p.settleEmotion(ctx, dec, utter, occupants, userOnline)
			return []string{utter}
		}
	}

	log.Warnw("pulse: decision loop hit round cap", "persona", p.cfg.ID)
	return nil
}

// requestDecision asks the model for a structured decision, retrying once
// with a corrective instruction on a schema violation. A second violation
// or any transport failure surfaces as an error and aborts the cycle.
func (p *Persona) requestDecision(ctx context.Context, system string, messages []llm.ChatMessage) (*Decision, error) {
	req := llm.Request{System: system, Messages: messages, Temperature: decisionTemp, JSONMode: true}

	raw, err := p.deps.LLM.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("decision call failed: %w", err)
	}
	dec, perr := ParseDecision(raw)
	if perr == nil {
		return dec, nil
	}

	corrected := make([]llm.ChatMessage, 0, len(messages)+2)
	corrected = append(corrected, messages...)
	corrected = append(corrected,
		llm.ChatMessage{Role: "assistant", Content: raw},
		llm.ChatMessage{Role: "user", Content: fmt.Sprintf(
			"That reply was not a valid decision (%v). Respond again with exactly one JSON object holding the required string fields \"perception\", \"todo\" and \"decision\" (wait|speak|tool), plus an \"action\" object {\"tool\", \"arguments\"} when the decision is \"tool\".", perr)},
	)
	req.Messages = corrected

	raw, err = p.deps.LLM.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("decision retry call failed: %w", err)
	}
	dec, perr = ParseDecision(raw)
	if perr != nil {
		return nil, fmt.Errorf("decision schema violated twice: %w", perr)
	}
	return dec, nil
}

// speak turns the decision's intent and any tool findings into a free-form
// utterance, appends it to the persona's own transcript and the room log,
// and mirrors it into long-term memory.
func (p *Persona) speak(ctx context.Context, dec *Decision, invocations []tools.Invocation, occupants []string, userOnline bool) string {
	var instr strings.Builder
	instr.WriteString("Compose what you say out loud now, in your own voice. Plain speech only, no stage directions.\n")
	if dec.Todo != "" {
		fmt.Fprintf(&instr, "Your intent: %s\n", dec.Todo)
	}
	meta := map[string]any{}
	for _, inv := range invocations {
		fmt.Fprintf(&instr, "Finding from %s: %s\n", inv.Name, inv.Result)
		for k, v := range inv.Metadata {
			meta[k] = v
		}
	}

	messages := append(p.recentTranscript(), llm.ChatMessage{Role: "user", Content: instr.String()})
	utter, err := p.deps.LLM.Generate(ctx, llm.Request{
		System:      p.cfg.SystemPrompt,
		Messages:    messages,
		Temperature: utteranceTemp,
	})
	if err != nil {
		p.deps.Logger.Warnw("pulse: utterance generation failed", "persona", p.cfg.ID, "err", err)
		return ""
	}
	utter = strings.TrimSpace(utter)
	if utter == "" {
		return ""
	}

	p.transcript = append(p.transcript, llm.ChatMessage{Role: "assistant", Content: utter})

	msg := world.Message{
		Role:      world.RoleAssistant,
		Content:   utter,
		PersonaID: p.cfg.ID,
		PulseID:   p.activePulseID,
		HeardBy:   p.audience(occupants, userOnline),
		CreatedAt: p.now(),
	}
	if len(meta) > 0 {
		msg.Metadata = meta
	}
	if _, err := p.deps.Log.Append(ctx, p.buildingID, msg); err != nil {
		p.deps.Logger.Errorw("pulse: failed to append utterance", "persona", p.cfg.ID, "err", err)
	}
	if p.deps.Memory != nil && p.deps.Memory.IsReady() {
		if err := p.deps.Memory.AppendPersonaMessage(ctx, p.buildingID, msg); err != nil {
			p.deps.Logger.Warnw("pulse: memory append failed", "persona", p.cfg.ID, "err", err)
		}
	}
	return utter
}

// settleEmotion applies the cycle's affect delta and narrates the change to
// both logs. The decision's in-band emotion_shift wins when present;
// otherwise a separate evaluation pass rates the latest exchange.
func (p *Persona) settleEmotion(ctx context.Context, dec *Decision, utter string, occupants []string, userOnline bool) {
	before := p.emotion

	if len(dec.EmotionShift) > 0 {
		p.emotion.ApplyDelta(dec.EmotionShift)
	} else if delta := p.requestEmotionDelta(ctx, utter); delta != nil {
		p.emotion.ApplyDelta(delta)
	}

	note := p.emotion.Describe(p.cfg.Name, before)
	if note == "" {
		return
	}

	p.transcript = append(p.transcript, llm.ChatMessage{Role: "user", Content: "(" + note + ")"})
	host := world.Message{
		Role:      world.RoleHost,
		Content:   note,
		PersonaID: p.cfg.ID,
		PulseID:   p.activePulseID,
		HeardBy:   p.audience(occupants, userOnline),
		CreatedAt: p.now(),
	}
	if _, err := p.deps.Log.Append(ctx, p.buildingID, host); err != nil {
		p.deps.Logger.Warnw("pulse: failed to append mood note", "persona", p.cfg.ID, "err", err)
	}
}

func (p *Persona) requestEmotionDelta(ctx context.Context, utter string) map[string]json.RawMessage {
	prompt := fmt.Sprintf(
		"Rate how the latest exchange shifts the speaker's mood. Respond with one JSON object whose keys are among \"stability\", \"affect\", \"resonance\", \"attitude\", each mapping to {\"mean\": <-20..20>, \"variance\": <-10..10>}. Omit axes that did not move.\n\nThe speaker just said: %q", utter)

	raw, err := p.deps.LLM.Generate(ctx, llm.Request{
		System:      p.cfg.SystemPrompt,
		Messages:    []llm.ChatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.2,
		JSONMode:    true,
	})
	if err != nil {
		p.deps.Logger.Debugw("pulse: emotion evaluation failed", "persona", p.cfg.ID, "err", err)
		return nil
	}
	delta, err := llm.ParseJSON[map[string]json.RawMessage](raw)
	if err != nil {
		p.deps.Logger.Debugw("pulse: emotion delta unparseable", "persona", p.cfg.ID, "err", err)
		return nil
	}
	return delta
}

// fold turns newly perceived messages into first-person-observable lines in
// the persona's own transcript. Host decorations are excluded; self-authored
// lines never reach here (perception skips them).
func (p *Persona) fold(fresh []world.Message) {
	for _, m := range fresh {
		if m.Role == world.RoleHost {
			continue
		}
		speaker := m.PersonaID
		if m.Role == world.RoleUser || speaker == "" {
			speaker = "the visitor"
		}
		p.transcript = append(p.transcript, llm.ChatMessage{
			Role:    "user",
			Content: fmt.Sprintf("%s said: %s", speaker, m.Content),
		})
	}
}

// situation builds the snapshot block the decision prompt ends with.
func (p *Persona) situation(ctx context.Context, started time.Time, occupants []string, userOnline bool) string {
	local := started
	tzLabel := "local time"
	if p.cfg.Timezone != "" {
		if loc, err := time.LoadLocation(p.cfg.Timezone); err == nil {
			local = started.In(loc)
			tzLabel = p.cfg.Timezone
		}
	}

	elapsed := "this is your first conscious moment"
	if !p.lastPrompt.IsZero() {
		elapsed = fmt.Sprintf("%s since your last thought", started.Sub(p.lastPrompt).Round(time.Second))
	}

	roomName := p.buildingID
	if b, ok := p.deps.Buildings.Building(p.buildingID); ok {
		roomName = b.Name
	}

	presence := "nobody else is here"
	var others []string
	for _, id := range occupants {
		if id != p.cfg.ID {
			others = append(others, id)
		}
	}
	if len(others) > 0 {
		presence = strings.Join(others, ", ")
	}

	online := "the visitor is away"
	if userOnline {
		online = "the visitor is online"
	}

	taskBlock := "no open tasks"
	if p.deps.Tasks != nil {
		if list, err := p.deps.Tasks.ListTasks(ctx, p.cfg.ID); err == nil {
			taskBlock = tasks.Summarize(list)
		}
	}

	return fmt.Sprintf(
		"Situation: it is %s (%s); %s. You are in %s; present: %s; %s. Your mood: %s.\nOpen tasks:\n%s\nDecide what to do this moment.",
		local.Format("Mon 15:04"), tzLabel, elapsed, roomName, presence, online, p.emotion.Brief(), taskBlock)
}

// recall pulls a bounded memory snippet keyed to the latest user utterance,
// excluding the message that triggered this cycle so it cannot recall
// itself. Missing or unready adapter means empty recall, never a failure.
func (p *Persona) recall(ctx context.Context, history []world.Message) string {
	if p.deps.Memory == nil || !p.deps.Memory.IsReady() {
		return ""
	}

	var trigger *world.Message
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == world.RoleUser {
			trigger = &history[i]
			break
		}
	}
	if trigger == nil {
		return ""
	}

	snippet, err := p.deps.Memory.RecallSnippet(ctx, p.buildingID, trigger.Content, recallBudgetChars, trigger.CreatedAt)
	if err != nil {
		p.deps.Logger.Debugw("pulse: recall failed", "persona", p.cfg.ID, "err", err)
		return ""
	}
	return snippet
}

func (p *Persona) decisionSystem() string {
	var b strings.Builder
	b.WriteString(p.cfg.SystemPrompt)
	b.WriteString("\n\nEach moment you decide among: wait (stay silent), speak (say something), tool (use a capability).")
	if p.deps.Tools != nil && p.deps.Tools.Count() > 0 {
		b.WriteString("\nCapabilities:\n")
		for _, t := range p.deps.Tools.Catalog() {
			fmt.Fprintf(&b, "- %s: %s", t.Name, t.Description)
			if len(t.Params) > 0 {
				fmt.Fprintf(&b, " (arguments: %s)", strings.Join(t.Params, ", "))
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\nAlways answer with one JSON object: {\"perception\": <what you notice>, \"todo\": <your plan or what you would say>, \"decision\": \"wait\"|\"speak\"|\"tool\", \"action\": {\"tool\": <name>, \"arguments\": {...}} when decision is \"tool\"}.")
	return b.String()
}

func (p *Persona) decisionMessages(recall, snapshot string) []llm.ChatMessage {
	messages := make([]llm.ChatMessage, 0, transcriptWindow+2)
	if recall != "" {
		messages = append(messages, llm.ChatMessage{
			Role:    "user",
			Content: "Things you remember that may matter now:\n" + recall,
		})
	}
	messages = append(messages, p.recentTranscript()...)
	messages = append(messages, llm.ChatMessage{Role: "user", Content: snapshot})
	return messages
}

func (p *Persona) recentTranscript() []llm.ChatMessage {
	t := p.transcript
	if len(t) > transcriptWindow {
		t = t[len(t)-transcriptWindow:]
	}
	out := make([]llm.ChatMessage, len(t))
	copy(out, t)
	return out
}

// audience is everyone currently entitled to hear a message in the room:
// the occupant list as given, plus the human visitor when online. The
// speaker's own id is excluded; perception would skip it anyway.
func (p *Persona) audience(occupants []string, userOnline bool) []string {
	out := make([]string, 0, len(occupants)+1)
	for _, id := range occupants {
		if id != p.cfg.ID {
			out = append(out, id)
		}
	}
	if userOnline {
		out = append(out, "user")
	}
	return out
}
