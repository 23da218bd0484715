package persona

import (
	"encoding/json"
	"fmt"

	"github.com/habitatworks/habitat/internal/llm"
)

const (
	DecisionWait  = "wait"
	DecisionSpeak = "speak"
	DecisionTool  = "tool"
)

// Action names the capability a tool decision wants invoked.
type Action struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// Decision is the structured result demanded from the model on every loop
// iteration. Perception, Todo and Decision are mandatory; Action only
// accompanies a tool decision. EmotionShift is the legacy in-band delta
// channel, still honored when present.
type Decision struct {
	Perception   string                     `json:"perception"`
	Todo         string                     `json:"todo"`
	Decision     string                     `json:"decision"`
	Action       *Action                    `json:"action,omitempty"`
	EmotionShift map[string]json.RawMessage `json:"emotion_shift,omitempty"`
}

// ParseDecision decodes a model response into a validated Decision.
func ParseDecision(raw string) (*Decision, error) {
	dec, err := llm.ParseJSON[Decision](raw)
	if err != nil {
		return nil, err
	}
	if err := dec.Validate(); err != nil {
		return nil, err
	}
	return &dec, nil
}

func (d *Decision) Validate() error {
	if d.Perception == "" {
		return fmt.Errorf("missing required field %q", "perception")
	}
	if d.Todo == "" {
		return fmt.Errorf("missing required field %q", "todo")
	}
	if d.Decision == "" {
		return fmt.Errorf("missing required field %q", "decision")
	}
	if d.Decision == DecisionTool && (d.Action == nil || d.Action.Tool == "") {
		return fmt.Errorf("decision %q requires an action with a tool name", DecisionTool)
	}
	return nil
}

// Kind normalizes the decision enum. Unknown values collapse to speak so a
// persona stays responsive under upstream drift; the caller logs the drift.
func (d *Decision) Kind() (string, bool) {
	switch d.Decision {
	case DecisionWait, DecisionSpeak, DecisionTool:
		return d.Decision, true
	}
	return DecisionSpeak, false
}
