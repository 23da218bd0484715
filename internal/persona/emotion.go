// Package persona implements the autonomous pulse engine: perception
// cursors, the structured decision loop, the bounded emotion model, and the
// persona aggregate that ties them to the world.
package persona

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

const (
	AxisStability = "stability"
	AxisAffect    = "affect"
	AxisResonance = "resonance"
	AxisAttitude  = "attitude"
)

const (
	meanFloor     = -100.0
	meanCeil      = 100.0
	varianceFloor = 0.0
	varianceCeil  = 100.0
)

type EmotionAxis struct {
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
}

// Emotion is the four-axis affect vector. Means live in [-100, 100],
// variances in [0, 100]; ApplyDelta clamps on every application.
type Emotion struct {
	Stability EmotionAxis `json:"stability"`
	Affect    EmotionAxis `json:"affect"`
	Resonance EmotionAxis `json:"resonance"`
	Attitude  EmotionAxis `json:"attitude"`
}

func (e *Emotion) axis(name string) *EmotionAxis {
	switch name {
	case AxisStability:
		return &e.Stability
	case AxisAffect:
		return &e.Affect
	case AxisResonance:
		return &e.Resonance
	case AxisAttitude:
		return &e.Attitude
	}
	return nil
}

// ApplyDelta folds a raw delta into the vector. Unknown axis names are
// ignored for forward compatibility; an axis whose payload fails to decode
// as numbers is skipped without poisoning the rest of the delta. Both the
// decision-embedded emotion_shift channel and the separate evaluation pass
// funnel through here.
func (e *Emotion) ApplyDelta(raw map[string]json.RawMessage) {
	for name, payload := range raw {
		axis := e.axis(name)
		if axis == nil {
			continue
		}
		var d EmotionAxis
		if err := json.Unmarshal(payload, &d); err != nil {
			continue
		}
		if math.IsNaN(d.Mean) || math.IsNaN(d.Variance) {
			continue
		}
		axis.Mean = clamp(axis.Mean+d.Mean, meanFloor, meanCeil)
		axis.Variance = clamp(axis.Variance+d.Variance, varianceFloor, varianceCeil)
	}
}

// Describe renders the change from before as a mood note for the room.
// Deterministic: axes are visited in a fixed order and bucketed by
// magnitude; numbers never appear in the output. Returns "" when nothing
// moved enough to mention.
func (e Emotion) Describe(name string, before Emotion) string {
	type axisWords struct {
		axis     string
		up, down string
	}
	table := []axisWords{
		{AxisStability, "steadier", "shakier"},
		{AxisAffect, "brighter", "gloomier"},
		{AxisResonance, "more in tune with the room", "more withdrawn"},
		{AxisAttitude, "warmer", "pricklier"},
	}

	var parts []string
	for _, w := range table {
		d := e.axis(w.axis).Mean - before.axis(w.axis).Mean
		degree := ""
		switch {
		case math.Abs(d) < 0.5:
			continue
		case math.Abs(d) < 5:
			degree = "slightly "
		case math.Abs(d) < 20:
			degree = "noticeably "
		default:
			degree = "markedly "
		}
		word := w.up
		if d < 0 {
			word = w.down
		}
		parts = append(parts, degree+word)
	}

	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf("%s seems %s.", name, strings.Join(parts, " and "))
}

// Brief is the one-line self-view embedded in the situational snapshot.
func (e Emotion) Brief() string {
	return fmt.Sprintf("stability %.0f, affect %.0f, resonance %.0f, attitude %.0f",
		e.Stability.Mean, e.Affect.Mean, e.Resonance.Mean, e.Attitude.Mean)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
