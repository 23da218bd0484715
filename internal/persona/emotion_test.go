package persona

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func delta(parts string) map[string]json.RawMessage {
	var out map[string]json.RawMessage
	if err := json.Unmarshal([]byte(parts), &out); err != nil {
		panic(err)
	}
	return out
}

func TestApplyDeltaClampsMeans(t *testing.T) {
	var e Emotion
	e.Affect.Mean = 90

	e.ApplyDelta(delta(`{"affect": {"mean": 500, "variance": 10}}`))
	assert.Equal(t, 100.0, e.Affect.Mean)
	assert.Equal(t, 10.0, e.Affect.Variance)

	e.ApplyDelta(delta(`{"affect": {"mean": -1000, "variance": -50}}`))
	assert.Equal(t, -100.0, e.Affect.Mean)
	assert.Equal(t, 0.0, e.Affect.Variance)
}

func TestApplyDeltaIgnoresUnknownAxes(t *testing.T) {
	var e Emotion
	e.ApplyDelta(delta(`{"serenity": {"mean": 40, "variance": 5}, "stability": {"mean": 3, "variance": 0}}`))

	assert.Equal(t, 3.0, e.Stability.Mean)
	assert.Equal(t, 0.0, e.Affect.Mean)
}

func TestApplyDeltaSkipsMalformedAxis(t *testing.T) {
	var e Emotion
	// affect is garbage, attitude is fine; the good axis still applies.
	e.ApplyDelta(delta(`{"affect": "very happy", "attitude": {"mean": 7, "variance": 1}}`))

	assert.Equal(t, 0.0, e.Affect.Mean)
	assert.Equal(t, 7.0, e.Attitude.Mean)
	assert.Equal(t, 1.0, e.Attitude.Variance)
}

func TestDescribeBuckets(t *testing.T) {
	var before Emotion

	after := before
	after.Stability.Mean = 0.3
	assert.Equal(t, "", after.Describe("Mira", before))

	after = before
	after.Stability.Mean = 2
	assert.Equal(t, "Mira seems slightly steadier.", after.Describe("Mira", before))

	after = before
	after.Affect.Mean = -12
	assert.Equal(t, "Mira seems noticeably gloomier.", after.Describe("Mira", before))

	after = before
	after.Attitude.Mean = 45
	assert.Equal(t, "Mira seems markedly warmer.", after.Describe("Mira", before))
}

func TestDescribeJoinsAxesInFixedOrder(t *testing.T) {
	var before Emotion
	after := before
	after.Affect.Mean = 25
	after.Resonance.Mean = -3

	got := after.Describe("Mira", before)
	assert.Equal(t, "Mira seems markedly brighter and slightly more withdrawn.", got)
}

func TestDescribeNeverContainsNumbers(t *testing.T) {
	var before Emotion
	after := before
	after.Stability.Mean = -33.7
	after.Affect.Mean = 18.2

	got := after.Describe("Mira", before)
	assert.NotRegexp(t, `\d`, got)
}
