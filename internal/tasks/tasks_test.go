package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, "no open tasks", Summarize(nil))
}

func TestSummarize(t *testing.T) {
	got := Summarize([]Task{
		{Title: "water the plants", Status: "open", Steps: []string{"fill can", "pour"}},
		{Title: "sort mail", Status: "in_progress"},
	})
	assert.Equal(t, "- water the plants (open): fill can; pour\n- sort mail (in_progress)", got)
}
