// Package tasks exposes the read-only open-task summary that feeds the
// situational snapshot. The pulse engine only ever reads; task lifecycle
// management lives elsewhere.
package tasks

import (
	"context"
	"fmt"
	"strings"
)

type Task struct {
	Title  string   `json:"title"`
	Status string   `json:"status"`
	Steps  []string `json:"steps,omitempty"`
}

type Source interface {
	ListTasks(ctx context.Context, personaID string) ([]Task, error)
}

// Summarize renders tasks as the short block embedded into the snapshot.
func Summarize(tasks []Task) string {
	if len(tasks) == 0 {
		return "no open tasks"
	}
	var b strings.Builder
	for _, t := range tasks {
		fmt.Fprintf(&b, "- %s (%s)", t.Title, t.Status)
		if len(t.Steps) > 0 {
			fmt.Fprintf(&b, ": %s", strings.Join(t.Steps, "; "))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
