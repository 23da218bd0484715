// Package tools holds the capability catalog personas can invoke from the
// decision loop, and the per-pulse orchestrator that executes them with
// argument sanitization, deduplication, and a hard call budget.
package tools

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrToolAlreadyRegistered = errors.New("tool already registered")
	ErrToolNotFound          = errors.New("tool not found")
)

// Handler executes one capability. It returns a textual result for the
// persona's utterance and optional structured metadata (media references
// and the like) staged onto the eventual message.
type Handler func(ctx context.Context, args map[string]any) (string, map[string]any, error)

// Tool is one named capability. Params lists argument names for prompt
// assembly only; handlers validate their own inputs.
type Tool struct {
	Name        string
	Description string
	Params      []string
	Handler     Handler
}

func (t *Tool) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("tool name required")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %s has no handler", t.Name)
	}
	return nil
}
