// Package memory is the long-term recall store behind the pulse engine.
// Personas write their utterances here as they speak and pull bounded
// snippets back in when a new user message arrives. The pulse engine treats
// absence of an adapter as empty recall, never as a failure.
package memory

import (
	"context"
	"time"

	"github.com/habitatworks/habitat/internal/world"
)

type ThreadSummary struct {
	Suffix  string `json:"suffix"`
	Preview string `json:"preview"`
	Active  bool   `json:"active"`
}

type Adapter interface {
	// IsReady reports whether the backing store is reachable. Not-ready
	// adapters degrade to empty recall.
	IsReady() bool

	// RecallSnippet returns up to maxChars of stored context relevant to
	// query within a building's history. Entries created at
	// excludeCreatedAt are skipped so the message that triggered the
	// current cycle cannot recall itself.
	RecallSnippet(ctx context.Context, buildingID, query string, maxChars int, excludeCreatedAt time.Time) (string, error)

	// AppendPersonaMessage stores one utterance for later recall.
	AppendPersonaMessage(ctx context.Context, buildingID string, msg world.Message) error

	// ListThreadSummaries returns per-building conversation previews.
	ListThreadSummaries(ctx context.Context) ([]ThreadSummary, error)
}
