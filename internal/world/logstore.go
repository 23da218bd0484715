package world

import (
	"context"
)

// LogStore is the append-only per-building message log.
//
// Implementations must guarantee:
//   - Append assigns sequence numbers atomically: within one building they
//     are strictly increasing, starting at 1, with no duplicates and no
//     out-of-order insertion. Append is the only write path.
//   - Read returns messages in sequence order and observes the caller's own
//     prior appends (read-your-writes).
//   - Concurrent Reads by other personas' cycles are safe while appends are
//     in flight.
type LogStore interface {
	Append(ctx context.Context, buildingID string, msg Message) (int64, error)
	Read(ctx context.Context, buildingID string) ([]Message, error)
	LastSeq(ctx context.Context, buildingID string) (int64, error)
}
