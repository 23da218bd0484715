package world

import (
	"context"
	"sync"
	"time"
)

// MemoryLog is an in-process LogStore. It backs tests and ephemeral runs
// where durability is not needed.
type MemoryLog struct {
	mu   sync.RWMutex
	logs map[string][]Message
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{logs: make(map[string][]Message)}
}

func (l *MemoryLog) Append(ctx context.Context, buildingID string, msg Message) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	log := l.logs[buildingID]
	msg.Seq = 1
	if n := len(log); n > 0 {
		msg.Seq = log[n-1].Seq + 1
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	l.logs[buildingID] = append(log, msg)
	return msg.Seq, nil
}

func (l *MemoryLog) Read(ctx context.Context, buildingID string) ([]Message, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	log := l.logs[buildingID]
	out := make([]Message, len(log))
	copy(out, log)
	return out, nil
}

func (l *MemoryLog) LastSeq(ctx context.Context, buildingID string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	log := l.logs[buildingID]
	if len(log) == 0 {
		return 0, nil
	}
	return log[len(log)-1].Seq, nil
}
