package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/habitatworks/habitat/internal/persona"
)

var ErrNoSnapshot = errors.New("no stored snapshot for persona")

// PersonaStore persists persona snapshots for rehydration at boot. Admin
// tooling reads these surfaces; only the owning cycle writes them.
type PersonaStore struct {
	db *sql.DB
}

func NewPersonaStore(db *sql.DB) *PersonaStore {
	return &PersonaStore{db: db}
}

func (s *PersonaStore) Save(ctx context.Context, snap persona.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot for %s: %w", snap.PersonaID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO personas (persona_id, snapshot, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(persona_id) DO UPDATE SET snapshot = excluded.snapshot, updated_at = excluded.updated_at`,
		snap.PersonaID, string(raw), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save snapshot for %s: %w", snap.PersonaID, err)
	}
	return nil
}

func (s *PersonaStore) Load(ctx context.Context, personaID string) (persona.Snapshot, error) {
	var raw string
	row := s.db.QueryRowContext(ctx, `SELECT snapshot FROM personas WHERE persona_id = ?`, personaID)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persona.Snapshot{}, fmt.Errorf("%w: %s", ErrNoSnapshot, personaID)
		}
		return persona.Snapshot{}, fmt.Errorf("load snapshot for %s: %w", personaID, err)
	}

	var snap persona.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return persona.Snapshot{}, fmt.Errorf("decode snapshot for %s: %w", personaID, err)
	}
	return snap, nil
}
