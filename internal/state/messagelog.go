package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/habitatworks/habitat/internal/world"
)

// MessageLog is the durable world.LogStore. Sequence assignment and the
// insert happen in one statement under SQLite's write serialization, so
// concurrent appenders can never be handed the same number (the
// no-out-of-order guarantee holds by construction: this is the only write
// path).
type MessageLog struct {
	db *sql.DB
}

func NewMessageLog(db *sql.DB) *MessageLog {
	return &MessageLog{db: db}
}

func (l *MessageLog) Append(ctx context.Context, buildingID string, msg world.Message) (int64, error) {
	heardBy, err := json.Marshal(msg.HeardBy)
	if err != nil {
		return 0, fmt.Errorf("encode heard_by: %w", err)
	}
	var metadata []byte
	if len(msg.Metadata) > 0 {
		metadata, err = json.Marshal(msg.Metadata)
		if err != nil {
			return 0, fmt.Errorf("encode metadata: %w", err)
		}
	}
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var seq int64
	row := l.db.QueryRowContext(ctx, `
		INSERT INTO messages (building_id, seq, role, content, persona_id, pulse_id, heard_by, metadata, created_at)
		SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ?, ?, ?, ? FROM messages WHERE building_id = ?
		RETURNING seq`,
		buildingID, string(msg.Role), msg.Content, msg.PersonaID, msg.PulseID,
		string(heardBy), nullableString(metadata), createdAt.UTC().Format(time.RFC3339Nano),
		buildingID,
	)
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	return seq, nil
}

func (l *MessageLog) Read(ctx context.Context, buildingID string) ([]world.Message, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT seq, role, content, persona_id, pulse_id, heard_by, metadata, created_at
		FROM messages WHERE building_id = ? ORDER BY seq`, buildingID)
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer rows.Close()

	var out []world.Message
	for rows.Next() {
		var (
			msg       world.Message
			role      string
			heardBy   string
			metadata  sql.NullString
			createdAt string
		)
		if err := rows.Scan(&msg.Seq, &role, &msg.Content, &msg.PersonaID, &msg.PulseID, &heardBy, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = world.Role(role)
		if heardBy != "" {
			if err := json.Unmarshal([]byte(heardBy), &msg.HeardBy); err != nil {
				return nil, fmt.Errorf("decode heard_by for seq %d: %w", msg.Seq, err)
			}
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &msg.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for seq %d: %w", msg.Seq, err)
			}
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			msg.CreatedAt = t
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (l *MessageLog) LastSeq(ctx context.Context, buildingID string) (int64, error) {
	var last sql.NullInt64
	row := l.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM messages WHERE building_id = ?`, buildingID)
	if err := row.Scan(&last); err != nil {
		return 0, fmt.Errorf("read last seq: %w", err)
	}
	return last.Int64, nil
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
