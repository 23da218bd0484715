package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/habitatworks/habitat/internal/tasks"
)

// TaskSource is the read-only tasks.Source over the tasks table. Task
// lifecycle management happens outside the pulse engine; this reader only
// feeds the situational snapshot.
type TaskSource struct {
	db *sql.DB
}

func NewTaskSource(db *sql.DB) *TaskSource {
	return &TaskSource{db: db}
}

func (s *TaskSource) ListTasks(ctx context.Context, personaID string) ([]tasks.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT title, status, steps FROM tasks
		WHERE persona_id = ? AND status != 'done'
		ORDER BY created_at`, personaID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []tasks.Task
	for rows.Next() {
		var (
			t     tasks.Task
			steps sql.NullString
		)
		if err := rows.Scan(&t.Title, &t.Status, &steps); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if steps.Valid && steps.String != "" {
			if err := json.Unmarshal([]byte(steps.String), &t.Steps); err != nil {
				return nil, fmt.Errorf("decode steps for %q: %w", t.Title, err)
			}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
