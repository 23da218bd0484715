package memory

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/habitatworks/habitat/internal/world"
)

// GraphStore keeps utterances in Memgraph (or any bolt-speaking Neo4j
// compatible) keyed by building group. Recall is text containment over
// recent entries; summaries are the newest utterance per building.
type GraphStore struct {
	driver neo4j.DriverWithContext
	log    *zap.SugaredLogger
	ready  bool
}

func NewGraphStore(uri, username, password string, log *zap.SugaredLogger) (*GraphStore, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}

	s := &GraphStore{driver: driver, log: log}
	if err := driver.VerifyConnectivity(context.Background()); err != nil {
		return nil, fmt.Errorf("memory store unreachable at %s: %w", uri, err)
	}
	s.ready = true

	s.buildIndices(context.Background())
	log.Infow("connected to memory store", "uri", uri)
	return s, nil
}

func (s *GraphStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *GraphStore) IsReady() bool {
	return s.ready
}

func (s *GraphStore) AppendPersonaMessage(ctx context.Context, buildingID string, msg world.Message) error {
	params := map[string]interface{}{
		"uuid":       uuid.New().String(),
		"group_id":   buildingID,
		"role":       string(msg.Role),
		"persona_id": msg.PersonaID,
		"content":    msg.Content,
		"created_at": msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	_, err := s.execute(ctx, saveUtteranceQuery, params)
	if err != nil {
		return fmt.Errorf("failed to store utterance: %w", err)
	}
	return nil
}

func (s *GraphStore) RecallSnippet(ctx context.Context, buildingID, query string, maxChars int, excludeCreatedAt time.Time) (string, error) {
	if maxChars <= 0 {
		return "", nil
	}

	params := map[string]interface{}{
		"group_id":           buildingID,
		"query":              query,
		"exclude_created_at": excludeCreatedAt.UTC().Format(time.RFC3339Nano),
		"limit":              20,
	}
	result, err := s.execute(ctx, recallQuery, params)
	if err != nil {
		return "", fmt.Errorf("recall query failed: %w", err)
	}

	var b strings.Builder
	for _, record := range result.Records {
		role, _ := record.Get("role")
		who, _ := record.Get("persona_id")
		content, _ := record.Get("content")
		line := fmt.Sprintf("[%v] %v: %v\n", role, who, content)
		if b.Len()+len(line) > maxChars {
			break
		}
		b.WriteString(line)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (s *GraphStore) ListThreadSummaries(ctx context.Context) ([]ThreadSummary, error) {
	result, err := s.execute(ctx, threadSummariesQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("thread summary query failed: %w", err)
	}

	summaries := make([]ThreadSummary, 0, len(result.Records))
	for i, record := range result.Records {
		groupID, _ := record.Get("group_id")
		preview, _ := record.Get("preview")
		summaries = append(summaries, ThreadSummary{
			Suffix:  fmt.Sprintf("%v", groupID),
			Preview: truncate(fmt.Sprintf("%v", preview), 120),
			Active:  i == 0,
		})
	}
	return summaries, nil
}

func (s *GraphStore) execute(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	return *result, nil
}

func (s *GraphStore) buildIndices(ctx context.Context) {
	queries := []string{
		"CREATE INDEX ON :Utterance(uuid);",
		"CREATE INDEX ON :Utterance(group_id);",
		"CREATE INDEX ON :Utterance(created_at);",
	}
	for _, q := range queries {
		if _, err := s.execute(ctx, q, nil); err != nil {
			// Index may already exist; Memgraph errors on re-creation.
			s.log.Debugw("index creation skipped", "query", q, "err", err)
		}
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}
