// Package retrieval implements the retrieval-augmented training store: a
// typed write surface over a vectorstore.Store plus the strategy-driven
// retrieve_context read path the decomposer uses to build its SQL
// synthesis prompt. Grounded on the teacher's internal/context package
// for the idea of a per-database schema context cache, generalized here
// into a full write/read corpus backed by real vector search instead of
// an in-process table registry.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"queryresolve/internal/embedding"
	"queryresolve/internal/models"
	"queryresolve/internal/obslog"
	"queryresolve/internal/vectorstore"
)

// Store is the core's retrieval & training store (spec §4.5).
type Store struct {
	vectors  vectorstore.Store
	embedder embedding.Embedder
	log      *obslog.Logger

	// NoveltyThreshold is the minimum cosine distance (1 - cosine
	// similarity) a candidate auto-trained QA pair must have from every
	// existing QA_PAIR for the same database_id to be written.
	NoveltyThreshold float64
}

// New builds a Store over vectors using embedder to compute vectors for
// every write and for retrieve_context's question embedding.
func New(vectors vectorstore.Store, embedder embedding.Embedder) *Store {
	return &Store{
		vectors:          vectors,
		embedder:         embedder,
		log:              obslog.New("retrieval"),
		NoveltyThreshold: 0.15,
	}
}

func (s *Store) write(ctx context.Context, databaseID string, dataType models.TrainingDataType, content string, extra map[string]string, source models.TrainingSource) (string, error) {
	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return "", fmt.Errorf("retrieval: embed failed: %w", err)
	}

	id := uuid.NewString()
	metadata := map[string]string{
		"database_id": databaseID,
		"data_type":   string(dataType),
		"content":     content,
		"source":      string(source),
		"created_at":  time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range extra {
		metadata[k] = v
	}

	if err := s.vectors.Insert(ctx, id, vec, metadata); err != nil {
		return "", fmt.Errorf("retrieval: insert failed: %w", err)
	}
	return id, nil
}

// TrainDDL ingests raw DDL strings for databaseID.
func (s *Store) TrainDDL(ctx context.Context, ddls []string, databaseID string) error {
	for _, ddl := range ddls {
		if _, err := s.write(ctx, databaseID, models.TrainingDDL, ddl, nil, models.SourceManual); err != nil {
			return err
		}
	}
	return nil
}

// Documentation is one documentation record submitted to TrainDocumentation.
type Documentation struct {
	Title    string
	Content  string
	Category string
}

// TrainDocumentation ingests free-text documentation records.
func (s *Store) TrainDocumentation(ctx context.Context, docs []Documentation, databaseID string) error {
	for _, doc := range docs {
		extra := map[string]string{"title": doc.Title}
		if doc.Category != "" {
			extra["category"] = doc.Category
		}
		if _, err := s.write(ctx, databaseID, models.TrainingDocumentation, doc.Content, extra, models.SourceManual); err != nil {
			return err
		}
	}
	return nil
}

// TrainSQLExamples ingests bare example SQL statements.
func (s *Store) TrainSQLExamples(ctx context.Context, examples []string, databaseID string) error {
	for _, sql := range examples {
		if _, err := s.write(ctx, databaseID, models.TrainingSQLExample, sql, nil, models.SourceManual); err != nil {
			return err
		}
	}
	return nil
}

// QAPair is one question/SQL pair submitted to TrainQAPairs.
type QAPair struct {
	Question string
	SQL      string
}

// TrainQAPairs ingests the highest-signal training form: verified
// question/SQL pairs.
func (s *Store) TrainQAPairs(ctx context.Context, pairs []QAPair, databaseID string) error {
	for _, pair := range pairs {
		content := pair.Question + "\n" + pair.SQL
		extra := map[string]string{"question": pair.Question, "sql": pair.SQL}
		if _, err := s.write(ctx, databaseID, models.TrainingQAPair, content, extra, models.SourceManual); err != nil {
			return err
		}
	}
	return nil
}

// TrainDomainKnowledge ingests free-text domain knowledge snippets.
func (s *Store) TrainDomainKnowledge(ctx context.Context, snippets []string, databaseID string) error {
	for _, snippet := range snippets {
		if _, err := s.write(ctx, databaseID, models.TrainingDomainKnowledge, snippet, nil, models.SourceManual); err != nil {
			return err
		}
	}
	return nil
}

// AutoTrainFromSuccessfulQuery writes a QA_PAIR for a successful
// (question, sql) outcome iff it is semantically distinct from every
// existing QA_PAIR for databaseID, gated by NoveltyThreshold. Failures
// are logged, never propagated: this must not block the response path
// (spec §5 shared-state rules).
func (s *Store) AutoTrainFromSuccessfulQuery(ctx context.Context, question, sql, databaseID string) {
	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		s.log.Warnw("auto-train embed failed", "error", err)
		return
	}

	existing, err := s.vectors.Search(ctx, vec, map[string]string{
		"database_id": databaseID,
		"data_type":   string(models.TrainingQAPair),
	}, 1)
	if err != nil {
		s.log.Warnw("auto-train novelty search failed", "error", err)
		return
	}
	if len(existing) > 0 {
		distance := 1 - existing[0].Score
		if distance < s.NoveltyThreshold {
			s.log.Debugw("auto-train skipped: not novel", "database_id", databaseID, "distance", distance)
			return
		}
	}

	if _, err := s.write(ctx, databaseID, models.TrainingQAPair, question+"\n"+sql,
		map[string]string{"question": question, "sql": sql}, models.SourceAutoTrained); err != nil {
		s.log.Warnw("auto-train write failed", "error", err)
	}
}
