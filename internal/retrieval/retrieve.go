package retrieval

import (
	"context"
	"fmt"
	"time"

	"queryresolve/internal/models"
	"queryresolve/internal/vectorstore"
)

// RetrieveContext embeds question once and runs one filtered, strategy-
// weighted top-k search per training data type, returning the typed
// bucket set the decomposer composes its prompt from (spec §4.5).
func (s *Store) RetrieveContext(ctx context.Context, question, databaseID string, strategy models.RetrievalStrategy) (*models.RetrievedContext, error) {
	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed question failed: %w", err)
	}

	budgets := typeBudgets(strategy)
	out := &models.RetrievedContext{}

	for dataType, budget := range budgets {
		records, err := s.vectors.Search(ctx, vec, map[string]string{
			"database_id": databaseID,
			"data_type":   string(dataType),
		}, budget)
		if err != nil {
			return nil, fmt.Errorf("retrieval: search %s failed: %w", dataType, err)
		}

		records = qualityFilter(records, DefaultSimilarityThreshold)
		records = diversityFilter(records, 0.5)
		records = capAt(records, DefaultMaxExamplesPerType)

		bucket := toTrainingRecords(records, dataType, databaseID)
		switch dataType {
		case models.TrainingDDL:
			out.DDL = bucket
		case models.TrainingDocumentation:
			out.Documentation = bucket
		case models.TrainingSQLExample:
			out.SQLExamples = bucket
		case models.TrainingQAPair:
			out.QAPairs = bucket
		case models.TrainingDomainKnowledge:
			out.DomainKnowledge = bucket
		}
	}

	return out, nil
}

func toTrainingRecords(records []vectorstore.Record, dataType models.TrainingDataType, databaseID string) []models.TrainingRecord {
	out := make([]models.TrainingRecord, 0, len(records))
	for _, r := range records {
		metadata := make(map[string]string, len(r.Metadata)+1)
		for k, v := range r.Metadata {
			metadata[k] = v
		}
		metadata["score"] = fmt.Sprintf("%.4f", r.Score)

		rec := models.TrainingRecord{
			ID:         r.ID,
			DataType:   dataType,
			DatabaseID: databaseID,
			Content:    r.Metadata["content"],
			Metadata:   metadata,
			Question:   r.Metadata["question"],
			SQL:        r.Metadata["sql"],
		}
		if created, err := time.Parse(time.RFC3339, r.Metadata["created_at"]); err == nil {
			rec.CreatedAt = created
		}
		out = append(out, rec)
	}
	return out
}

// Score extracts the similarity score stashed on a TrainingRecord by
// RetrieveContext, used by prompt composition's "score >= 0.8" rule.
func Score(rec models.TrainingRecord) float64 {
	var score float64
	_, _ = fmt.Sscanf(rec.Metadata["score"], "%f", &score)
	return score
}
