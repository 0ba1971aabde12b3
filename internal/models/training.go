package models

import "time"

// TrainingDataType is the closed set of retrieval-corpus record kinds.
type TrainingDataType string

const (
	TrainingDDL             TrainingDataType = "DDL"
	TrainingDocumentation   TrainingDataType = "DOCUMENTATION"
	TrainingSQLExample      TrainingDataType = "SQL_EXAMPLE"
	TrainingQAPair          TrainingDataType = "QA_PAIR"
	TrainingDomainKnowledge TrainingDataType = "DOMAIN_KNOWLEDGE"
)

// TrainingSource distinguishes operator-submitted records from records the
// orchestrator wrote automatically on a successful query. This is
// observability-only metadata; it does not affect retrieval semantics.
type TrainingSource string

const (
	SourceManual     TrainingSource = "manual"
	SourceAutoTrained TrainingSource = "auto_trained"
)

// TrainingRecord is one unit of the retrieval corpus. It has no
// constructor: the dimension of a stored vector is checked by the
// Embedder that produces it, and nothing in the struct prevents DataType
// from being reassigned. Records returned by retrieval leave Embedding empty.
type TrainingRecord struct {
	ID         string
	DataType   TrainingDataType
	DatabaseID string
	Content    string
	Embedding  []float32
	Metadata   map[string]string
	CreatedAt  time.Time
	Source     TrainingSource

	// QA_PAIR-specific.
	Question string
	SQL      string
}

// RetrievalStrategy selects the per-type top-k budget weighting used by
// retrieve_context.
type RetrievalStrategy string

const (
	StrategyBalanced       RetrievalStrategy = "BALANCED"
	StrategyQAFocused      RetrievalStrategy = "QA_FOCUSED"
	StrategySQLFocused     RetrievalStrategy = "SQL_FOCUSED"
	StrategyContextFocused RetrievalStrategy = "CONTEXT_FOCUSED"
)

// RetrievedContext is the typed result of retrieve_context, one bucket per
// training data type.
type RetrievedContext struct {
	DDL             []TrainingRecord
	Documentation   []TrainingRecord
	SQLExamples     []TrainingRecord
	QAPairs         []TrainingRecord
	DomainKnowledge []TrainingRecord
}
