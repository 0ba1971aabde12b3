package models

import "time"

// AgentName is the closed set of pipeline stages plus the orchestrator's
// terminal sentinels. Representing these as a string enum rather than a
// registry keeps routing an explicit switch over a fixed set of variants,
// per the three-agent design.
type AgentName string

const (
	AgentSelector   AgentName = "Selector"
	AgentDecomposer AgentName = "Decomposer"
	AgentRefiner    AgentName = "Refiner"
	AgentCompleted  AgentName = "Completed"
	AgentFailed     AgentName = "Failed"
	AgentError      AgentName = "Error"
)

// HistoryEntryType classifies one entry in a WorkflowState's conversation
// history.
type HistoryEntryType string

const (
	HistorySystem      HistoryEntryType = "system"
	HistoryAgent       HistoryEntryType = "agent"
	HistoryErrorContext HistoryEntryType = "error_context"
	HistoryInterrupted HistoryEntryType = "interrupted"
)

// HistoryEntry is one append-only conversation-history record. Every retry
// derives its error view by filtering this log; there is no parallel
// error side-channel.
type HistoryEntry struct {
	Type      HistoryEntryType
	Agent     AgentName
	Content   string
	Metadata  map[string]any
	Timestamp time.Time
}

// WorkflowState supersets Message with orchestration bookkeeping. It is
// the state a single process_query call threads through the state
// machine; conversation history additionally persists per thread_id
// across calls.
type WorkflowState struct {
	*Message

	ThreadID       string
	CurrentAgent   AgentName
	ProcessingStage string
	Finished       bool
	Success        bool
	Result         map[string]any

	StartTime          time.Time
	EndTime            time.Time
	AgentExecutionTimes map[AgentName]time.Duration

	ConversationHistory []HistoryEntry
}

// NewWorkflowState initialises a WorkflowState from a fresh Message.
func NewWorkflowState(msg *Message, threadID string) *WorkflowState {
	return &WorkflowState{
		Message:             msg,
		ThreadID:            threadID,
		CurrentAgent:        AgentSelector,
		StartTime:           time.Now(),
		AgentExecutionTimes: make(map[AgentName]time.Duration),
		ConversationHistory: []HistoryEntry{},
	}
}

// AppendHistory appends one conversation-history entry in program order.
func (s *WorkflowState) AppendHistory(entry HistoryEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	s.ConversationHistory = append(s.ConversationHistory, entry)
}

// ErrorRecordsFromHistory filters the conversation history down to the
// ordered error records visible to the next retry. This is the only
// sanctioned way to derive error context: callers must not keep a
// parallel list.
func (s *WorkflowState) ErrorRecordsFromHistory() []ErrorRecord {
	var records []ErrorRecord
	attempt := 0
	for _, entry := range s.ConversationHistory {
		if entry.Type != HistoryErrorContext {
			continue
		}
		attempt++
		record, _ := entry.Metadata["error_record"].(ErrorRecord)
		record.AttemptNumber = attempt
		records = append(records, record)
	}
	return records
}

// PromptTemplate is an immutable, named (system_prompt, user_template,
// parameters) triple. Formatting fails if any declared parameter is
// missing from the values supplied at format time.
type PromptTemplate struct {
	Agent        string
	PromptType   string
	SystemPrompt string
	UserTemplate string
	Parameters   []string
	Description  string
}

// Key returns the (agent, prompt_type) identity the registry keys on.
func (t PromptTemplate) Key() string {
	return t.Agent + "." + t.PromptType
}
