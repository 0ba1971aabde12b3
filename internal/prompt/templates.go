package prompt

import "queryresolve/internal/models"

// defaultTemplates returns every PromptTemplate the core's agents consume,
// grounded on the teacher's inlined prompt strings (schema_linker.go's
// linkOneShot prompt, react.go's buildPrompt SQL best-practices block, and
// worker_agent.go's business-insight exploration prompt), generalized into
// parameterized templates instead of one-off fmt.Sprintf calls.
func defaultTemplates() []models.PromptTemplate {
	return []models.PromptTemplate{
		{
			Agent:      "selector",
			PromptType: "schema_pruning",
			Description: "Decide, per table, whether to keep all columns, drop the table, or keep a named subset.",
			Parameters: []string{"schema_description", "foreign_key_description", "question", "evidence"},
			SystemPrompt: `You are a database schema expert. You reduce a database schema description to exactly what is needed to answer a question, never less than what is needed for correctness.`,
			UserTemplate: `Full Database Schema:
{{.schema_description}}

Foreign Keys:
{{.foreign_key_description}}

Question: {{.question}}
{{if .evidence}}Evidence: {{.evidence}}{{end}}

Task: For EACH table above, decide one of:
- "all"  — keep every column
- "drop" — the table is not needed
- a comma-separated list of column names to keep (ordered)

Rules:
- Primary-key columns are always implicitly retained when a table is kept; do not worry about omitting them yourself.
- If you keep a table because the question needs it, and that table has a foreign key to another table, you MUST keep that other table too (at least its key columns), or the JOIN cannot be expressed.
- When in doubt about a table's relevance, prefer "all" over "drop".

Output strict JSON, one key per table name, value is "all", "drop", or a JSON array of column names. No other text.`,
		},
		{
			Agent:      "decomposer",
			PromptType: "query_decomposition",
			Description: "Break a complex question into an ordered list of sub-questions.",
			Parameters: []string{"question", "schema_description", "max_sub_questions"},
			SystemPrompt: `You are a SQL reasoning expert. You decompose a complex natural-language question into the smallest ordered sequence of sub-questions that, answered in order, lets someone derive the final SQL query.`,
			UserTemplate: `Database Schema:
{{.schema_description}}

Question: {{.question}}

Task: Decompose this question into at most {{.max_sub_questions}} ordered sub-questions. Each sub-question should address one reasoning step (a filter, a join, an aggregation, a comparison, ...).

Output strict JSON: {"sub_questions": ["...", "..."], "reasoning": "one paragraph explaining the decomposition"}. No other text.`,
		},
		{
			Agent:      "decomposer",
			PromptType: "simple_sql_generation",
			Description: "Synthesize SQL directly from a single (possibly error-annotated) question.",
			Parameters: []string{"question", "schema_description", "foreign_key_description", "db_type", "context_block", "error_block"},
			SystemPrompt: `You are a SQL expert. Generate SQL that strictly follows {{.db_type | upper}} syntax rules to answer the question.`,
			UserTemplate: `Database Schema:
{{.schema_description}}

Foreign Keys:
{{.foreign_key_description}}
{{if .context_block}}
Retrieved Context:
{{.context_block}}
{{end}}{{if .error_block}}
Prior Failed Attempts (DO NOT repeat these mistakes):
{{.error_block}}
{{end}}
Question: {{.question}}

Output ONLY the SQL query, no markdown, no explanation.`,
		},
		{
			Agent:      "decomposer",
			PromptType: "cot_sql_generation",
			Description: "Synthesize a single final SQL query whose derivation follows an ordered sub-question plan.",
			Parameters: []string{"question", "sub_questions_block", "schema_description", "foreign_key_description", "db_type", "context_block", "error_block"},
			SystemPrompt: `You are a SQL expert. Generate SQL that strictly follows {{.db_type | upper}} syntax rules, deriving the query by reasoning through the given ordered sub-questions.`,
			UserTemplate: `Database Schema:
{{.schema_description}}

Foreign Keys:
{{.foreign_key_description}}
{{if .context_block}}
Retrieved Context:
{{.context_block}}
{{end}}{{if .error_block}}
Prior Failed Attempts (DO NOT repeat these mistakes):
{{.error_block}}
{{end}}
Question: {{.question}}

Reasoning plan (answer these in order, then derive one final SQL query from the combined reasoning):
{{.sub_questions_block}}

Output format:
Step-by-step reasoning referencing each sub-question, then a final line "Final SQL:" followed by ONLY the SQL query.`,
		},
		{
			Agent:      "refiner",
			PromptType: "sql_validation",
			Description: "Advisory LLM pre-validation of a candidate SQL query. Never blocks execution on its own.",
			Parameters: []string{"sql", "schema_description", "db_type"},
			SystemPrompt: `You are a SQL reviewer for {{.db_type | upper}}. You point out syntax errors, logical issues and security concerns in a candidate query, but you never decide whether it runs.`,
			UserTemplate: `Database Schema:
{{.schema_description}}

Candidate SQL:
{{.sql}}

Output strict JSON: {"is_valid": bool, "syntax_errors": [...], "logical_issues": [...], "security_concerns": [...], "suggestions": [...], "corrected_sql": "optional"}.`,
		},
		{
			Agent:      "refiner",
			PromptType: "sql_refinement",
			Description: "Repair a SQL query that failed execution, given its classified error.",
			Parameters: []string{"question", "failed_sql", "error_message", "error_type", "schema_description", "foreign_key_description", "db_type"},
			SystemPrompt: `You are a SQL expert debugging a failed {{.db_type | upper}} query. You fix the ONE query given, using the error message as ground truth about what is wrong.`,
			UserTemplate: `Database Schema:
{{.schema_description}}

Foreign Keys:
{{.foreign_key_description}}

Original Question: {{.question}}

Failed SQL:
{{.failed_sql}}

Error ({{.error_type}}):
{{.error_message}}

Task: Produce a corrected SQL query that fixes this specific error while still answering the original question. Do not introduce the same mistake again.

Output ONLY the corrected SQL query, no markdown, no explanation.`,
		},
	}
}
