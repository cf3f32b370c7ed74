// Package summary converts tabular query results into a natural-language
// answer to the original question.
package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/tabletalk-labs/tabletalk/agentcore/executor"
	"github.com/tabletalk-labs/tabletalk/agentcore/llm"
)

// maxPromptRows bounds how many result rows are embedded in the prompt.
const maxPromptRows = 20

const summaryPrompt = `You are a helpful assistant that explains SQL query results in plain English.

Your task is to:
1. Provide a clear, conversational answer to the user's question
2. Highlight key insights from the data
3. Use natural language, not technical jargon
4. Be concise but informative

Do not:
- Simply list all the data
- Use overly technical SQL terminology
- Repeat the query unless relevant to the explanation

User's Question: %s

SQL Query Executed: %s

Query Results:
%s

Please provide a clear, helpful answer to the user's question based on these results.`

// Summarizer converts a RowSet into a human-readable answer.
type Summarizer interface {
	Summarize(ctx context.Context, question, statement string, rows *executor.RowSet) (string, error)
}

// LLMSummarizer implements Summarizer on top of an LLM provider.
type LLMSummarizer struct {
	provider llm.Provider
	model    string
}

// NewLLMSummarizer creates an LLMSummarizer.
func NewLLMSummarizer(provider llm.Provider, model string) *LLMSummarizer {
	return &LLMSummarizer{provider: provider, model: model}
}

// Summarize asks the model to answer the question from the result rows.
func (s *LLMSummarizer) Summarize(ctx context.Context, question, statement string, rows *executor.RowSet) (string, error) {
	prompt := fmt.Sprintf(summaryPrompt, question, statement, FormatRows(rows))

	answer, err := s.provider.Generate(ctx, s.model, prompt, map[string]any{"temperature": 0.3})
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// FormatRows renders a RowSet as a plain-text block for the prompt,
// truncated at maxPromptRows with an elision note.
func FormatRows(rows *executor.RowSet) string {
	if rows == nil || rows.Empty() {
		return "No data returned."
	}

	var b strings.Builder
	b.WriteString(strings.Join(rows.Columns, "\t"))
	b.WriteString("\n")

	shown := rows.Rows
	if len(shown) > maxPromptRows {
		shown = shown[:maxPromptRows]
	}
	for _, row := range shown {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprintf("%v", v)
		}
		b.WriteString(strings.Join(cells, "\t"))
		b.WriteString("\n")
	}

	if rows.Len() > maxPromptRows {
		fmt.Fprintf(&b, "... (showing first %d of %d rows)\n", maxPromptRows, rows.Len())
	}
	return b.String()
}
