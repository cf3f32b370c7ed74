// Package nlsql provides the natural-language-to-SQL generation capability.
package nlsql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tabletalk-labs/tabletalk/agentcore/llm"
	"github.com/tabletalk-labs/tabletalk/agentcore/refine"
)

// generatorPrompt frames the generation task. The schema block comes from
// schema.Snapshot.Render.
const generatorPrompt = `You are an expert SQL query generator. Your task is to convert natural language questions into SQL queries.

IMPORTANT RULES:
1. Generate ONLY SELECT queries (read-only operations)
2. Do NOT use DROP, DELETE, UPDATE, INSERT, ALTER, or any destructive commands
3. Use proper SQL syntax
4. Include appropriate WHERE clauses, JOINs, and aggregations as needed
5. Return ONLY the SQL query without any explanation or markdown formatting
6. Do not include semicolons at the end

%s

Generate a safe, read-only SQL query to answer the user's question.`

// LLMGenerator implements refine.Generator on top of an LLM provider.
type LLMGenerator struct {
	provider llm.Provider
	model    string
}

// NewLLMGenerator creates an LLMGenerator.
func NewLLMGenerator(provider llm.Provider, model string) *LLMGenerator {
	return &LLMGenerator{provider: provider, model: model}
}

// Generate produces one candidate statement. On retries the previous
// rejection feedback is included so the model can correct course.
func (g *LLMGenerator) Generate(ctx context.Context, req refine.GenerationRequest) (string, error) {
	prompt := buildPrompt(req)

	raw, err := g.provider.Generate(ctx, g.model, prompt, map[string]any{"temperature": 0.0})
	if err != nil {
		return "", fmt.Errorf("llm generation failed: %w", err)
	}

	statement := CleanStatement(raw)
	if statement == "" {
		return "", errors.New("model returned an empty statement")
	}
	return statement, nil
}

func buildPrompt(req refine.GenerationRequest) string {
	var b strings.Builder

	schemaBlock := ""
	if req.Schema != nil {
		schemaBlock = req.Schema.Render()
	}
	fmt.Fprintf(&b, generatorPrompt, schemaBlock)
	b.WriteString("\n\n")

	if req.Attempt > 1 && req.Feedback != "" {
		fmt.Fprintf(&b, "Previous attempt failed safety check. Feedback: %s\n\n", req.Feedback)
	}

	fmt.Fprintf(&b, "Question: %s", req.Question)
	return b.String()
}

// CleanStatement strips markdown code fences and trailing semicolons from a
// raw model response.
func CleanStatement(raw string) string {
	statement := strings.TrimSpace(raw)

	if strings.HasPrefix(statement, "```") {
		statement = strings.TrimPrefix(statement, "```sql")
		statement = strings.TrimPrefix(statement, "```")
		statement = strings.TrimSuffix(strings.TrimSpace(statement), "```")
	}

	statement = strings.TrimSpace(statement)
	statement = strings.TrimRight(statement, ";")
	return strings.TrimSpace(statement)
}
