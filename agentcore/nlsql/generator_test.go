package nlsql

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletalk-labs/tabletalk/agentcore/refine"
	"github.com/tabletalk-labs/tabletalk/agentcore/testutil"
)

func TestCleanStatement(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain statement",
			raw:  "SELECT * FROM employees",
			want: "SELECT * FROM employees",
		},
		{
			name: "sql fence",
			raw:  "```sql\nSELECT * FROM employees\n```",
			want: "SELECT * FROM employees",
		},
		{
			name: "bare fence",
			raw:  "```\nSELECT * FROM employees\n```",
			want: "SELECT * FROM employees",
		},
		{
			name: "trailing semicolon",
			raw:  "SELECT * FROM employees;",
			want: "SELECT * FROM employees",
		},
		{
			name: "fence and semicolon and whitespace",
			raw:  "  ```sql\n  SELECT * FROM employees;  \n```  ",
			want: "SELECT * FROM employees",
		},
		{
			name: "empty",
			raw:  "   ",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanStatement(tt.raw))
		})
	}
}

func TestLLMGenerator_Generate(t *testing.T) {
	provider := testutil.NewMockProvider()
	provider.DefaultResponse = "```sql\nSELECT name FROM employees;\n```"

	gen := NewLLMGenerator(provider, "test-model")
	statement, err := gen.Generate(context.Background(), refine.GenerationRequest{
		Question: "List all employees",
		Schema:   testutil.TestSnapshot(),
		Attempt:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT name FROM employees", statement)

	require.Len(t, provider.Calls, 1)
	call := provider.Calls[0]
	assert.Equal(t, "test-model", call.Model)
	assert.Equal(t, 0.0, call.Options["temperature"])
	assert.Contains(t, call.Prompt, "DATABASE SCHEMA:")
	assert.Contains(t, call.Prompt, "employees")
	assert.Contains(t, call.Prompt, "Question: List all employees")
	assert.NotContains(t, call.Prompt, "Previous attempt failed")
}

func TestLLMGenerator_FeedbackOnRetry(t *testing.T) {
	provider := testutil.NewMockProvider()
	provider.DefaultResponse = "SELECT name FROM employees"

	gen := NewLLMGenerator(provider, "test-model")
	_, err := gen.Generate(context.Background(), refine.GenerationRequest{
		Question: "List all employees",
		Schema:   testutil.TestSnapshot(),
		Feedback: "prohibited keyword DELETE",
		Attempt:  2,
	})
	require.NoError(t, err)

	require.Len(t, provider.Calls, 1)
	assert.Contains(t, provider.Calls[0].Prompt,
		"Previous attempt failed safety check. Feedback: prohibited keyword DELETE")
}

func TestLLMGenerator_NoFeedbackOnFirstAttempt(t *testing.T) {
	// Feedback is only surfaced on retries, even if a caller sets it.
	provider := testutil.NewMockProvider()
	provider.DefaultResponse = "SELECT 1"

	gen := NewLLMGenerator(provider, "test-model")
	_, err := gen.Generate(context.Background(), refine.GenerationRequest{
		Question: "q",
		Feedback: "stale feedback",
		Attempt:  1,
	})
	require.NoError(t, err)
	assert.NotContains(t, provider.Calls[0].Prompt, "stale feedback")
}

func TestLLMGenerator_ProviderError(t *testing.T) {
	provider := testutil.NewMockProvider().WithError(errors.New("quota exceeded"))

	gen := NewLLMGenerator(provider, "test-model")
	_, err := gen.Generate(context.Background(), refine.GenerationRequest{Question: "q", Attempt: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm generation failed")
}

func TestLLMGenerator_EmptyResponse(t *testing.T) {
	provider := testutil.NewMockProvider()
	provider.DefaultResponse = "```sql\n```"

	gen := NewLLMGenerator(provider, "test-model")
	_, err := gen.Generate(context.Background(), refine.GenerationRequest{Question: "q", Attempt: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty statement")
}
