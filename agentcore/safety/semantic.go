package safety

import (
	"context"
	"fmt"
	"strings"

	"github.com/tabletalk-labs/tabletalk/agentcore/llm"
	"github.com/tabletalk-labs/tabletalk/agentcore/refine"
)

// judgePrompt instructs the model to answer with the SAFE / UNSAFE protocol.
// Anything outside that protocol is a judge error, which the orchestrator
// treats as a conservative rejection.
const judgePrompt = `You are a SQL security expert. Analyze the given SQL query for safety.

A query is SAFE if:
1. It is a SELECT statement (read-only)
2. It does not contain any destructive commands (DROP, DELETE, UPDATE, INSERT, ALTER, etc.)
3. It does not attempt to bypass restrictions or exploit vulnerabilities
4. It actually addresses the user's question instead of probing the schema or reading unrelated sensitive data

Respond with EXACTLY one of these formats:
SAFE
or
UNSAFE: [brief reason]

Do not provide any other explanation.

User's question:
%s

Query to analyze:
%s`

// LLMJudge implements the semantic safety capability on top of an LLM
// provider. Unlike the lexical layer it reasons about intent, not tokens.
type LLMJudge struct {
	provider llm.Provider
	model    string
}

// NewLLMJudge creates an LLMJudge.
func NewLLMJudge(provider llm.Provider, model string) *LLMJudge {
	return &LLMJudge{provider: provider, model: model}
}

// Judge asks the model whether the statement is semantically aligned with
// the question. Errors (transport, timeout, protocol violations) are
// returned as errors, never as verdicts; the caller decides the policy.
func (j *LLMJudge) Judge(ctx context.Context, question, statement string) (refine.Verdict, error) {
	prompt := fmt.Sprintf(judgePrompt, question, statement)

	raw, err := j.provider.Generate(ctx, j.model, prompt, map[string]any{"temperature": 0.0})
	if err != nil {
		return refine.Verdict{}, fmt.Errorf("judge call failed: %w", err)
	}

	return ParseJudgeResponse(raw)
}

// ParseJudgeResponse interprets a SAFE / UNSAFE protocol response.
func ParseJudgeResponse(raw string) (refine.Verdict, error) {
	trimmed := strings.TrimSpace(raw)
	upper := strings.ToUpper(trimmed)

	switch {
	case strings.HasPrefix(upper, "SAFE"):
		return refine.Approve(refine.VerdictOriginSemantic), nil
	case strings.HasPrefix(upper, "UNSAFE"):
		rest := strings.TrimSpace(trimmed[len("UNSAFE"):])
		reason := strings.TrimSpace(strings.TrimPrefix(rest, ":"))
		if reason == "" {
			reason = "statement rejected by semantic review"
		}
		return refine.Reject(refine.VerdictOriginSemantic, reason), nil
	default:
		return refine.Verdict{}, fmt.Errorf("malformed judge response: %q", truncate(trimmed, 120))
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
