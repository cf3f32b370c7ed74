// Package llm provides the language-model provider contract and the Gemini
// HTTP client used by the generator, judge, and summarizer capabilities.
package llm

import "context"

// Provider is the interface for LLM providers.
//
// Options are provider-specific generation knobs (temperature, max output
// tokens). Implementations must honor ctx cancellation and deadlines.
type Provider interface {
	Generate(ctx context.Context, model string, prompt string, options map[string]any) (string, error)
}
