// Package testutil provides shared test utilities and mocks.
//
// All mocks in this package are designed for testing the agentcore components
// in isolation without requiring a live model provider or database.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/tabletalk-labs/tabletalk/agentcore/executor"
	"github.com/tabletalk-labs/tabletalk/agentcore/refine"
	"github.com/tabletalk-labs/tabletalk/agentcore/schema"
)

// =============================================================================
// MOCK LLM PROVIDER
// =============================================================================

// MockProvider implements llm.Provider for testing.
// Configure responses by prompt prefix or use DefaultResponse.
type MockProvider struct {
	// Responses maps prompt prefixes to responses.
	// First matching prefix wins.
	Responses map[string]string

	// DefaultResponse is returned when no prefix matches.
	DefaultResponse string

	// Delay simulates provider latency.
	Delay time.Duration

	// Error causes Generate to return this error.
	Error error

	// CallCount tracks the number of Generate calls.
	CallCount int

	// Calls records all calls for assertion.
	Calls []ProviderCall

	// GenerateFunc allows custom generation logic.
	// If set, this is called instead of using Responses.
	GenerateFunc func(context.Context, string, string, map[string]any) (string, error)

	mu sync.Mutex
}

// ProviderCall records a single Generate call for assertion.
type ProviderCall struct {
	Model   string
	Prompt  string
	Options map[string]any
}

// NewMockProvider creates a MockProvider with sensible defaults.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Responses:       make(map[string]string),
		DefaultResponse: "SELECT 1",
	}
}

// Generate implements llm.Provider.
func (m *MockProvider) Generate(ctx context.Context, model string, prompt string, options map[string]any) (string, error) {
	m.mu.Lock()
	m.CallCount++
	m.Calls = append(m.Calls, ProviderCall{Model: model, Prompt: prompt, Options: options})
	customFunc := m.GenerateFunc
	m.mu.Unlock()

	if customFunc != nil {
		return customFunc(ctx, model, prompt, options)
	}

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if m.Error != nil {
		return "", m.Error
	}

	for prefix, response := range m.Responses {
		if len(prompt) >= len(prefix) && prompt[:len(prefix)] == prefix {
			return response, nil
		}
	}

	return m.DefaultResponse, nil
}

// WithResponse adds a prefix-based response.
func (m *MockProvider) WithResponse(prefix, response string) *MockProvider {
	m.Responses[prefix] = response
	return m
}

// WithError configures the mock to return an error.
func (m *MockProvider) WithError(err error) *MockProvider {
	m.Error = err
	return m
}

// GetCallCount returns the number of calls (thread-safe).
func (m *MockProvider) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// Reset clears call history.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount = 0
	m.Calls = nil
}

// =============================================================================
// MOCK GENERATOR
// =============================================================================

// MockGenerator implements refine.Generator with scripted statements.
// Attempt N returns Statements[N-1]; past the end the last entry repeats.
type MockGenerator struct {
	// Statements are returned in order, one per attempt.
	Statements []string

	// Error causes Generate to return this error.
	Error error

	// Errors maps attempt numbers to errors, for failing a single attempt.
	Errors map[int]error

	// CallCount tracks the number of Generate calls.
	CallCount int

	// Requests records every request for assertion, feedback included.
	Requests []refine.GenerationRequest

	mu sync.Mutex
}

// NewMockGenerator creates a MockGenerator that produces the given
// statements in order.
func NewMockGenerator(statements ...string) *MockGenerator {
	return &MockGenerator{Statements: statements, Errors: make(map[int]error)}
}

// Generate implements refine.Generator.
func (m *MockGenerator) Generate(ctx context.Context, req refine.GenerationRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++
	m.Requests = append(m.Requests, req)

	if m.Error != nil {
		return "", m.Error
	}
	if err, ok := m.Errors[req.Attempt]; ok {
		return "", err
	}

	if len(m.Statements) == 0 {
		return "SELECT 1", nil
	}
	idx := req.Attempt - 1
	if idx >= len(m.Statements) {
		idx = len(m.Statements) - 1
	}
	return m.Statements[idx], nil
}

// GetCallCount returns the number of calls (thread-safe).
func (m *MockGenerator) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// =============================================================================
// MOCK JUDGE
// =============================================================================

// MockJudge implements refine.Judge with scripted verdicts.
// Call N returns Verdicts[N-1]; past the end the last entry repeats.
type MockJudge struct {
	// Verdicts are returned in order, one per call.
	Verdicts []refine.Verdict

	// Error causes Judge to return this error.
	Error error

	// CallCount tracks the number of Judge calls.
	CallCount int

	// Statements records the judged statements for assertion.
	Statements []string

	mu sync.Mutex
}

// NewMockJudge creates a MockJudge that returns the given verdicts in order.
// With no verdicts it approves everything.
func NewMockJudge(verdicts ...refine.Verdict) *MockJudge {
	return &MockJudge{Verdicts: verdicts}
}

// Judge implements refine.Judge.
func (m *MockJudge) Judge(ctx context.Context, question, statement string) (refine.Verdict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++
	m.Statements = append(m.Statements, statement)

	if m.Error != nil {
		return refine.Verdict{}, m.Error
	}

	if len(m.Verdicts) == 0 {
		return refine.Approve(refine.VerdictOriginSemantic), nil
	}
	idx := m.CallCount - 1
	if idx >= len(m.Verdicts) {
		idx = len(m.Verdicts) - 1
	}
	return m.Verdicts[idx], nil
}

// GetCallCount returns the number of calls (thread-safe).
func (m *MockJudge) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// =============================================================================
// MOCK EXECUTOR
// =============================================================================

// MockExecutor implements executor.Executor for testing.
type MockExecutor struct {
	// Result is returned on success.
	Result *executor.RowSet

	// Error causes Execute to return this error.
	Error error

	// CallCount tracks the number of Execute calls.
	CallCount int

	// Statements records the executed statements for assertion.
	Statements []string

	mu sync.Mutex
}

// NewMockExecutor creates a MockExecutor returning the given rows.
func NewMockExecutor(result *executor.RowSet) *MockExecutor {
	return &MockExecutor{Result: result}
}

// Execute implements executor.Executor.
func (m *MockExecutor) Execute(ctx context.Context, statement string) (*executor.RowSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++
	m.Statements = append(m.Statements, statement)

	if m.Error != nil {
		return nil, m.Error
	}
	if m.Result != nil {
		return m.Result, nil
	}
	return &executor.RowSet{Columns: []string{"value"}, Rows: [][]any{{int64(1)}}}, nil
}

// GetCallCount returns the number of calls (thread-safe).
func (m *MockExecutor) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// =============================================================================
// MOCK SUMMARIZER
// =============================================================================

// MockSummarizer implements summary.Summarizer for testing.
type MockSummarizer struct {
	// Text is returned on success.
	Text string

	// Error causes Summarize to return this error.
	Error error

	// CallCount tracks the number of Summarize calls.
	CallCount int

	mu sync.Mutex
}

// NewMockSummarizer creates a MockSummarizer returning the given text.
func NewMockSummarizer(text string) *MockSummarizer {
	return &MockSummarizer{Text: text}
}

// Summarize implements summary.Summarizer.
func (m *MockSummarizer) Summarize(ctx context.Context, question, statement string, rows *executor.RowSet) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++
	if m.Error != nil {
		return "", m.Error
	}
	return m.Text, nil
}

// =============================================================================
// MOCK SCHEMA SOURCE
// =============================================================================

// MockSchemaSource implements pipeline.SchemaSource for testing.
type MockSchemaSource struct {
	// Snap is returned on success. When nil a small default schema is used.
	Snap *schema.Snapshot

	// Error causes Snapshot to return this error.
	Error error
}

// Snapshot implements pipeline.SchemaSource.
func (m *MockSchemaSource) Snapshot(ctx context.Context) (*schema.Snapshot, error) {
	if m.Error != nil {
		return nil, m.Error
	}
	if m.Snap != nil {
		return m.Snap, nil
	}
	return TestSnapshot(), nil
}

// TestSnapshot builds a small employees schema used across tests.
func TestSnapshot() *schema.Snapshot {
	return schema.NewSnapshot([]schema.Table{
		{
			Name: "employees",
			Columns: []schema.Column{
				{Name: "id", Type: "INTEGER", PrimaryKey: true},
				{Name: "name", Type: "TEXT", NotNull: true},
				{Name: "department", Type: "TEXT"},
				{Name: "salary", Type: "REAL"},
				{Name: "updated_at", Type: "TEXT"},
			},
			RowCount: 4,
		},
	})
}

// =============================================================================
// MOCK LOGGER
// =============================================================================

// MockLogger implements refine.Logger for testing.
type MockLogger struct {
	// Logs captures all log entries.
	Logs []LogEntry

	mu sync.Mutex
}

// LogEntry represents a captured log entry.
type LogEntry struct {
	Level   string
	Message string
	Fields  map[string]any
}

// NewMockLogger creates a MockLogger.
func NewMockLogger() *MockLogger {
	return &MockLogger{Logs: make([]LogEntry, 0)}
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) {
	m.log("debug", msg, keysAndValues...)
}

func (m *MockLogger) Info(msg string, keysAndValues ...any) {
	m.log("info", msg, keysAndValues...)
}

func (m *MockLogger) Warn(msg string, keysAndValues ...any) {
	m.log("warn", msg, keysAndValues...)
}

func (m *MockLogger) Error(msg string, keysAndValues ...any) {
	m.log("error", msg, keysAndValues...)
}

func (m *MockLogger) Bind(fields ...any) refine.Logger {
	return m
}

func (m *MockLogger) log(level, msg string, keysAndValues ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fields := make(map[string]any)
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields[key] = keysAndValues[i+1]
		}
	}

	m.Logs = append(m.Logs, LogEntry{
		Level:   level,
		Message: msg,
		Fields:  fields,
	})
}

// HasLog checks if a log message exists at the given level.
func (m *MockLogger) HasLog(level, message string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range m.Logs {
		if entry.Level == level && entry.Message == message {
			return true
		}
	}
	return false
}

// Clear removes all captured logs.
func (m *MockLogger) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = nil
}
