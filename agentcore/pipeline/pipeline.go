// Package pipeline wires the full question-to-answer flow: schema
// introspection, query refinement, execution, and summarization.
//
// Only the refinement loop has retry policy; everything downstream of an
// approved statement is single-shot. A statement that failed either safety
// layer never reaches the executor.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tabletalk-labs/tabletalk/agentcore/executor"
	"github.com/tabletalk-labs/tabletalk/agentcore/observability"
	"github.com/tabletalk-labs/tabletalk/agentcore/refine"
	"github.com/tabletalk-labs/tabletalk/agentcore/schema"
	"github.com/tabletalk-labs/tabletalk/agentcore/summary"
)

var tracer = otel.Tracer("tabletalk/pipeline")

// SchemaSource supplies the immutable snapshot for a run.
type SchemaSource interface {
	Snapshot(ctx context.Context) (*schema.Snapshot, error)
}

// Answer is the end-to-end result of one question.
type Answer struct {
	// RunID identifies the underlying refinement run.
	RunID string `json:"run_id"`

	// Text is the natural-language answer shown to the user.
	Text string `json:"text"`

	// Statement is the approved SQL, empty when no safe query was produced.
	Statement string `json:"statement,omitempty"`

	// Rows holds the execution result when the statement ran successfully.
	Rows *executor.RowSet `json:"rows,omitempty"`

	// Outcome is the refinement loop's terminal result.
	Outcome refine.OutcomeKind `json:"outcome"`

	// Attempts is the number of generation cycles consumed.
	Attempts int `json:"attempts"`
}

// Pipeline executes the full flow for independent questions. It holds no
// per-run state; concurrent Answer calls are safe.
type Pipeline struct {
	schemaSource SchemaSource
	orchestrator *refine.Orchestrator
	executor     executor.Executor
	summarizer   summary.Summarizer
	logger       refine.Logger
}

// New creates a Pipeline.
func New(source SchemaSource, orch *refine.Orchestrator, exec executor.Executor, summarizer summary.Summarizer, logger refine.Logger) (*Pipeline, error) {
	if source == nil {
		return nil, fmt.Errorf("pipeline: schema source is required")
	}
	if orch == nil {
		return nil, fmt.Errorf("pipeline: orchestrator is required")
	}
	if exec == nil {
		return nil, fmt.Errorf("pipeline: executor is required")
	}
	if summarizer == nil {
		return nil, fmt.Errorf("pipeline: summarizer is required")
	}
	p := &Pipeline{
		schemaSource: source,
		orchestrator: orch,
		executor:     exec,
		summarizer:   summarizer,
		logger:       logger,
	}
	if p.logger == nil {
		p.logger = nopLogger{}
	}
	return p, nil
}

// Answer runs one question end to end.
func (p *Pipeline) Answer(ctx context.Context, question string) (*Answer, error) {
	ctx, span := tracer.Start(ctx, "pipeline.answer")
	defer span.End()

	start := time.Now()

	snap, err := p.schemaSource.Snapshot(ctx)
	if err != nil {
		observability.RecordPipelineRun("error", int(time.Since(start).Milliseconds()))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("pipeline: schema introspection failed: %w", err)
	}

	outcome, err := p.orchestrator.Run(ctx, question, snap)
	if err != nil {
		observability.RecordPipelineRun("error", int(time.Since(start).Milliseconds()))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	answer := &Answer{
		RunID:    outcome.RunID,
		Outcome:  outcome.Kind,
		Attempts: len(outcome.Attempts),
	}
	logger := p.logger.Bind("run_id", outcome.RunID)
	span.SetAttributes(attribute.String("tabletalk.run.id", outcome.RunID))

	if !outcome.SafeQueryProduced() {
		// Business outcome, not a failure: the caller presents it as
		// "could not produce a safe query for this question".
		answer.Text = fmt.Sprintf("I could not produce a safe query for this question: %s", outcome.LastFeedback)
		observability.RecordPipelineRun("exhausted", int(time.Since(start).Milliseconds()))
		span.SetStatus(codes.Ok, "iterations exhausted")
		logger.Warn("answer_exhausted", "attempts", answer.Attempts)
		return answer, nil
	}

	answer.Statement = outcome.Statement

	rows, err := p.executor.Execute(ctx, outcome.Statement)
	if err != nil {
		answer.Text = fmt.Sprintf("I apologize, but the query failed: %s", err.Error())
		observability.RecordPipelineRun("execution_error", int(time.Since(start).Milliseconds()))
		span.RecordError(err)
		span.SetStatus(codes.Ok, "execution error")
		logger.Error("query_execution_failed", "error", err.Error())
		return answer, nil
	}
	answer.Rows = rows

	text, err := p.summarizer.Summarize(ctx, question, outcome.Statement, rows)
	if err != nil {
		// The data is already in hand; degrade to a plain row-count answer
		// instead of failing the run.
		answer.Text = fmt.Sprintf("The query ran successfully and returned %d row(s), but I could not summarize the results: %s", rows.Len(), err.Error())
		observability.RecordPipelineRun("answered", int(time.Since(start).Milliseconds()))
		span.SetStatus(codes.Ok, "summarization degraded")
		logger.Warn("summarization_failed", "error", err.Error())
		return answer, nil
	}
	answer.Text = text

	durationMS := int(time.Since(start).Milliseconds())
	observability.RecordPipelineRun("answered", durationMS)
	span.SetStatus(codes.Ok, "answered")
	logger.Info("question_answered",
		"attempts", answer.Attempts,
		"rows", rows.Len(),
		"duration_ms", durationMS,
	)
	return answer, nil
}

// nopLogger discards all log output.
type nopLogger struct{}

func (nopLogger) Info(string, ...any)       {}
func (nopLogger) Debug(string, ...any)      {}
func (nopLogger) Warn(string, ...any)       {}
func (nopLogger) Error(string, ...any)      {}
func (nopLogger) Bind(...any) refine.Logger { return nopLogger{} }
