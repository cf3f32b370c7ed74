package refine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tabletalk-labs/tabletalk/agentcore/observability"
	"github.com/tabletalk-labs/tabletalk/agentcore/schema"
)

// GenerationRequest is the full input context for one generation attempt.
// It is reproducible from the attempt sequence alone: the feedback field is
// an explicit copy of the previous attempt's rejection reason, not shared
// mutable state.
type GenerationRequest struct {
	Question string
	Schema   *schema.Snapshot
	// Feedback is the rejection reason from the previous attempt, empty on
	// the first attempt.
	Feedback string
	// Attempt is the 1-based ordinal of the attempt being generated.
	Attempt int
}

// Generator produces one candidate SQL statement for a request. It is an
// opaque natural-language-to-SQL capability with no internal state.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// StatementValidator is the deterministic, side-effect-free text-level
// safety check.
type StatementValidator interface {
	Validate(statement string) Verdict
}

// Judge is the intent-level safety capability. It may be slow and may fail;
// the orchestrator treats a failure as a conservative rejection.
type Judge interface {
	Judge(ctx context.Context, question, statement string) (Verdict, error)
}

// Logger is the interface for logging.
type Logger interface {
	Info(msg string, fields ...any)
	Debug(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
	Bind(fields ...any) Logger
}

var tracer = otel.Tracer("tabletalk/refine")

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures an Orchestrator.
type Options struct {
	// MaxIterations is the retry budget per run. Must be >= 1.
	MaxIterations int

	// CallTimeout bounds each generator and judge invocation. Zero means
	// no per-call timeout beyond the run context.
	CallTimeout time.Duration

	// Logger receives structured run events. Nil disables logging.
	Logger Logger
}

// DefaultOptions returns Options with default values.
func DefaultOptions() Options {
	return Options{
		MaxIterations: 3,
		CallTimeout:   60 * time.Second,
	}
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator drives the generate -> validate -> (accept | retry) cycle to
// a terminal outcome within a fixed retry budget. It holds no state past a
// single run; concurrent runs are independent.
type Orchestrator struct {
	generator Generator
	lexical   StatementValidator
	judge     Judge
	opts      Options
}

// New creates an Orchestrator. An invalid configuration is rejected here,
// before any attempt can be made.
func New(generator Generator, lexical StatementValidator, judge Judge, opts Options) (*Orchestrator, error) {
	if generator == nil {
		return nil, fmt.Errorf("refine: generator is required")
	}
	if lexical == nil {
		return nil, fmt.Errorf("refine: lexical validator is required")
	}
	if judge == nil {
		return nil, fmt.Errorf("refine: judge is required")
	}
	if opts.MaxIterations < 1 {
		return nil, fmt.Errorf("refine: max_iterations must be >= 1, got %d", opts.MaxIterations)
	}
	return &Orchestrator{
		generator: generator,
		lexical:   lexical,
		judge:     judge,
		opts:      opts,
	}, nil
}

// Run executes one refinement run for a question against an immutable schema
// snapshot. It returns an error only for cancellation between iterations;
// rejections, generation failures, and judge outages are folded into the
// attempt sequence and the terminal RunOutcome.
func (o *Orchestrator) Run(ctx context.Context, question string, snap *schema.Snapshot) (*RunOutcome, error) {
	runID := uuid.NewString()
	logger := o.logger().Bind("run_id", runID)

	ctx, span := tracer.Start(ctx, "refine.run", trace.WithAttributes(
		attribute.String("tabletalk.run.id", runID),
		attribute.Int("tabletalk.run.max_iterations", o.opts.MaxIterations),
	))
	defer span.End()

	startTime := time.Now()
	logger.Info("refinement_started", "question_length", len(question))

	attempts := make([]Attempt, 0, o.opts.MaxIterations)
	feedback := ""

	for i := 1; i <= o.opts.MaxIterations; i++ {
		// Cancellation is honored between iterations only; an in-flight
		// capability call completes or times out first.
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("refine: run cancelled before attempt %d: %w", i, err)
		}

		attempt := o.runAttempt(ctx, logger, question, snap, feedback, i)
		attempts = append(attempts, attempt)

		if attempt.Approved() {
			outcome := &RunOutcome{
				RunID:     runID,
				Kind:      OutcomeSafeQuery,
				Statement: attempt.Statement,
				Attempts:  attempts,
			}
			durationMS := int(time.Since(startTime).Milliseconds())
			observability.RecordRun(string(OutcomeSafeQuery), durationMS)
			span.SetAttributes(attribute.Int("tabletalk.run.attempts", len(attempts)))
			span.SetStatus(codes.Ok, "safe query produced")
			logger.Info("refinement_completed",
				"outcome", string(OutcomeSafeQuery),
				"attempts", len(attempts),
				"duration_ms", durationMS,
			)
			return outcome, nil
		}

		feedback = attempt.Feedback
	}

	outcome := &RunOutcome{
		RunID:        runID,
		Kind:         OutcomeIterationsExhausted,
		LastFeedback: feedback,
		Attempts:     attempts,
	}
	durationMS := int(time.Since(startTime).Milliseconds())
	observability.RecordRun(string(OutcomeIterationsExhausted), durationMS)
	span.SetAttributes(attribute.Int("tabletalk.run.attempts", len(attempts)))
	span.SetStatus(codes.Ok, "iterations exhausted")
	logger.Warn("refinement_exhausted",
		"attempts", len(attempts),
		"last_feedback", feedback,
		"duration_ms", durationMS,
	)
	return outcome, nil
}

// runAttempt performs a single generate -> lexical -> semantic cycle.
func (o *Orchestrator) runAttempt(ctx context.Context, logger Logger, question string, snap *schema.Snapshot, feedback string, index int) Attempt {
	ctx, span := tracer.Start(ctx, "refine.attempt", trace.WithAttributes(
		attribute.Int("tabletalk.attempt.index", index),
	))
	defer span.End()

	attempt := Attempt{Index: index}

	statement, err := o.generate(ctx, GenerationRequest{
		Question: question,
		Schema:   snap,
		Feedback: feedback,
		Attempt:  index,
	})
	if err != nil {
		// A generation failure consumes the iteration budget but is not a
		// validator rejection.
		attempt.Feedback = fmt.Sprintf("generation failed: %s", err.Error())
		observability.RecordAttempt("generation", "error")
		span.RecordError(err)
		logger.Warn("generation_failed", "attempt", index, "error", err.Error())
		return attempt
	}
	attempt.Statement = statement
	logger.Debug("candidate_generated", "attempt", index, "statement_length", len(statement))

	lexical := o.lexical.Validate(statement)
	attempt.Lexical = &lexical
	if lexical.Rejected() {
		// Short-circuit: never spend a judge call on a lexically unsafe
		// candidate.
		attempt.Feedback = lexical.Reason
		observability.RecordAttempt(string(VerdictOriginLexical), "rejected")
		span.SetAttributes(attribute.String("tabletalk.attempt.rejected_by", string(VerdictOriginLexical)))
		logger.Info("lexical_rejected", "attempt", index, "reason", lexical.Reason)
		return attempt
	}
	observability.RecordAttempt(string(VerdictOriginLexical), "approved")

	semantic, err := o.judgeStatement(ctx, question, statement)
	if err != nil {
		// Unknown is treated as unsafe: the outage degrades to a
		// conservative retry rather than aborting the run.
		semantic = Reject(VerdictOriginSemantic, fmt.Sprintf("semantic validation unavailable: %s", err.Error()))
		logger.Warn("judge_unavailable", "attempt", index, "error", err.Error())
	}
	attempt.Semantic = &semantic
	if semantic.Rejected() {
		attempt.Feedback = semantic.Reason
		observability.RecordAttempt(string(VerdictOriginSemantic), "rejected")
		span.SetAttributes(attribute.String("tabletalk.attempt.rejected_by", string(VerdictOriginSemantic)))
		logger.Info("semantic_rejected", "attempt", index, "reason", semantic.Reason)
		return attempt
	}
	observability.RecordAttempt(string(VerdictOriginSemantic), "approved")

	logger.Info("candidate_approved", "attempt", index)
	return attempt
}

func (o *Orchestrator) generate(ctx context.Context, req GenerationRequest) (string, error) {
	ctx, cancel := o.boundCall(ctx)
	defer cancel()
	return o.generator.Generate(ctx, req)
}

func (o *Orchestrator) judgeStatement(ctx context.Context, question, statement string) (Verdict, error) {
	ctx, cancel := o.boundCall(ctx)
	defer cancel()
	return o.judge.Judge(ctx, question, statement)
}

// boundCall applies the per-call timeout to a capability invocation.
func (o *Orchestrator) boundCall(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.opts.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.opts.CallTimeout)
}

func (o *Orchestrator) logger() Logger {
	if o.opts.Logger != nil {
		return o.opts.Logger
	}
	return nopLogger{}
}

// nopLogger discards all log output.
type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (nopLogger) Bind(...any) Logger   { return nopLogger{} }
