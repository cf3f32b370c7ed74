package refine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletalk-labs/tabletalk/agentcore/refine"
	"github.com/tabletalk-labs/tabletalk/agentcore/safety"
	"github.com/tabletalk-labs/tabletalk/agentcore/testutil"
)

func newOrchestrator(t *testing.T, gen refine.Generator, judge refine.Judge, maxIterations int) *refine.Orchestrator {
	t.Helper()
	orch, err := refine.New(gen, safety.NewLexicalValidator(), judge, refine.Options{
		MaxIterations: maxIterations,
		Logger:        testutil.NewMockLogger(),
	})
	require.NoError(t, err)
	return orch
}

func TestNew_ConfigurationErrors(t *testing.T) {
	gen := testutil.NewMockGenerator("SELECT 1")
	judge := testutil.NewMockJudge()
	lexical := safety.NewLexicalValidator()

	_, err := refine.New(nil, lexical, judge, refine.DefaultOptions())
	assert.ErrorContains(t, err, "generator is required")

	_, err = refine.New(gen, nil, judge, refine.DefaultOptions())
	assert.ErrorContains(t, err, "lexical validator is required")

	_, err = refine.New(gen, lexical, nil, refine.DefaultOptions())
	assert.ErrorContains(t, err, "judge is required")

	_, err = refine.New(gen, lexical, judge, refine.Options{MaxIterations: 0})
	assert.ErrorContains(t, err, "max_iterations")
}

func TestRun_FirstAttemptApproved(t *testing.T) {
	gen := testutil.NewMockGenerator("SELECT name FROM employees")
	judge := testutil.NewMockJudge()
	orch := newOrchestrator(t, gen, judge, 3)

	outcome, err := orch.Run(context.Background(), "List employees", testutil.TestSnapshot())
	require.NoError(t, err)

	assert.True(t, outcome.SafeQueryProduced())
	assert.Equal(t, refine.OutcomeSafeQuery, outcome.Kind)
	assert.Equal(t, "SELECT name FROM employees", outcome.Statement)
	assert.Empty(t, outcome.LastFeedback)
	assert.NotEmpty(t, outcome.RunID)
	require.Len(t, outcome.Attempts, 1)
	assert.Equal(t, 1, gen.GetCallCount())
	assert.Equal(t, 1, judge.GetCallCount())
}

func TestRun_LexicalRejectionShortCircuitsJudge(t *testing.T) {
	// First candidate is lexically unsafe, second is clean. The judge must
	// only ever see the clean one.
	gen := testutil.NewMockGenerator(
		"DELETE FROM employees",
		"SELECT name FROM employees",
	)
	judge := testutil.NewMockJudge()
	orch := newOrchestrator(t, gen, judge, 3)

	outcome, err := orch.Run(context.Background(), "List employees", testutil.TestSnapshot())
	require.NoError(t, err)

	assert.True(t, outcome.SafeQueryProduced())
	require.Len(t, outcome.Attempts, 2)
	assert.Equal(t, 1, judge.GetCallCount())
	require.Len(t, judge.Statements, 1)
	assert.Equal(t, "SELECT name FROM employees", judge.Statements[0])

	first := outcome.Attempts[0]
	require.NotNil(t, first.Lexical)
	assert.True(t, first.Lexical.Rejected())
	assert.Nil(t, first.Semantic)
	assert.NotEmpty(t, first.Feedback)
}

func TestRun_FeedbackThreadedIntoNextAttempt(t *testing.T) {
	gen := testutil.NewMockGenerator(
		"SELECT secret FROM vault",
		"SELECT name FROM employees",
	)
	judge := testutil.NewMockJudge(
		refine.Reject(refine.VerdictOriginSemantic, "query does not address the question"),
		refine.Approve(refine.VerdictOriginSemantic),
	)
	orch := newOrchestrator(t, gen, judge, 3)

	outcome, err := orch.Run(context.Background(), "List employees", testutil.TestSnapshot())
	require.NoError(t, err)
	assert.True(t, outcome.SafeQueryProduced())

	require.Len(t, gen.Requests, 2)
	assert.Equal(t, 1, gen.Requests[0].Attempt)
	assert.Empty(t, gen.Requests[0].Feedback)
	assert.Equal(t, 2, gen.Requests[1].Attempt)
	assert.Equal(t, "query does not address the question", gen.Requests[1].Feedback)
}

func TestRun_IterationsExhausted(t *testing.T) {
	gen := testutil.NewMockGenerator("DELETE FROM employees")
	judge := testutil.NewMockJudge()
	orch := newOrchestrator(t, gen, judge, 2)

	outcome, err := orch.Run(context.Background(), "Remove everyone", testutil.TestSnapshot())
	require.NoError(t, err)

	assert.False(t, outcome.SafeQueryProduced())
	assert.Equal(t, refine.OutcomeIterationsExhausted, outcome.Kind)
	assert.Empty(t, outcome.Statement)
	assert.Contains(t, outcome.LastFeedback, "must begin with SELECT")
	assert.Len(t, outcome.Attempts, 2)
	assert.Equal(t, 2, gen.GetCallCount())
	// The lexical short-circuit held on every attempt.
	assert.Equal(t, 0, judge.GetCallCount())
	assert.Nil(t, outcome.ApprovedAttempt())
}

func TestRun_GenerationFailureConsumesBudget(t *testing.T) {
	gen := testutil.NewMockGenerator("SELECT name FROM employees")
	gen.Errors[1] = errors.New("model overloaded")
	judge := testutil.NewMockJudge()
	orch := newOrchestrator(t, gen, judge, 3)

	outcome, err := orch.Run(context.Background(), "List employees", testutil.TestSnapshot())
	require.NoError(t, err)

	assert.True(t, outcome.SafeQueryProduced())
	require.Len(t, outcome.Attempts, 2)

	first := outcome.Attempts[0]
	assert.Empty(t, first.Statement)
	assert.Nil(t, first.Lexical)
	assert.Nil(t, first.Semantic)
	assert.Contains(t, first.Feedback, "generation failed: model overloaded")

	// The failure is threaded into the retry as feedback.
	require.Len(t, gen.Requests, 2)
	assert.Contains(t, gen.Requests[1].Feedback, "generation failed")
}

func TestRun_JudgeOutageIsConservativeRejection(t *testing.T) {
	gen := testutil.NewMockGenerator("SELECT name FROM employees")
	judge := testutil.NewMockJudge()
	judge.Error = errors.New("timeout")
	orch := newOrchestrator(t, gen, judge, 2)

	outcome, err := orch.Run(context.Background(), "List employees", testutil.TestSnapshot())
	require.NoError(t, err)

	assert.False(t, outcome.SafeQueryProduced())
	assert.Contains(t, outcome.LastFeedback, "semantic validation unavailable: timeout")
	require.Len(t, outcome.Attempts, 2)
	for _, attempt := range outcome.Attempts {
		require.NotNil(t, attempt.Semantic)
		assert.True(t, attempt.Semantic.Rejected())
		assert.Equal(t, refine.VerdictOriginSemantic, attempt.Semantic.Origin)
	}
}

func TestRun_ExactlyOneApprovedAttempt(t *testing.T) {
	gen := testutil.NewMockGenerator(
		"DELETE FROM employees",
		"SELECT name FROM employees",
		"SELECT 2",
	)
	judge := testutil.NewMockJudge()
	orch := newOrchestrator(t, gen, judge, 3)

	outcome, err := orch.Run(context.Background(), "List employees", testutil.TestSnapshot())
	require.NoError(t, err)
	require.True(t, outcome.SafeQueryProduced())

	approved := 0
	for i := range outcome.Attempts {
		if outcome.Attempts[i].Approved() {
			approved++
			assert.Equal(t, outcome.Statement, outcome.Attempts[i].Statement)
		}
	}
	assert.Equal(t, 1, approved)

	// The loop stops at the approved attempt; the third candidate is never
	// requested.
	assert.Equal(t, 2, gen.GetCallCount())
}

func TestRun_CancelledBetweenIterations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := testutil.NewMockGenerator("SELECT 1")
	orch := newOrchestrator(t, gen, testutil.NewMockJudge(), 3)

	_, err := orch.Run(ctx, "q", testutil.TestSnapshot())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, gen.GetCallCount())
}

func TestRun_ApprovedStatementPassesRecheck(t *testing.T) {
	gen := testutil.NewMockGenerator("SELECT name, salary FROM employees ORDER BY salary DESC")
	orch := newOrchestrator(t, gen, testutil.NewMockJudge(), 3)

	outcome, err := orch.Run(context.Background(), "Who earns the most?", testutil.TestSnapshot())
	require.NoError(t, err)
	require.True(t, outcome.SafeQueryProduced())

	// Soundness: re-validating the approved statement must approve again.
	recheck := safety.NewLexicalValidator().Validate(outcome.Statement)
	assert.True(t, recheck.Approved())
}

func TestDefaultOptions(t *testing.T) {
	opts := refine.DefaultOptions()
	assert.Equal(t, 3, opts.MaxIterations)
	assert.Equal(t, 60*time.Second, opts.CallTimeout)
	assert.Nil(t, opts.Logger)
}
