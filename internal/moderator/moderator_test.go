package moderator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-debate/backend/internal/models"
	"github.com/aura-debate/backend/internal/readings"
	"github.com/aura-debate/backend/pkg/llm"
)

type fakeCompleter struct {
	reply    string
	err      error
	requests []llm.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Text: f.reply, InputTokens: 100, OutputTokens: 30}, nil
}

type fakeRetriever struct {
	passages []readings.Passage
	err      error
}

func (f *fakeRetriever) Query(context.Context, uuid.UUID, string, int) ([]readings.Passage, error) {
	return f.passages, f.err
}

func testContext() models.DebateContext {
	return models.DebateContext{
		SessionID:       uuid.New(),
		PairingID:       uuid.New(),
		AssignmentID:    uuid.New(),
		AssignmentTitle: "Trade Policy Debate",
		StudentAThesis:  "Free trade is beneficial",
		StudentBThesis:  "Protectionism is needed",
		StudentAName:    "Alex Johnson",
		StudentBName:    "Jordan Smith",
	}
}

func TestEvaluateUtteranceParsesJudgment(t *testing.T) {
	fc := &fakeCompleter{reply: `{"should_intervene": true, "intervention_type": "fact_check", "target_student": "A", "message": "The reading says otherwise."}`}
	m := New(testContext(), fc, &fakeRetriever{}, nil, "claude-haiku-4-5-20251001", nil)

	j, err := m.EvaluateUtterance(context.Background(), "Tariffs always help workers", "Alex Johnson", models.PhaseCrossA, []models.Utterance{
		{Speaker: "Alex", Text: "Tariffs always help workers"},
	})
	require.NoError(t, err)
	require.NotNil(t, j)
	assert.True(t, j.ShouldIntervene)
	assert.Equal(t, "fact_check", j.InterventionType)
	assert.Equal(t, "A", j.TargetStudent)

	prompt := fc.requests[0].Prompt
	assert.Contains(t, prompt, "Trade Policy Debate")
	assert.Contains(t, prompt, "Free trade is beneficial")
	assert.Contains(t, prompt, "Alex: Tariffs always help workers")
	// crossexam phases get the probing instructions.
	assert.Contains(t, prompt, "Probe the weakest parts")
}

func TestEvaluateUtteranceStripsFences(t *testing.T) {
	fc := &fakeCompleter{reply: "```json\n{\"should_intervene\": false, \"intervention_type\": \"none\", \"target_student\": \"both\", \"message\": \"\"}\n```"}
	m := New(testContext(), fc, &fakeRetriever{}, nil, "claude-haiku-4-5-20251001", nil)

	j, err := m.EvaluateUtterance(context.Background(), "hello", "Alex Johnson", models.PhaseOpeningA, nil)
	require.NoError(t, err)
	require.NotNil(t, j)
	assert.False(t, j.ShouldIntervene)
}

func TestEvaluateUtteranceInvalidJSON(t *testing.T) {
	fc := &fakeCompleter{reply: "I think you should intervene here."}
	m := New(testContext(), fc, &fakeRetriever{}, nil, "claude-haiku-4-5-20251001", nil)

	j, err := m.EvaluateUtterance(context.Background(), "hello", "Alex Johnson", models.PhaseOpeningA, nil)
	require.NoError(t, err)
	assert.Nil(t, j)
}

func TestEvaluateUtteranceIndexerFailureDegrades(t *testing.T) {
	fc := &fakeCompleter{reply: `{"should_intervene": false, "intervention_type": "none", "target_student": "both", "message": ""}`}
	m := New(testContext(), fc, &fakeRetriever{err: errors.New("indexer down")}, nil, "claude-haiku-4-5-20251001", nil)

	_, err := m.EvaluateUtterance(context.Background(), "claim", "Jordan Smith", models.PhaseRebuttalA, nil)
	require.NoError(t, err)
	assert.Contains(t, fc.requests[0].Prompt, readings.NoPassagesFallback)
}

func TestPhaseInstructionsFallback(t *testing.T) {
	m := New(testContext(), &fakeCompleter{}, nil, nil, "", nil)
	assert.Equal(t, phaseBehavior["opening"], m.phaseInstructions(models.PhaseOpeningB))
	assert.Equal(t, phaseBehavior["closing"], m.phaseInstructions(models.PhaseClosingA))
	// unknown phases get the crossexam default.
	assert.Equal(t, phaseBehavior["crossexam"], m.phaseInstructions(models.Phase("freeform")))
}

func TestSilenceNudgeUsesSpeakerThesis(t *testing.T) {
	fc := &fakeCompleter{reply: "Jordan, how does protectionism protect jobs here?"}
	m := New(testContext(), fc, nil, nil, "claude-haiku-4-5-20251001", nil)

	nudge, err := m.SilenceNudge(context.Background(), models.PhaseOpeningB, "B")
	require.NoError(t, err)
	assert.NotEmpty(t, nudge)
	assert.Contains(t, fc.requests[0].Prompt, "Protectionism is needed")
	assert.NotContains(t, fc.requests[0].Prompt, "Free trade is beneficial")
}

func TestPhaseSummaryEmptyTranscript(t *testing.T) {
	fc := &fakeCompleter{reply: "should not be called"}
	m := New(testContext(), fc, nil, nil, "claude-haiku-4-5-20251001", nil)

	summary, err := m.PhaseSummary(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, summary)
	assert.Empty(t, fc.requests)
}

func TestPhaseSummaryUsesFirstNames(t *testing.T) {
	fc := &fakeCompleter{reply: "Alex argued for free trade while Jordan pushed back."}
	m := New(testContext(), fc, nil, nil, "claude-haiku-4-5-20251001", nil)

	summary, err := m.PhaseSummary(context.Background(), []models.Utterance{
		{Speaker: "Alex", Text: "Free trade creates jobs.", Phase: models.PhaseOpeningA},
	})
	require.NoError(t, err)
	assert.Contains(t, summary, "Alex")

	prompt := fc.requests[0].Prompt
	assert.Contains(t, prompt, "Alex")
	assert.Contains(t, prompt, "Jordan")
	assert.NotContains(t, prompt, "Johnson")
	assert.NotContains(t, prompt, "Smith")
}

func TestTransitionMessageFallsBack(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("api error")}
	m := New(testContext(), fc, nil, nil, "claude-haiku-4-5-20251001", nil)

	msg := m.TransitionMessage(context.Background(), models.PhaseOpeningA, models.PhaseOpeningB)
	assert.NotEmpty(t, msg)
	assert.True(t, strings.Contains(msg, string(models.PhaseOpeningB)))
}
