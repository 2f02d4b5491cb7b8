// Package moderator produces AI interventions for live debate sessions:
// utterance judgments, phase prompts, silence nudges and phase summaries.
package moderator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/aura-debate/backend/internal/models"
	"github.com/aura-debate/backend/internal/readings"
	"github.com/aura-debate/backend/internal/usage"
	"github.com/aura-debate/backend/pkg/llm"
)

// Judgment is the moderator's decision about one utterance.
type Judgment struct {
	ShouldIntervene  bool   `json:"should_intervene"`
	InterventionType string `json:"intervention_type"`
	TargetStudent    string `json:"target_student"`
	Message          string `json:"message"`
}

// Moderator holds per-debate context and generates interventions.
type Moderator struct {
	cx       models.DebateContext
	llm      llm.Completer
	readings readings.Retriever
	usage    usage.Recorder
	model    string
	logger   *zap.Logger
}

// New creates a moderator bound to one debate's context.
func New(cx models.DebateContext, completer llm.Completer, retriever readings.Retriever, recorder usage.Recorder, model string, logger *zap.Logger) *Moderator {
	if recorder == nil {
		recorder = usage.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Moderator{
		cx:       cx,
		llm:      completer,
		readings: retriever,
		usage:    recorder,
		model:    model,
		logger:   logger,
	}
}

func (m *Moderator) phaseInstructions(phase models.Phase) string {
	for key, instructions := range phaseBehavior {
		if strings.Contains(string(phase), key) {
			return instructions
		}
	}
	return phaseBehavior["crossexam"]
}

// readingContext queries the indexer for passages related to the claim.
// Indexer failures degrade to the fallback text rather than blocking
// moderation.
func (m *Moderator) readingContext(ctx context.Context, claim string) string {
	if m.readings == nil {
		return readings.NoPassagesFallback
	}
	passages, err := m.readings.Query(ctx, m.cx.AssignmentID, claim, 0)
	if err != nil {
		m.logger.Warn("reading indexer query failed", zap.Error(err))
		return readings.NoPassagesFallback
	}
	return readings.FormatPassages(passages)
}

func (m *Moderator) complete(ctx context.Context, callType, prompt string, maxTokens int) (string, error) {
	resp, err := m.llm.Complete(ctx, llm.Request{
		Model:     m.model,
		Prompt:    prompt,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}
	m.usage.Record(models.UsageRecord{
		Service:      "moderator",
		Model:        m.model,
		CallType:     callType,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		AssignmentID: &m.cx.AssignmentID,
		PairingID:    &m.cx.PairingID,
	})
	return strings.TrimSpace(resp.Text), nil
}

// EvaluateUtterance decides whether to intervene on a finalized utterance
// by the named speaker. The prompt sees the speaker through the recent
// transcript lines; the argument keeps the call shape stable for prompts
// that address the speaker directly. Returns nil when the model output
// cannot be parsed.
func (m *Moderator) EvaluateUtterance(ctx context.Context, utterance, speaker string, phase models.Phase, recent []models.Utterance) (*Judgment, error) {
	var lines []string
	for _, u := range recent {
		lines = append(lines, fmt.Sprintf("%s: %s", u.Speaker, u.Text))
	}

	prompt := fmt.Sprintf(moderationPrompt,
		m.cx.AssignmentTitle,
		m.cx.StudentAThesis,
		m.cx.StudentBThesis,
		phase,
		strings.Join(lines, "\n"),
		m.readingContext(ctx, utterance),
		m.phaseInstructions(phase),
	)

	text, err := m.complete(ctx, "moderation", prompt, 256)
	if err != nil {
		return nil, err
	}
	var j Judgment
	if err := json.Unmarshal([]byte(llm.StripFences(text)), &j); err != nil {
		m.logger.Warn("moderation output not valid JSON", zap.String("text", text), zap.Error(err))
		return nil, nil
	}
	return &j, nil
}

// PhasePrompt generates a contextual instruction for the start of a phase.
func (m *Moderator) PhasePrompt(ctx context.Context, phase models.Phase) (string, error) {
	prompt := fmt.Sprintf(phasePromptTemplate, phase, m.cx.StudentAThesis, m.cx.StudentBThesis)
	return m.complete(ctx, "phase_prompt", prompt, 100)
}

// SilenceNudge generates a re-engagement prompt for a silent speaker.
func (m *Moderator) SilenceNudge(ctx context.Context, phase models.Phase, speaker string) (string, error) {
	thesis := m.cx.StudentAThesis
	if speaker == "B" {
		thesis = m.cx.StudentBThesis
	}
	prompt := fmt.Sprintf(silenceNudgePrompt, speaker, phase, thesis)
	return m.complete(ctx, "silence_nudge", prompt, 60)
}

// PhaseSummary summarizes the given phase entries. Returns "" without an
// LLM call when there is nothing to summarize.
func (m *Moderator) PhaseSummary(ctx context.Context, entries []models.Utterance) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	var lines []string
	for _, u := range entries {
		lines = append(lines, fmt.Sprintf("%s: %s", u.Speaker, u.Text))
	}
	prompt := fmt.Sprintf(phaseSummaryPrompt,
		firstName(m.cx.StudentAName),
		firstName(m.cx.StudentBName),
		strings.Join(lines, "\n"),
	)
	return m.complete(ctx, "phase_summary", prompt, 120)
}

// TransitionMessage generates the ready-check line announcing the next
// phase. Always returns non-empty text; LLM failures fall back to a
// static message so the ready check never stalls.
func (m *Moderator) TransitionMessage(ctx context.Context, current, next models.Phase) string {
	prompt := fmt.Sprintf(transitionMessagePrompt, current, next)
	text, err := m.complete(ctx, "ready_check", prompt, 60)
	if err != nil || text == "" {
		if err != nil {
			m.logger.Warn("transition message generation failed", zap.Error(err))
		}
		return fmt.Sprintf("Nice work. When you're both ready, we'll move on to %s.", next)
	}
	return text
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return full
	}
	return fields[0]
}
