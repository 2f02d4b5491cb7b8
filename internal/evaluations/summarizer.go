package evaluations

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-debate/backend/internal/models"
	"github.com/aura-debate/backend/internal/usage"
	"github.com/aura-debate/backend/pkg/llm"
)

const summaryPrompt = `Based on the following debate evaluation and transcript, write a 2-3 paragraph
instructor-ready narrative summary of this student's performance.

STUDENT: %s

SCORES:
- Overall: %d/100
- Opening Clarity: %d/100
- Rebuttal Quality: %d/100
- Reading Accuracy: %d/100
- Evidence Use: %d/100
- Evidence of Reading: %d/100
- Pass/Fail: %s
- Confidence: %g

INTEGRITY FLAGS: %s

KEY TRANSCRIPT MOMENTS:
%s

Write a clear, actionable narrative that highlights:
1. What the student did well
2. Areas for improvement
3. Any concerns about engagement with readings
4. Notable exchanges during the debate

Keep it professional and constructive.`

// Summarizer turns scores plus transcript excerpts into instructor prose.
type Summarizer struct {
	llm    llm.Completer
	usage  usage.Recorder
	model  string
	logger *zap.Logger
}

// NewSummarizer creates an evaluation summarizer.
func NewSummarizer(completer llm.Completer, recorder usage.Recorder, model string, logger *zap.Logger) *Summarizer {
	if recorder == nil {
		recorder = usage.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{llm: completer, usage: recorder, model: model, logger: logger}
}

// transcriptExcerpt picks the student's first and last few entries so
// the prompt sees how they opened and how they finished.
func transcriptExcerpt(transcript []models.Utterance, studentLabel string) string {
	parts := strings.Fields(studentLabel)
	marker := studentLabel
	if len(parts) > 0 {
		marker = parts[len(parts)-1]
	}
	var entries []models.Utterance
	for _, u := range transcript {
		if strings.Contains(u.Speaker, marker) {
			entries = append(entries, u)
		}
	}
	const edge = 3
	if len(entries) > 2*edge {
		entries = append(append([]models.Utterance{}, entries[:edge]...), entries[len(entries)-edge:]...)
	}
	var lines []string
	for _, u := range entries {
		lines = append(lines, fmt.Sprintf("%s: %s", u.Speaker, u.Text))
	}
	return strings.Join(lines, "\n")
}

// Summarize generates the narrative for one student.
func (s *Summarizer) Summarize(ctx context.Context, scores *Scores, transcript []models.Utterance, studentLabel string, assignmentID, pairingID *uuid.UUID) (string, error) {
	flags, _ := json.Marshal(scores.IntegrityFlags)
	prompt := fmt.Sprintf(summaryPrompt,
		studentLabel,
		scores.OverallScore,
		scores.OpeningClarity,
		scores.RebuttalQuality,
		scores.ReadingAccuracy,
		scores.EvidenceUse,
		scores.EvidenceOfReading,
		scores.PassFail,
		scores.Confidence,
		string(flags),
		orFallback(transcriptExcerpt(transcript, studentLabel), "No transcript available"),
	)
	resp, err := s.llm.Complete(ctx, llm.Request{
		Model:     s.model,
		Prompt:    prompt,
		MaxTokens: 1024,
	})
	if err != nil {
		return "", fmt.Errorf("summary call: %w", err)
	}
	s.usage.Record(models.UsageRecord{
		Service:      "evaluator",
		Model:        s.model,
		CallType:     "summary",
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		AssignmentID: assignmentID,
		PairingID:    pairingID,
	})
	return strings.TrimSpace(resp.Text), nil
}
