// Package evaluations scores post-debate performance per student and
// produces instructor-ready narrative summaries.
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

const evaluationPrompt = `You are evaluating a student's performance in an AI-moderated oral debate.

ASSIGNMENT: %s

RUBRIC: %s

STUDENT'S MEMO:
%s

FULL DEBATE TRANSCRIPT:
%s

THIS STUDENT IS: %s

Evaluate on these dimensions (0-100 each):
1. Opening clarity: Was the opening statement clear, well-structured, and thesis-driven?
2. Rebuttal quality: Did the student effectively counter their opponent's arguments?
3. Reading accuracy: Did the student correctly represent findings from the assigned readings?
4. Evidence use: Did the student cite specific evidence from readings to support claims?

Also assess:
- Evidence-of-reading score (0-100): Overall, how confident are you that this student genuinely read and understood the assigned materials?
- Overall score (0-100): Holistic assessment
- Pass/Fail recommendation with confidence (0-1)
- Integrity flags: Any of these detected?
  * Student couldn't explain a key mechanism they referenced in memo
  * Student couldn't connect claim to reading evidence
  * Student contradicted memo thesis without plausible reason
  * Overly polished but shallow answers that never cite specifics

Output ONLY valid JSON:
{
  "overall_score": number,
  "confidence": number,
  "evidence_of_reading": number,
  "opening_clarity": number,
  "rebuttal_quality": number,
  "reading_accuracy": number,
  "evidence_use": number,
  "pass_fail": "pass" | "fail" | "review",
  "integrity_flags": ["flag1", ...]
}`

// Scores is the structured scoring output for one student.
type Scores struct {
	OverallScore      int      `json:"overall_score"`
	Confidence        float64  `json:"confidence"`
	EvidenceOfReading int      `json:"evidence_of_reading"`
	OpeningClarity    int      `json:"opening_clarity"`
	RebuttalQuality   int      `json:"rebuttal_quality"`
	ReadingAccuracy   int      `json:"reading_accuracy"`
	EvidenceUse       int      `json:"evidence_use"`
	PassFail          string   `json:"pass_fail"`
	IntegrityFlags    []string `json:"integrity_flags"`
}

// Scorer runs the evaluation prompts.
type Scorer struct {
	llm    llm.Completer
	usage  usage.Recorder
	model  string
	logger *zap.Logger
}

// NewScorer creates a debate scorer.
func NewScorer(completer llm.Completer, recorder usage.Recorder, model string, logger *zap.Logger) *Scorer {
	if recorder == nil {
		recorder = usage.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{llm: completer, usage: recorder, model: model, logger: logger}
}

func transcriptText(transcript []models.Utterance) string {
	var lines []string
	for _, u := range transcript {
		lines = append(lines, fmt.Sprintf("%s: %s", u.Speaker, u.Text))
	}
	return strings.Join(lines, "\n")
}

func orFallback(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// ScoreStudent evaluates one student against the full transcript.
// Missing fields in the model output default rather than fail.
func (s *Scorer) ScoreStudent(ctx context.Context, in ScoreInput) (*Scores, error) {
	prompt := fmt.Sprintf(evaluationPrompt,
		in.AssignmentPrompt,
		orFallback(in.Rubric, "No rubric provided"),
		orFallback(in.MemoText, "No memo available"),
		orFallback(transcriptText(in.Transcript), "No transcript available"),
		in.StudentLabel,
	)
	resp, err := s.llm.Complete(ctx, llm.Request{
		Model:     s.model,
		Prompt:    prompt,
		MaxTokens: 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("scoring call: %w", err)
	}
	s.usage.Record(models.UsageRecord{
		Service:      "evaluator",
		Model:        s.model,
		CallType:     "scoring",
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		AssignmentID: in.AssignmentID,
		PairingID:    in.PairingID,
	})

	var scores Scores
	if err := json.Unmarshal([]byte(llm.StripFences(resp.Text)), &scores); err != nil {
		return nil, fmt.Errorf("parse scores: %w", err)
	}
	if scores.PassFail == "" {
		scores.PassFail = models.PassFailReview
	}
	if scores.IntegrityFlags == nil {
		scores.IntegrityFlags = []string{}
	}
	return &scores, nil
}

// ScoreInput carries everything a per-student scoring call needs.
type ScoreInput struct {
	AssignmentPrompt string
	Rubric           string
	MemoText         string
	Transcript       []models.Utterance
	StudentLabel     string

	AssignmentID *uuid.UUID
	PairingID    *uuid.UUID
}
