package evaluations

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-debate/backend/internal/models"
)

// Service runs the full evaluation of one debate session: both students
// scored against the transcript, each with a narrative summary.
type Service struct {
	repo       *Repository
	scorer     *Scorer
	summarizer *Summarizer
	logger     *zap.Logger
}

// NewService creates an evaluation service.
func NewService(repo *Repository, scorer *Scorer, summarizer *Summarizer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, scorer: scorer, summarizer: summarizer, logger: logger}
}

// ErrSessionNotFound is returned when the debate session does not exist.
var ErrSessionNotFound = fmt.Errorf("debate session not found")

// Evaluate scores and summarizes both participants of a session and
// stores one evaluation row per student.
func (s *Service) Evaluate(ctx context.Context, sessionID uuid.UUID) ([]models.Evaluation, error) {
	detail, err := s.repo.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if detail == nil {
		return nil, ErrSessionNotFound
	}

	students := []struct {
		id    uuid.UUID
		label string
	}{
		{detail.StudentAID, "Student A"},
		{detail.StudentBID, "Student B"},
	}

	var results []models.Evaluation
	for _, student := range students {
		memoText, err := s.repo.MemoText(ctx, detail.AssignmentID, student.id)
		if err != nil {
			return nil, fmt.Errorf("load memo for %s: %w", student.label, err)
		}

		scores, err := s.scorer.ScoreStudent(ctx, ScoreInput{
			AssignmentPrompt: detail.AssignmentPrompt,
			Rubric:           detail.Rubric,
			MemoText:         memoText,
			Transcript:       detail.Transcript,
			StudentLabel:     student.label,
			AssignmentID:     &detail.AssignmentID,
			PairingID:        &detail.PairingID,
		})
		if err != nil {
			return nil, fmt.Errorf("score %s: %w", student.label, err)
		}

		summary, err := s.summarizer.Summarize(ctx, scores, detail.Transcript, student.label, &detail.AssignmentID, &detail.PairingID)
		if err != nil {
			return nil, fmt.Errorf("summarize %s: %w", student.label, err)
		}

		eval := models.Evaluation{
			DebateSessionID:        sessionID,
			StudentID:              student.id,
			Score:                  scores.OverallScore,
			Confidence:             scores.Confidence,
			EvidenceOfReadingScore: scores.EvidenceOfReading,
			OpeningClarity:         scores.OpeningClarity,
			RebuttalQuality:        scores.RebuttalQuality,
			ReadingAccuracy:        scores.ReadingAccuracy,
			EvidenceUse:            scores.EvidenceUse,
			IntegrityFlags:         scores.IntegrityFlags,
			AISummary:              summary,
			PassFail:               scores.PassFail,
		}
		if err := s.repo.Insert(ctx, &eval); err != nil {
			return nil, fmt.Errorf("store evaluation for %s: %w", student.label, err)
		}
		results = append(results, eval)

		s.logger.Info("student evaluated",
			zap.String("session_id", sessionID.String()),
			zap.String("student", student.label),
			zap.Int("score", scores.OverallScore),
			zap.String("pass_fail", scores.PassFail),
		)
	}
	return results, nil
}
