package evaluations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-debate/backend/internal/models"
)

// SessionDetail is the joined view an evaluation run needs.
type SessionDetail struct {
	SessionID        uuid.UUID
	PairingID        uuid.UUID
	AssignmentID     uuid.UUID
	StudentAID       uuid.UUID
	StudentBID       uuid.UUID
	AssignmentPrompt string
	Rubric           string
	Transcript       []models.Utterance
}

// Repository handles evaluation persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an evaluations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LoadSession fetches the session, pairing and assignment facts needed
// to evaluate both students. Returns nil when the session is unknown.
func (r *Repository) LoadSession(ctx context.Context, sessionID uuid.UUID) (*SessionDetail, error) {
	const q = `SELECT ds.id, ds.transcript, ds.pairing_id,
			p.student_a_id, p.student_b_id, p.assignment_id,
			a.prompt_text, a.rubric_text
		FROM debate_sessions ds
		JOIN pairings p ON p.id = ds.pairing_id
		JOIN assignments a ON a.id = p.assignment_id
		WHERE ds.id = $1`
	var (
		d   SessionDetail
		raw []byte
	)
	err := r.pool.QueryRow(ctx, q, sessionID).Scan(
		&d.SessionID, &raw, &d.PairingID,
		&d.StudentAID, &d.StudentBID, &d.AssignmentID,
		&d.AssignmentPrompt, &d.Rubric,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &d.Transcript); err != nil {
			return nil, fmt.Errorf("decode transcript: %w", err)
		}
	}
	return &d, nil
}

// MemoText returns the extracted memo text for a student, if any.
func (r *Repository) MemoText(ctx context.Context, assignmentID, studentID uuid.UUID) (string, error) {
	const q = `SELECT COALESCE(extracted_text, '') FROM memos
		WHERE assignment_id = $1 AND student_id = $2`
	var text string
	err := r.pool.QueryRow(ctx, q, assignmentID, studentID).Scan(&text)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return text, err
}

// Insert stores one student's evaluation.
func (r *Repository) Insert(ctx context.Context, e *models.Evaluation) error {
	flags, err := json.Marshal(e.IntegrityFlags)
	if err != nil {
		return fmt.Errorf("marshal flags: %w", err)
	}
	const q = `INSERT INTO evaluations
		(debate_session_id, student_id, score, confidence, evidence_of_reading_score,
		 opening_clarity, rebuttal_quality, reading_accuracy, evidence_use,
		 integrity_flags, criteria_scores, ai_summary, pass_fail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11, $12, $13)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q,
		e.DebateSessionID, e.StudentID, e.Score, e.Confidence, e.EvidenceOfReadingScore,
		e.OpeningClarity, e.RebuttalQuality, e.ReadingAccuracy, e.EvidenceUse,
		flags, e.CriteriaScores, e.AISummary, e.PassFail,
	).Scan(&e.ID, &e.CreatedAt)
}

// ListBySession returns stored evaluations for a debate session.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Evaluation, error) {
	const q = `SELECT id, debate_session_id, student_id, score, confidence,
			evidence_of_reading_score, opening_clarity, rebuttal_quality,
			reading_accuracy, evidence_use, integrity_flags, criteria_scores,
			ai_summary, pass_fail, created_at
		FROM evaluations WHERE debate_session_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Evaluation
	for rows.Next() {
		var (
			e     models.Evaluation
			flags []byte
		)
		if err := rows.Scan(&e.ID, &e.DebateSessionID, &e.StudentID, &e.Score, &e.Confidence,
			&e.EvidenceOfReadingScore, &e.OpeningClarity, &e.RebuttalQuality,
			&e.ReadingAccuracy, &e.EvidenceUse, &flags, &e.CriteriaScores,
			&e.AISummary, &e.PassFail, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(flags) > 0 {
			_ = json.Unmarshal(flags, &e.IntegrityFlags)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
