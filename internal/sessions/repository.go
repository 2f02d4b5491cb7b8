// Package sessions persists debate sessions and loads the joined context
// a live session needs (pairing, assignment, student names and theses).
package sessions

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

// Repository handles debate session persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a session repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a debate session for a pairing.
func (r *Repository) Create(ctx context.Context, pairingID uuid.UUID) (uuid.UUID, error) {
	const q = `INSERT INTO debate_sessions (pairing_id) VALUES ($1) RETURNING id`
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, q, pairingID).Scan(&id)
	return id, err
}

// LoadContext builds the debate context for a session: assignment facts
// plus the theses extracted from both students' memo analyses. Returns
// (nil, nil) when the session does not exist.
func (r *Repository) LoadContext(ctx context.Context, sessionID uuid.UUID) (*models.DebateContext, error) {
	const q = `SELECT ds.id, ds.pairing_id, p.assignment_id, p.student_a_id, p.student_b_id,
			a.title, a.prompt_text,
			ua.name, ub.name
		FROM debate_sessions ds
		JOIN pairings p ON p.id = ds.pairing_id
		JOIN assignments a ON a.id = p.assignment_id
		JOIN users ua ON ua.id = p.student_a_id
		JOIN users ub ON ub.id = p.student_b_id
		WHERE ds.id = $1`

	var (
		cx                     models.DebateContext
		studentAID, studentBID uuid.UUID
	)
	err := r.pool.QueryRow(ctx, q, sessionID).Scan(
		&cx.SessionID, &cx.PairingID, &cx.AssignmentID, &studentAID, &studentBID,
		&cx.AssignmentTitle, &cx.AssignmentPrompt,
		&cx.StudentAName, &cx.StudentBName,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session context: %w", err)
	}

	theses, err := r.loadTheses(ctx, cx.AssignmentID, studentAID, studentBID)
	if err != nil {
		return nil, err
	}
	cx.StudentAThesis = theses[studentAID]
	cx.StudentBThesis = theses[studentBID]
	return &cx, nil
}

// loadTheses pulls the thesis field out of each student's memo analysis.
// Missing or unanalyzed memos yield an empty thesis, not an error.
func (r *Repository) loadTheses(ctx context.Context, assignmentID, studentAID, studentBID uuid.UUID) (map[uuid.UUID]string, error) {
	const q = `SELECT student_id, analysis FROM memos
		WHERE assignment_id = $1 AND student_id IN ($2, $3) AND analysis IS NOT NULL`
	rows, err := r.pool.Query(ctx, q, assignmentID, studentAID, studentBID)
	if err != nil {
		return nil, fmt.Errorf("load memo theses: %w", err)
	}
	defer rows.Close()

	theses := make(map[uuid.UUID]string)
	for rows.Next() {
		var (
			studentID uuid.UUID
			raw       []byte
		)
		if err := rows.Scan(&studentID, &raw); err != nil {
			return nil, err
		}
		var analysis models.MemoAnalysis
		if err := json.Unmarshal(raw, &analysis); err != nil {
			continue
		}
		theses[studentID] = analysis.Thesis
	}
	return theses, rows.Err()
}

// SaveTranscript replaces the stored transcript for a session.
func (r *Repository) SaveTranscript(ctx context.Context, sessionID uuid.UUID, transcript []models.Utterance) error {
	if transcript == nil {
		transcript = []models.Utterance{}
	}
	raw, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	const q = `UPDATE debate_sessions SET transcript = $1::jsonb WHERE id = $2`
	_, err = r.pool.Exec(ctx, q, raw, sessionID)
	return err
}

// GetTranscript returns the stored transcript for a session.
func (r *Repository) GetTranscript(ctx context.Context, sessionID uuid.UUID) ([]models.Utterance, error) {
	const q = `SELECT transcript FROM debate_sessions WHERE id = $1`
	var raw []byte
	err := r.pool.QueryRow(ctx, q, sessionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var transcript []models.Utterance
	if err := json.Unmarshal(raw, &transcript); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	return transcript, nil
}
