// Package memos implements the memo upload and analysis pipeline:
// S3 upload, queued text extraction and LLM position classification.
package memos

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

// Repository handles memo persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a memo repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a memo record in uploaded state. One memo per student
// per assignment; re-uploads replace the earlier file.
func (r *Repository) Create(ctx context.Context, m *models.Memo) error {
	const q = `INSERT INTO memos (assignment_id, student_id, file_path, status)
		VALUES ($1, $2, $3, 'uploaded')
		ON CONFLICT (assignment_id, student_id)
		DO UPDATE SET file_path = EXCLUDED.file_path, status = 'uploaded',
			extracted_text = NULL, analysis = NULL, position_binary = NULL, analyzed_at = NULL
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, m.AssignmentID, m.StudentID, m.FilePath).
		Scan(&m.ID, &m.CreatedAt)
}

// GetByID returns a memo by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Memo, error) {
	const q = `SELECT id, assignment_id, student_id, file_path, status,
			COALESCE(extracted_text, ''), analysis, COALESCE(position_binary, ''), created_at, analyzed_at
		FROM memos WHERE id = $1`
	m, err := r.scanMemo(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// ListByAssignment returns all memos for an assignment.
func (r *Repository) ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]models.Memo, error) {
	const q = `SELECT id, assignment_id, student_id, file_path, status,
			COALESCE(extracted_text, ''), analysis, COALESCE(position_binary, ''), created_at, analyzed_at
		FROM memos WHERE assignment_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Memo
	for rows.Next() {
		m, err := r.scanMemo(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	return list, rows.Err()
}

// AnalyzedByAssignment returns analyzed memos keyed by student.
func (r *Repository) AnalyzedByAssignment(ctx context.Context, assignmentID uuid.UUID) (map[uuid.UUID]models.MemoAnalysis, error) {
	const q = `SELECT student_id, analysis FROM memos
		WHERE assignment_id = $1 AND status = 'analyzed' AND analysis IS NOT NULL`
	rows, err := r.pool.Query(ctx, q, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID]models.MemoAnalysis)
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
		out[studentID] = analysis
	}
	return out, rows.Err()
}

// SetStatus updates the pipeline status.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, `UPDATE memos SET status = $1 WHERE id = $2`, status, id)
	return err
}

// SetExtracted stores the extracted text and moves to analyzing.
func (r *Repository) SetExtracted(ctx context.Context, id uuid.UUID, text string) error {
	const q = `UPDATE memos SET status = 'analyzing', extracted_text = $1 WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, text, id)
	return err
}

// SetAnalysis stores the final analysis and position classification.
func (r *Repository) SetAnalysis(ctx context.Context, id uuid.UUID, analysis *models.MemoAnalysis) error {
	raw, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	const q = `UPDATE memos
		SET status = 'analyzed', analysis = $1::jsonb, position_binary = $2, analyzed_at = NOW()
		WHERE id = $3`
	_, err = r.pool.Exec(ctx, q, raw, analysis.Position, id)
	return err
}

// AssignmentPrompt returns the assignment prompt text for a memo's assignment.
func (r *Repository) AssignmentPrompt(ctx context.Context, assignmentID uuid.UUID) (string, error) {
	var prompt string
	err := r.pool.QueryRow(ctx, `SELECT prompt_text FROM assignments WHERE id = $1`, assignmentID).Scan(&prompt)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return prompt, err
}

func (r *Repository) scanMemo(row pgx.Row) (*models.Memo, error) {
	var (
		m   models.Memo
		raw []byte
	)
	err := row.Scan(&m.ID, &m.AssignmentID, &m.StudentID, &m.FilePath, &m.Status,
		&m.ExtractedText, &raw, &m.PositionBinary, &m.CreatedAt, &m.AnalyzedAt)
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		var analysis models.MemoAnalysis
		if err := json.Unmarshal(raw, &analysis); err == nil {
			m.Analysis = &analysis
		}
	}
	return &m, nil
}
