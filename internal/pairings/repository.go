package pairings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-debate/backend/internal/models"
)

// Repository handles pairing persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a pairings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a pairing.
func (r *Repository) Create(ctx context.Context, p *models.Pairing) error {
	const q = `INSERT INTO pairings (assignment_id, student_a_id, student_b_id, reason)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, p.AssignmentID, p.StudentAID, p.StudentBID, p.Reason).
		Scan(&p.ID, &p.CreatedAt)
}

// GetByID returns a pairing, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Pairing, error) {
	const q = `SELECT id, assignment_id, student_a_id, student_b_id, reason, created_at
		FROM pairings WHERE id = $1`
	var p models.Pairing
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&p.ID, &p.AssignmentID, &p.StudentAID, &p.StudentBID, &p.Reason, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByAssignment returns all pairings for an assignment.
func (r *Repository) ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]models.Pairing, error) {
	const q = `SELECT id, assignment_id, student_a_id, student_b_id, reason, created_at
		FROM pairings WHERE assignment_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Pairing
	for rows.Next() {
		var p models.Pairing
		if err := rows.Scan(&p.ID, &p.AssignmentID, &p.StudentAID, &p.StudentBID, &p.Reason, &p.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// DeleteByAssignment clears earlier pairings before a re-pair.
func (r *Repository) DeleteByAssignment(ctx context.Context, assignmentID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM pairings WHERE assignment_id = $1`, assignmentID)
	return err
}
