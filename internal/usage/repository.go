package usage

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-debate/backend/internal/models"
)

// Repository persists usage records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a usage repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert writes one usage record.
func (r *Repository) Insert(ctx context.Context, rec models.UsageRecord) error {
	const q = `INSERT INTO ai_usage (service, model, call_type, input_tokens, output_tokens, duration_seconds, estimated_cost, assignment_id, pairing_id, memo_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.pool.Exec(ctx, q,
		rec.Service, rec.Model, rec.CallType,
		rec.InputTokens, rec.OutputTokens, rec.DurationSeconds, rec.EstimatedCost,
		rec.AssignmentID, rec.PairingID, rec.MemoID, rec.CreatedAt,
	)
	return err
}

// TotalsByService aggregates estimated cost per service.
func (r *Repository) TotalsByService(ctx context.Context) (map[string]float64, error) {
	const q = `SELECT service, COALESCE(SUM(estimated_cost), 0) FROM ai_usage GROUP BY service`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]float64)
	for rows.Next() {
		var service string
		var cost float64
		if err := rows.Scan(&service, &cost); err != nil {
			return nil, err
		}
		totals[service] = cost
	}
	return totals, rows.Err()
}
