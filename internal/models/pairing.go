package models

import (
	"time"

	"github.com/google/uuid"
)

// Pairing matches two students with opposing memo positions for a debate.
type Pairing struct {
	ID           uuid.UUID `json:"id"`
	AssignmentID uuid.UUID `json:"assignment_id"`
	StudentAID   uuid.UUID `json:"student_a_id"`
	StudentBID   uuid.UUID `json:"student_b_id"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}
