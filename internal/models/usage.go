package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord is one logged AI API call with its estimated cost.
type UsageRecord struct {
	Service         string     `json:"service"` // anthropic | deepgram
	Model           string     `json:"model,omitempty"`
	CallType        string     `json:"call_type"` // moderation, phase_prompt, memo_analysis, ...
	InputTokens     int        `json:"input_tokens,omitempty"`
	OutputTokens    int        `json:"output_tokens,omitempty"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
	EstimatedCost   float64    `json:"estimated_cost"`
	AssignmentID    *uuid.UUID `json:"assignment_id,omitempty"`
	PairingID       *uuid.UUID `json:"pairing_id,omitempty"`
	MemoID          *uuid.UUID `json:"memo_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}
