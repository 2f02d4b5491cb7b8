package models

import (
	"time"

	"github.com/google/uuid"
)

// Memo processing statuses.
const (
	MemoStatusUploaded   = "uploaded"
	MemoStatusExtracting = "extracting"
	MemoStatusAnalyzing  = "analyzing"
	MemoStatusAnalyzed   = "analyzed"
	MemoStatusError      = "error"
)

// Memo position classifications used for pairing.
const (
	PositionNetPositive = "net_positive"
	PositionNetNegative = "net_negative"
)

// Memo is an uploaded student memo and the state of its processing pipeline.
type Memo struct {
	ID             uuid.UUID     `json:"id"`
	AssignmentID   uuid.UUID     `json:"assignment_id"`
	StudentID      uuid.UUID     `json:"student_id"`
	FilePath       string        `json:"file_path"` // S3 object key
	Status         string        `json:"status"`
	ExtractedText  string        `json:"extracted_text,omitempty"`
	Analysis       *MemoAnalysis `json:"analysis,omitempty"`
	PositionBinary string        `json:"position_binary,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	AnalyzedAt     *time.Time    `json:"analyzed_at,omitempty"`
}

// MemoAnalysis is the structured LLM analysis of a memo.
type MemoAnalysis struct {
	Position       string     `json:"position"`
	Thesis         string     `json:"thesis"`
	KeyClaims      []string   `json:"key_claims"`
	Citations      []Citation `json:"citations"`
	StanceStrength string     `json:"stance_strength"` // strong | moderate | weak
	Reasoning      string     `json:"reasoning,omitempty"`
}

// Citation records how a memo used an assigned reading.
type Citation struct {
	Reading string `json:"reading"`
	HowUsed string `json:"how_used"`
}
