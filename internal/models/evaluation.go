package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Pass/fail recommendations.
const (
	PassFailPass   = "pass"
	PassFailFail   = "fail"
	PassFailReview = "review"
)

// Evaluation is a stored post-debate evaluation of one student.
type Evaluation struct {
	ID                    uuid.UUID       `json:"id"`
	DebateSessionID       uuid.UUID       `json:"debate_session_id"`
	StudentID             uuid.UUID       `json:"student_id"`
	Score                 int             `json:"score"`
	Confidence            float64         `json:"confidence"`
	EvidenceOfReadingScore int            `json:"evidence_of_reading_score"`
	OpeningClarity        int             `json:"opening_clarity"`
	RebuttalQuality       int             `json:"rebuttal_quality"`
	ReadingAccuracy       int             `json:"reading_accuracy"`
	EvidenceUse           int             `json:"evidence_use"`
	IntegrityFlags        []string        `json:"integrity_flags"`
	CriteriaScores        json.RawMessage `json:"criteria_scores,omitempty"`
	AISummary             string          `json:"ai_summary"`
	PassFail              string          `json:"pass_fail"`
	CreatedAt             time.Time       `json:"created_at"`
}
