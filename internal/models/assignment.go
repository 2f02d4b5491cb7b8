package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Assignment is a debate assignment with its prompt and grading rubric.
type Assignment struct {
	ID             uuid.UUID       `json:"id"`
	Title          string          `json:"title"`
	PromptText     string          `json:"prompt_text"`
	RubricText     string          `json:"rubric_text"`
	RubricCriteria json.RawMessage `json:"rubric_criteria,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// User is a platform participant (student or instructor).
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
