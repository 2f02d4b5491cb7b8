package debate

import "github.com/aura-debate/backend/internal/models"

// inboundMessage is the superset of all client event payloads; the Type
// tag selects which fields are meaningful. Unknown types are ignored.
type inboundMessage struct {
	Type         string       `json:"type"`
	Speaker      string       `json:"speaker,omitempty"`
	Text         string       `json:"text,omitempty"`
	IsFinal      bool         `json:"is_final,omitempty"`
	Phase        models.Phase `json:"phase,omitempty"`
	CurrentPhase models.Phase `json:"current_phase,omitempty"`
	NextPhase    models.Phase `json:"next_phase,omitempty"`
	Student      string       `json:"student,omitempty"`
	Seconds      int          `json:"seconds,omitempty"`
}

type syncEvent struct {
	Type    string       `json:"type"`
	Phase   models.Phase `json:"phase"`
	Elapsed int          `json:"elapsed"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type transcriptEvent struct {
	Type      string  `json:"type"`
	Speaker   string  `json:"speaker"`
	Text      string  `json:"text"`
	IsFinal   bool    `json:"is_final"`
	Timestamp float64 `json:"timestamp"`
}

type interventionEvent struct {
	Type             string `json:"type"`
	InterventionType string `json:"intervention_type"`
	TargetStudent    string `json:"target_student"`
	Message          string `json:"message"`
}

type phaseAdvanceEvent struct {
	Type  string       `json:"type"`
	Phase models.Phase `json:"phase"`
}

type readyCheckEvent struct {
	Type      string       `json:"type"`
	Message   string       `json:"message"`
	Summary   string       `json:"summary"`
	NextPhase models.Phase `json:"next_phase"`
	ReadyA    bool         `json:"ready_a"`
	ReadyB    bool         `json:"ready_b"`
}

type readyUpdateEvent struct {
	Type   string `json:"type"`
	ReadyA bool   `json:"ready_a"`
	ReadyB bool   `json:"ready_b"`
}

type addTimeEvent struct {
	Type    string `json:"type"`
	Seconds int    `json:"seconds"`
}
