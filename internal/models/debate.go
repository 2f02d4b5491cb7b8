package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Phase is a stage of the structured debate. Debating phases are ordered and
// split per participant; waiting/consent/completed are control states.
type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhaseConsent   Phase = "consent"
	PhaseOpeningA  Phase = "opening_a"
	PhaseOpeningB  Phase = "opening_b"
	PhaseCrossA    Phase = "crossexam_a"
	PhaseCrossB    Phase = "crossexam_b"
	PhaseRebuttalA Phase = "rebuttal_a"
	PhaseRebuttalB Phase = "rebuttal_b"
	PhaseClosingA  Phase = "closing_a"
	PhaseClosingB  Phase = "closing_b"
	PhaseCompleted Phase = "completed"
)

// DebatePhases is the canonical phase order for a full debate.
var DebatePhases = []Phase{
	PhaseOpeningA, PhaseOpeningB,
	PhaseCrossA, PhaseCrossB,
	PhaseRebuttalA, PhaseRebuttalB,
	PhaseClosingA, PhaseClosingB,
}

// Active reports whether p is a debating phase (speech is expected and the
// silence watchdog and AI phase prompts apply).
func (p Phase) Active() bool {
	switch p {
	case PhaseWaiting, PhaseConsent, PhaseCompleted, "":
		return false
	}
	return true
}

// Speaker returns the participant expected to be speaking in p:
// "A" for *_a phases, "B" for *_b phases, "both" otherwise.
func (p Phase) Speaker() string {
	switch {
	case strings.HasSuffix(string(p), "_a"):
		return "A"
	case strings.HasSuffix(string(p), "_b"):
		return "B"
	}
	return "both"
}

// Utterance is a single finalized transcript entry. Append-only; immutable
// once written.
type Utterance struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Phase     Phase     `json:"phase"`
}

// DebateContext holds the debate-specific facts a session's moderator needs.
// Built once from the store at session creation and immutable afterwards.
type DebateContext struct {
	SessionID        uuid.UUID
	PairingID        uuid.UUID
	AssignmentID     uuid.UUID
	AssignmentTitle  string
	AssignmentPrompt string
	StudentAThesis   string
	StudentBThesis   string
	StudentAName     string
	StudentBName     string
}

// Intervention types produced by the moderator.
const (
	InterventionNudge       = "nudge"
	InterventionPhasePrompt = "phase_prompt"
	InterventionQuestion    = "question"
	InterventionFlag        = "flag"
	InterventionRedirect    = "redirect"
	InterventionFactCheck   = "fact_check"
	InterventionNone        = "none"
)
