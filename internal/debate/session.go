// Package debate implements the live debate session coordinator: a
// per-session registry, connection fan-out, the phase state machine
// with its ready protocol, a silence watchdog and the moderation gate.
package debate

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-debate/backend/internal/models"
	"github.com/aura-debate/backend/internal/moderator"
)

// Conn is one client connection. WriteJSON must be safe for concurrent
// use; the websocket implementation serializes writes internally.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// ModeratorService is the AI collaborator a session calls out to.
// Implemented by *moderator.Moderator; faked in tests.
type ModeratorService interface {
	EvaluateUtterance(ctx context.Context, utterance, speaker string, phase models.Phase, recent []models.Utterance) (*moderator.Judgment, error)
	PhasePrompt(ctx context.Context, phase models.Phase) (string, error)
	SilenceNudge(ctx context.Context, phase models.Phase, speaker string) (string, error)
	PhaseSummary(ctx context.Context, entries []models.Utterance) (string, error)
	TransitionMessage(ctx context.Context, current, next models.Phase) string
}

// Session is one live debate. All mutable state is guarded by mu; the
// moderation gate, watchdog and checkpointing update state under the
// lock and perform external calls outside it.
type Session struct {
	id     uuid.UUID
	cx     models.DebateContext
	mod    ModeratorService
	reg    *Registry
	opts   Options
	logger *zap.Logger

	cancelWatchdog context.CancelFunc

	mu                 sync.Mutex
	conns              map[Conn]struct{}
	transcript         []models.Utterance
	phase              models.Phase
	phaseStartedAt     time.Time
	lastSpeech         time.Time
	lastIntervention   time.Time
	nudgeSent          bool
	moderationInFlight bool
	readyA, readyB     bool
	pendingNext        models.Phase
	closed             bool

	now func() time.Time
}

func newSession(id uuid.UUID, cx models.DebateContext, mod ModeratorService, reg *Registry, opts Options, logger *zap.Logger) *Session {
	s := &Session{
		id:     id,
		cx:     cx,
		mod:    mod,
		reg:    reg,
		opts:   opts,
		logger: logger.With(zap.String("session_id", id.String())),
		conns:  make(map[Conn]struct{}),
		phase:  models.PhaseOpeningA,
		now:    time.Now,
	}
	now := s.now()
	s.phaseStartedAt = now
	s.lastSpeech = now
	return s
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// attach adds a connection and returns the sync event the joiner must
// receive (current phase plus elapsed seconds, rounded).
func (s *Session) attach(conn Conn) syncEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn] = struct{}{}
	elapsed := int(math.Round(s.now().Sub(s.phaseStartedAt).Seconds()))
	return syncEvent{Type: "sync", Phase: s.phase, Elapsed: elapsed}
}

// detach removes a connection and reports whether the set is now empty.
func (s *Session) detach(conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
	return len(s.conns) == 0
}

func (s *Session) isEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns) == 0
}

func (s *Session) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) snapshotTranscript() []models.Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Utterance(nil), s.transcript...)
}

// broadcast sends event to every connection except exclude. A failed
// send evicts that connection from the set; delivery to the remaining
// connections is unaffected.
func (s *Session) broadcast(event any, exclude Conn) {
	s.mu.Lock()
	targets := make([]Conn, 0, len(s.conns))
	for c := range s.conns {
		if c != exclude {
			targets = append(targets, c)
		}
	}
	s.mu.Unlock()

	var dead []Conn
	for _, c := range targets {
		if err := c.WriteJSON(event); err != nil {
			dead = append(dead, c)
		}
	}
	if len(dead) == 0 {
		return
	}
	s.mu.Lock()
	for _, c := range dead {
		delete(s.conns, c)
	}
	s.mu.Unlock()
	for _, c := range dead {
		c.Close()
	}
	s.logger.Warn("evicted dead connections", zap.Int("count", len(dead)))
}

// HandleMessage dispatches one inbound client event. Returns true when
// the connection's read loop should stop (the end event).
func (s *Session) HandleMessage(conn Conn, msg inboundMessage) bool {
	switch msg.Type {
	case "transcript_text":
		s.handleTranscript(conn, msg.Speaker, msg.Text, msg.IsFinal)
	case "phase_command":
		s.handlePhaseCommand(conn, msg.Phase)
	case "phase_advance":
		s.handlePhaseAdvance(conn, msg.Phase)
	case "ready_check_start":
		s.handleReadyCheckStart(msg.CurrentPhase, msg.NextPhase)
	case "ready_signal":
		s.handleReadySignal(msg.Student)
	case "add_time":
		s.broadcast(addTimeEvent{Type: "add_time", Seconds: msg.Seconds}, conn)
	case "end":
		s.flush()
		return true
	default:
		// Unknown types are ignored for forward compatibility.
	}
	return false
}

// handleTranscript relays a transcript fragment to the other clients,
// and for final non-blank text appends it to the transcript, runs the
// moderation gate and checkpoints every Nth entry.
func (s *Session) handleTranscript(conn Conn, speaker, text string, isFinal bool) {
	now := s.now()
	s.broadcast(transcriptEvent{
		Type:      "transcript",
		Speaker:   speaker,
		Text:      text,
		IsFinal:   isFinal,
		Timestamp: float64(now.UnixMilli()) / 1000,
	}, conn)

	if !isFinal || strings.TrimSpace(text) == "" {
		return
	}

	s.mu.Lock()
	s.transcript = append(s.transcript, models.Utterance{
		Speaker:   speaker,
		Text:      text,
		Timestamp: now,
		Phase:     s.phase,
	})
	s.lastSpeech = now
	s.nudgeSent = false
	entries := len(s.transcript)
	phase := s.phase

	cooldown := s.opts.CooldownDefault
	if strings.Contains(string(phase), "opening") || strings.Contains(string(phase), "closing") {
		cooldown = s.opts.CooldownOpeningClosing
	}
	moderate := !s.moderationInFlight && now.Sub(s.lastIntervention) >= cooldown
	var recent []models.Utterance
	if moderate {
		s.moderationInFlight = true
		start := entries - s.opts.RecentHistory
		if start < 0 {
			start = 0
		}
		recent = append([]models.Utterance(nil), s.transcript[start:]...)
	}
	s.mu.Unlock()

	if moderate {
		go s.moderate(text, speaker, phase, recent, now)
	}
	if entries%s.opts.CheckpointEvery == 0 {
		go s.checkpoint()
	}
}

// moderate runs one moderation judgment. Failures and no-intervene
// results are silent; an intervene result stamps the cooldown and is
// broadcast to everyone.
func (s *Session) moderate(text, speaker string, phase models.Phase, recent []models.Utterance, at time.Time) {
	judgment, err := s.mod.EvaluateUtterance(context.Background(), text, speaker, phase, recent)

	s.mu.Lock()
	s.moderationInFlight = false
	intervene := err == nil && judgment != nil && judgment.ShouldIntervene && !s.closed
	if intervene {
		s.lastIntervention = at
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("moderation call failed", zap.Error(err))
		return
	}
	if !intervene {
		return
	}
	kind := judgment.InterventionType
	if kind == "" {
		kind = models.InterventionQuestion
	}
	target := judgment.TargetStudent
	if target == "" {
		target = "both"
	}
	s.broadcast(interventionEvent{
		Type:             "intervention",
		InterventionType: kind,
		TargetStudent:    target,
		Message:          judgment.Message,
	}, nil)
}

// handlePhaseCommand sets the phase directly. The issuing client already
// runs its own timer, so phase_advance goes to the others only.
func (s *Session) handlePhaseCommand(conn Conn, newPhase models.Phase) {
	now := s.now()
	s.mu.Lock()
	if newPhase == "" {
		newPhase = s.phase
	}
	changed := newPhase != s.phase
	s.phase = newPhase
	s.phaseStartedAt = now
	s.lastSpeech = now
	s.nudgeSent = false
	// An explicit command supersedes any ready check in progress.
	s.readyA, s.readyB = false, false
	s.pendingNext = ""
	s.mu.Unlock()

	if changed {
		s.broadcast(phaseAdvanceEvent{Type: "phase_advance", Phase: newPhase}, conn)
	}
	if newPhase.Active() {
		go s.announcePhase(newPhase)
	}
}

// handlePhaseAdvance is the relay variant: bookkeeping plus fan-out to
// the other clients. No AI prompt unless explicitly enabled.
func (s *Session) handlePhaseAdvance(conn Conn, newPhase models.Phase) {
	now := s.now()
	s.mu.Lock()
	if newPhase == "" {
		newPhase = s.phase
	}
	s.phase = newPhase
	s.phaseStartedAt = now
	s.lastSpeech = now
	s.nudgeSent = false
	s.mu.Unlock()

	s.broadcast(phaseAdvanceEvent{Type: "phase_advance", Phase: newPhase}, conn)

	if s.opts.PromptOnRelay && newPhase.Active() {
		go s.announcePhase(newPhase)
	}
}

// announcePhase generates the AI phase-opening prompt and broadcasts it
// as a phase_prompt intervention. Never blocks the transition broadcast.
func (s *Session) announcePhase(phase models.Phase) {
	text, err := s.mod.PhasePrompt(context.Background(), phase)
	if err != nil {
		s.logger.Warn("phase prompt failed", zap.Error(err), zap.String("phase", string(phase)))
		return
	}
	if text == "" || s.isClosed() {
		return
	}
	s.broadcast(interventionEvent{
		Type:             "intervention",
		InterventionType: models.InterventionPhasePrompt,
		TargetStudent:    "both",
		Message:          text,
	}, nil)
}

// handleReadyCheckStart resets the ready flags and broadcasts a
// ready_check with an AI summary of the finished phase and a transition
// message. Runs inline in the read loop so the ready_check reaches
// clients before any later event from the same sender.
func (s *Session) handleReadyCheckStart(current, next models.Phase) {
	s.mu.Lock()
	s.readyA, s.readyB = false, false
	s.pendingNext = next
	var phaseEntries []models.Utterance
	for _, u := range s.transcript {
		if u.Phase == current {
			phaseEntries = append(phaseEntries, u)
		}
	}
	s.mu.Unlock()

	summary, err := s.mod.PhaseSummary(context.Background(), phaseEntries)
	if err != nil {
		s.logger.Warn("phase summary failed", zap.Error(err))
		summary = ""
	}
	message := s.mod.TransitionMessage(context.Background(), current, next)

	s.broadcast(readyCheckEvent{
		Type:      "ready_check",
		Message:   message,
		Summary:   summary,
		NextPhase: next,
		ReadyA:    false,
		ReadyB:    false,
	}, nil)
}

// handleReadySignal records one participant's ready flag. When both are
// ready the pending phase is entered and announced to everyone.
func (s *Session) handleReadySignal(student string) {
	now := s.now()
	s.mu.Lock()
	switch student {
	case "A":
		s.readyA = true
	case "B":
		s.readyB = true
	}
	readyA, readyB := s.readyA, s.readyB
	advance := readyA && readyB && s.pendingNext != ""
	var next models.Phase
	if advance {
		next = s.pendingNext
		s.phase = next
		s.phaseStartedAt = now
		s.lastSpeech = now
		s.nudgeSent = false
		s.readyA, s.readyB = false, false
		s.pendingNext = ""
	}
	s.mu.Unlock()

	s.broadcast(readyUpdateEvent{Type: "ready_update", ReadyA: readyA, ReadyB: readyB}, nil)

	if !advance {
		return
	}
	s.broadcast(phaseAdvanceEvent{Type: "phase_advance", Phase: next}, nil)
	if next.Active() {
		go s.announcePhase(next)
	}
}

// flush persists the full transcript. Best effort; failures are logged.
func (s *Session) flush() {
	if err := s.reg.persist(context.Background(), s.id, s.snapshotTranscript()); err != nil {
		s.logger.Error("transcript flush failed", zap.Error(err))
	}
}

func (s *Session) checkpoint() {
	if err := s.reg.persist(context.Background(), s.id, s.snapshotTranscript()); err != nil {
		s.logger.Error("transcript checkpoint failed", zap.Error(err))
	}
}
