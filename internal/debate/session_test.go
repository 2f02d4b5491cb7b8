package debate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aura-debate/backend/internal/models"
	"github.com/aura-debate/backend/internal/moderator"
)

// fakeConn records every event written to it, decoded to a map so tests
// can assert on the wire shape.
type fakeConn struct {
	mu         sync.Mutex
	events     []map[string]any
	failWrites bool
	closed     bool
}

func (f *fakeConn) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errors.New("write failed")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	f.events = append(f.events, m)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) all() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.events...)
}

func (f *fakeConn) ofType(t string) []map[string]any {
	var out []map[string]any
	for _, e := range f.all() {
		if e["type"] == t {
			out = append(out, e)
		}
	}
	return out
}

// fakeModerator is a canned ModeratorService.
type fakeModerator struct {
	mu          sync.Mutex
	judgment    *moderator.Judgment
	judgeErr    error
	evalCalls   int
	lastSpeaker string
	promptCalls []models.Phase
	nudge       string
	nudgeCalls  int
	summary     string
}

func (f *fakeModerator) EvaluateUtterance(_ context.Context, _, speaker string, _ models.Phase, _ []models.Utterance) (*moderator.Judgment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evalCalls++
	f.lastSpeaker = speaker
	return f.judgment, f.judgeErr
}

func (f *fakeModerator) PhasePrompt(_ context.Context, phase models.Phase) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.promptCalls = append(f.promptCalls, phase)
	return "Begin " + string(phase), nil
}

func (f *fakeModerator) SilenceNudge(_ context.Context, _ models.Phase, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nudgeCalls++
	return f.nudge, nil
}

func (f *fakeModerator) PhaseSummary(_ context.Context, entries []models.Utterance) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.summary != "" {
		return f.summary, nil
	}
	return fmt.Sprintf("%d entries were argued.", len(entries)), nil
}

func (f *fakeModerator) TransitionMessage(_ context.Context, _, next models.Phase) string {
	return "When ready, we move to " + string(next) + "."
}

func (f *fakeModerator) evals() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evalCalls
}

func (f *fakeModerator) speaker() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSpeaker
}

func (f *fakeModerator) prompts() []models.Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Phase(nil), f.promptCalls...)
}

func (f *fakeModerator) nudges() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nudgeCalls
}

// persistRecorder records transcript persistence calls.
type persistRecorder struct {
	mu    sync.Mutex
	calls [][]models.Utterance
}

func (p *persistRecorder) persist(_ context.Context, _ uuid.UUID, transcript []models.Utterance) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, transcript)
	return nil
}

func (p *persistRecorder) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *persistRecorder) last() []models.Utterance {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return nil
	}
	return p.calls[len(p.calls)-1]
}

func newTestRegistry(t *testing.T, mod ModeratorService, opts Options, knownID uuid.UUID) (*Registry, *persistRecorder) {
	t.Helper()
	rec := &persistRecorder{}
	loader := func(_ context.Context, id uuid.UUID) (*models.DebateContext, error) {
		if id != knownID {
			return nil, nil
		}
		return &models.DebateContext{
			SessionID:       id,
			AssignmentTitle: "Trade Policy Debate",
			StudentAThesis:  "Free trade is beneficial",
			StudentBThesis:  "Protectionism is needed",
			StudentAName:    "Alex",
			StudentBName:    "Jordan",
		}, nil
	}
	factory := func(models.DebateContext) ModeratorService { return mod }
	return NewRegistry(loader, rec.persist, factory, opts, zap.NewNop()), rec
}

// quietOpts keeps the watchdog out of the way for handler tests.
func quietOpts() Options {
	return Options{
		SilenceThreshold:    time.Hour,
		SilencePollInterval: time.Hour,
	}
}

func TestJoinSendsSyncFirst(t *testing.T) {
	id := uuid.New()
	reg, _ := newTestRegistry(t, &fakeModerator{}, quietOpts(), id)
	conn := &fakeConn{}

	_, err := reg.Join(context.Background(), id, conn)
	require.NoError(t, err)

	events := conn.all()
	require.NotEmpty(t, events)
	assert.Equal(t, "sync", events[0]["type"])
	assert.Equal(t, "opening_a", events[0]["phase"])
	assert.GreaterOrEqual(t, events[0]["elapsed"].(float64), 0.0)
}

func TestInterimTranscriptRelayedNotStored(t *testing.T) {
	id := uuid.New()
	reg, _ := newTestRegistry(t, &fakeModerator{}, quietOpts(), id)
	c1, c2 := &fakeConn{}, &fakeConn{}
	s, err := reg.Join(context.Background(), id, c1)
	require.NoError(t, err)
	_, err = reg.Join(context.Background(), id, c2)
	require.NoError(t, err)

	s.HandleMessage(c1, inboundMessage{Type: "transcript_text", Speaker: "Alex", Text: "Free tra", IsFinal: false})

	relayed := c2.ofType("transcript")
	require.Len(t, relayed, 1)
	assert.Equal(t, "Free tra", relayed[0]["text"])
	assert.Equal(t, false, relayed[0]["is_final"])
	// The sender does not hear its own words back.
	assert.Empty(t, c1.ofType("transcript"))
	assert.Empty(t, s.snapshotTranscript())
}

func TestFinalTranscriptAppendedWithPhase(t *testing.T) {
	id := uuid.New()
	reg, _ := newTestRegistry(t, &fakeModerator{}, quietOpts(), id)
	c1 := &fakeConn{}
	s, err := reg.Join(context.Background(), id, c1)
	require.NoError(t, err)

	s.HandleMessage(c1, inboundMessage{Type: "transcript_text", Speaker: "Alex", Text: "Free trade helps.", IsFinal: true})

	transcript := s.snapshotTranscript()
	require.Len(t, transcript, 1)
	assert.Equal(t, "Alex", transcript[0].Speaker)
	assert.Equal(t, models.PhaseOpeningA, transcript[0].Phase)
	assert.False(t, transcript[0].Timestamp.IsZero())
}

func TestBlankFinalIgnored(t *testing.T) {
	id := uuid.New()
	reg, _ := newTestRegistry(t, &fakeModerator{}, quietOpts(), id)
	c1 := &fakeConn{}
	s, err := reg.Join(context.Background(), id, c1)
	require.NoError(t, err)

	s.HandleMessage(c1, inboundMessage{Type: "transcript_text", Speaker: "Alex", Text: "   ", IsFinal: true})
	assert.Empty(t, s.snapshotTranscript())
}

func TestBroadcastEvictsOnlyDeadConnection(t *testing.T) {
	id := uuid.New()
	reg, _ := newTestRegistry(t, &fakeModerator{}, quietOpts(), id)
	c1, c2, c3 := &fakeConn{}, &fakeConn{}, &fakeConn{}
	s, err := reg.Join(context.Background(), id, c1)
	require.NoError(t, err)
	_, err = reg.Join(context.Background(), id, c2)
	require.NoError(t, err)
	_, err = reg.Join(context.Background(), id, c3)
	require.NoError(t, err)

	c2.failWrites = true
	s.broadcast(addTimeEvent{Type: "add_time", Seconds: 30}, nil)

	assert.Len(t, c1.ofType("add_time"), 1)
	assert.Len(t, c3.ofType("add_time"), 1)
	assert.True(t, c2.isClosed())

	// The dead connection is gone from the set.
	s.mu.Lock()
	_, present := s.conns[c2]
	remaining := len(s.conns)
	s.mu.Unlock()
	assert.False(t, present)
	assert.Equal(t, 2, remaining)
}

func TestModerationCooldown(t *testing.T) {
	id := uuid.New()
	mod := &fakeModerator{judgment: &moderator.Judgment{
		ShouldIntervene:  true,
		InterventionType: models.InterventionQuestion,
		TargetStudent:    "A",
		Message:          "Can you cite that?",
	}}
	opts := quietOpts()
	reg, _ := newTestRegistry(t, mod, opts, id)
	c1 := &fakeConn{}
	s, err := reg.Join(context.Background(), id, c1)
	require.NoError(t, err)

	clock := time.Now()
	var clockMu sync.Mutex
	s.mu.Lock()
	s.phase = models.PhaseCrossA
	s.now = func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return clock
	}
	s.mu.Unlock()
	advance := func(d time.Duration) {
		clockMu.Lock()
		clock = clock.Add(d)
		clockMu.Unlock()
	}

	s.HandleMessage(c1, inboundMessage{Type: "transcript_text", Speaker: "Alex", Text: "Tariffs never work.", IsFinal: true})
	require.Eventually(t, func() bool { return len(c1.ofType("intervention")) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, mod.evals())
	assert.Equal(t, "Alex", mod.speaker())

	// Within the 30s crossexam cooldown: no second judgment call.
	advance(10 * time.Second)
	s.HandleMessage(c1, inboundMessage{Type: "transcript_text", Speaker: "Jordan", Text: "They worked in Korea.", IsFinal: true})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, mod.evals())
	assert.Len(t, c1.ofType("intervention"), 1)

	// Past the cooldown the gate reopens.
	advance(30 * time.Second)
	s.HandleMessage(c1, inboundMessage{Type: "transcript_text", Speaker: "Alex", Text: "Korea used tariffs first.", IsFinal: true})
	require.Eventually(t, func() bool { return mod.evals() == 2 }, time.Second, 5*time.Millisecond)
}

func TestPhaseCommandBroadcastBeforePrompt(t *testing.T) {
	id := uuid.New()
	mod := &fakeModerator{}
	reg, _ := newTestRegistry(t, mod, quietOpts(), id)
	c1, c2 := &fakeConn{}, &fakeConn{}
	s, err := reg.Join(context.Background(), id, c1)
	require.NoError(t, err)
	_, err = reg.Join(context.Background(), id, c2)
	require.NoError(t, err)

	s.HandleMessage(c1, inboundMessage{Type: "phase_command", Phase: models.PhaseOpeningB})

	require.Eventually(t, func() bool { return len(c2.ofType("intervention")) == 1 }, time.Second, 5*time.Millisecond)

	// The other client sees the phase change strictly before the AI prompt.
	var order []string
	for _, e := range c2.all() {
		if e["type"] == "phase_advance" || e["type"] == "intervention" {
			order = append(order, e["type"].(string))
		}
	}
	assert.Equal(t, []string{"phase_advance", "intervention"}, order)

	// The issuing client already knows the phase but still gets the prompt.
	assert.Empty(t, c1.ofType("phase_advance"))
	require.Eventually(t, func() bool { return len(c1.ofType("intervention")) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []models.Phase{models.PhaseOpeningB}, mod.prompts())
}

func TestPhaseCommandControlPhaseNoPrompt(t *testing.T) {
	id := uuid.New()
	mod := &fakeModerator{}
	reg, _ := newTestRegistry(t, mod, quietOpts(), id)
	c1 := &fakeConn{}
	s, err := reg.Join(context.Background(), id, c1)
	require.NoError(t, err)

	s.HandleMessage(c1, inboundMessage{Type: "phase_command", Phase: models.PhaseCompleted})
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, mod.prompts())
}

func TestRelayPhaseAdvanceNoPromptByDefault(t *testing.T) {
	id := uuid.New()
	mod := &fakeModerator{}
	reg, _ := newTestRegistry(t, mod, quietOpts(), id)
	c1, c2 := &fakeConn{}, &fakeConn{}
	s, err := reg.Join(context.Background(), id, c1)
	require.NoError(t, err)
	_, err = reg.Join(context.Background(), id, c2)
	require.NoError(t, err)

	s.HandleMessage(c1, inboundMessage{Type: "phase_advance", Phase: models.PhaseRebuttalA})

	advances := c2.ofType("phase_advance")
	require.Len(t, advances, 1)
	assert.Equal(t, "rebuttal_a", advances[0]["phase"])
	assert.Empty(t, c1.ofType("phase_advance"))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, mod.prompts())
}

func TestReadyCheckEmptyPhaseSummary(t *testing.T) {
	id := uuid.New()
	reg, _ := newTestRegistry(t, &fakeModerator{}, quietOpts(), id)
	c1 := &fakeConn{}
	s, err := reg.Join(context.Background(), id, c1)
	require.NoError(t, err)

	s.HandleMessage(c1, inboundMessage{Type: "ready_check_start", CurrentPhase: models.PhaseOpeningA, NextPhase: models.PhaseOpeningB})

	checks := c1.ofType("ready_check")
	require.Len(t, checks, 1)
	assert.Equal(t, "", checks[0]["summary"])
	assert.NotEmpty(t, checks[0]["message"])
	assert.Equal(t, "opening_b", checks[0]["next_phase"])
	assert.Equal(t, false, checks[0]["ready_a"])
	assert.Equal(t, false, checks[0]["ready_b"])
}

func TestReadyCheckSummarizesCurrentPhaseOnly(t *testing.T) {
	id := uuid.New()
	mod := &fakeModerator{}
	reg, _ := newTestRegistry(t, mod, quietOpts(), id)
	c1 := &fakeConn{}
	s, err := reg.Join(context.Background(), id, c1)
	require.NoError(t, err)

	s.mu.Lock()
	s.transcript = []models.Utterance{
		{Speaker: "Alex", Text: "Opening point", Phase: models.PhaseOpeningA},
		{Speaker: "Jordan", Text: "Cross question", Phase: models.PhaseCrossA},
		{Speaker: "Alex", Text: "Cross answer", Phase: models.PhaseCrossA},
	}
	s.mu.Unlock()

	s.HandleMessage(c1, inboundMessage{Type: "ready_check_start", CurrentPhase: models.PhaseCrossA, NextPhase: models.PhaseCrossB})

	checks := c1.ofType("ready_check")
	require.Len(t, checks, 1)
	assert.Equal(t, "2 entries were argued.", checks[0]["summary"])
}

func TestReadyProtocol(t *testing.T) {
	for _, order := range [][]string{{"A", "B"}, {"B", "A"}} {
		t.Run(order[0]+"-then-"+order[1], func(t *testing.T) {
			id := uuid.New()
			mod := &fakeModerator{}
			reg, _ := newTestRegistry(t, mod, quietOpts(), id)
			c1, c2 := &fakeConn{}, &fakeConn{}
			s, err := reg.Join(context.Background(), id, c1)
			require.NoError(t, err)
			_, err = reg.Join(context.Background(), id, c2)
			require.NoError(t, err)

			s.HandleMessage(c1, inboundMessage{Type: "ready_check_start", CurrentPhase: models.PhaseOpeningA, NextPhase: models.PhaseOpeningB})
			require.Len(t, c1.ofType("ready_check"), 1)
			require.Len(t, c2.ofType("ready_check"), 1)

			s.HandleMessage(c1, inboundMessage{Type: "ready_signal", Student: order[0]})
			// A single ready never advances the phase.
			assert.Empty(t, c1.ofType("phase_advance"))
			updates := c2.ofType("ready_update")
			require.Len(t, updates, 1)

			s.HandleMessage(c2, inboundMessage{Type: "ready_signal", Student: order[1]})

			// Exactly one phase_advance, to everyone, to the declared next phase.
			for _, c := range []*fakeConn{c1, c2} {
				advances := c.ofType("phase_advance")
				require.Len(t, advances, 1)
				assert.Equal(t, "opening_b", advances[0]["phase"])
				updates := c.ofType("ready_update")
				last := updates[len(updates)-1]
				assert.Equal(t, true, last["ready_a"])
				assert.Equal(t, true, last["ready_b"])
			}

			// Flags reset after the advance.
			s.mu.Lock()
			readyA, readyB := s.readyA, s.readyB
			phase := s.phase
			s.mu.Unlock()
			assert.False(t, readyA)
			assert.False(t, readyB)
			assert.Equal(t, models.PhaseOpeningB, phase)

			// The new phase gets its AI prompt.
			require.Eventually(t, func() bool { return len(mod.prompts()) == 1 }, time.Second, 5*time.Millisecond)
		})
	}
}

func TestPhaseCommandCancelsPendingReadyCheck(t *testing.T) {
	id := uuid.New()
	mod := &fakeModerator{}
	reg, _ := newTestRegistry(t, mod, quietOpts(), id)
	c1, c2 := &fakeConn{}, &fakeConn{}
	s, err := reg.Join(context.Background(), id, c1)
	require.NoError(t, err)
	_, err = reg.Join(context.Background(), id, c2)
	require.NoError(t, err)

	s.HandleMessage(c1, inboundMessage{Type: "ready_check_start", CurrentPhase: models.PhaseOpeningA, NextPhase: models.PhaseOpeningB})
	s.HandleMessage(c1, inboundMessage{Type: "phase_command", Phase: models.PhaseRebuttalA})

	// Ready signals after the command must not advance to the stale
	// declared phase.
	s.HandleMessage(c1, inboundMessage{Type: "ready_signal", Student: "A"})
	s.HandleMessage(c2, inboundMessage{Type: "ready_signal", Student: "B"})

	s.mu.Lock()
	phase := s.phase
	pending := s.pendingNext
	s.mu.Unlock()
	assert.Equal(t, models.PhaseRebuttalA, phase)
	assert.Equal(t, models.Phase(""), pending)

	// The only phase_advance seen by the other client is the command's.
	advances := c2.ofType("phase_advance")
	require.Len(t, advances, 1)
	assert.Equal(t, "rebuttal_a", advances[0]["phase"])
	assert.Empty(t, c1.ofType("phase_advance"))
}

func TestAddTimeRelayedExcludingSender(t *testing.T) {
	id := uuid.New()
	reg, _ := newTestRegistry(t, &fakeModerator{}, quietOpts(), id)
	c1, c2 := &fakeConn{}, &fakeConn{}
	s, err := reg.Join(context.Background(), id, c1)
	require.NoError(t, err)
	_, err = reg.Join(context.Background(), id, c2)
	require.NoError(t, err)

	s.HandleMessage(c1, inboundMessage{Type: "add_time", Seconds: 60})

	events := c2.ofType("add_time")
	require.Len(t, events, 1)
	assert.Equal(t, float64(60), events[0]["seconds"])
	assert.Empty(t, c1.ofType("add_time"))
}

func TestUnknownMessageTypeIgnored(t *testing.T) {
	id := uuid.New()
	reg, _ := newTestRegistry(t, &fakeModerator{}, quietOpts(), id)
	c1 := &fakeConn{}
	s, err := reg.Join(context.Background(), id, c1)
	require.NoError(t, err)

	end := s.HandleMessage(c1, inboundMessage{Type: "emoji_reaction"})
	assert.False(t, end)
	assert.Len(t, c1.all(), 1) // just the sync
}
