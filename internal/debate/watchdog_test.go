package debate

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-debate/backend/internal/models"
)

func watchdogOpts() Options {
	return Options{
		SilencePollInterval: 5 * time.Millisecond,
		SilenceThreshold:    25 * time.Millisecond,
	}
}

func TestWatchdogNudgesSilentSpeakerOnce(t *testing.T) {
	id := uuid.New()
	mod := &fakeModerator{nudge: "Alex, what about your GDP argument?"}
	reg, _ := newTestRegistry(t, mod, watchdogOpts(), id)
	c1 := &fakeConn{}
	_, err := reg.Join(context.Background(), id, c1)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(c1.ofType("intervention")) == 1
	}, time.Second, 5*time.Millisecond)

	nudges := c1.ofType("intervention")
	assert.Equal(t, "nudge", nudges[0]["intervention_type"])
	// opening_a means participant A is expected to speak.
	assert.Equal(t, "A", nudges[0]["target_student"])
	assert.NotEmpty(t, nudges[0]["message"])

	// One nudge per silence episode, no repeats on later polls.
	time.Sleep(60 * time.Millisecond)
	assert.Len(t, c1.ofType("intervention"), 1)
	assert.Equal(t, 1, mod.nudges())
}

func TestWatchdogRearmsOnSpeech(t *testing.T) {
	id := uuid.New()
	mod := &fakeModerator{nudge: "Keep going!"}
	reg, _ := newTestRegistry(t, mod, watchdogOpts(), id)
	c1 := &fakeConn{}
	s, err := reg.Join(context.Background(), id, c1)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return mod.nudges() == 1 }, time.Second, 5*time.Millisecond)

	// Speech clears the flag; renewed silence earns a second nudge.
	s.HandleMessage(c1, inboundMessage{Type: "transcript_text", Speaker: "Alex", Text: "Here is my point.", IsFinal: true})
	require.Eventually(t, func() bool { return mod.nudges() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestWatchdogSuppressedInControlPhases(t *testing.T) {
	id := uuid.New()
	mod := &fakeModerator{nudge: "Hello?"}
	reg, _ := newTestRegistry(t, mod, watchdogOpts(), id)
	c1 := &fakeConn{}
	s, err := reg.Join(context.Background(), id, c1)
	require.NoError(t, err)

	s.HandleMessage(c1, inboundMessage{Type: "phase_command", Phase: models.PhaseWaiting})
	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, mod.nudges())
	assert.Empty(t, c1.ofType("intervention"))
}

func TestWatchdogCancelledOnTeardown(t *testing.T) {
	id := uuid.New()
	mod := &fakeModerator{nudge: "Anyone there?"}
	reg, _ := newTestRegistry(t, mod, watchdogOpts(), id)
	c1 := &fakeConn{}
	s, err := reg.Join(context.Background(), id, c1)
	require.NoError(t, err)

	reg.Leave(s, c1)
	assert.Zero(t, reg.Len())

	baseline := mod.nudges()
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, baseline, mod.nudges())
}
