package debate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aura-debate/backend/internal/models"
)

// watch is the per-session silence watchdog. It polls on a fixed
// interval; when an active debating phase has seen no final speech for
// longer than the threshold, it asks the moderator for a nudge aimed at
// the expected speaker and broadcasts it. One nudge per silence episode;
// the flag re-arms on new speech or a phase transition. Cancelled via
// ctx at session teardown.
func (s *Session) watch(ctx context.Context) {
	ticker := time.NewTicker(s.opts.SilencePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		phase := s.phase
		silent := phase.Active() && !s.nudgeSent &&
			s.now().Sub(s.lastSpeech) >= s.opts.SilenceThreshold
		s.mu.Unlock()

		if !silent {
			continue
		}

		speaker := phase.Speaker()
		nudge, err := s.mod.SilenceNudge(ctx, phase, speaker)
		if err != nil {
			s.logger.Warn("silence nudge failed", zap.Error(err))
			continue
		}
		if nudge == "" {
			continue
		}

		s.mu.Lock()
		// Speech or a phase change while the nudge was being generated
		// makes it stale; drop it and re-arm.
		stale := s.closed || s.phase != phase || s.nudgeSent ||
			s.now().Sub(s.lastSpeech) < s.opts.SilenceThreshold
		if !stale {
			s.nudgeSent = true
		}
		s.mu.Unlock()
		if stale {
			continue
		}

		s.broadcast(interventionEvent{
			Type:             "intervention",
			InterventionType: models.InterventionNudge,
			TargetStudent:    speaker,
			Message:          nudge,
		}, nil)
	}
}
