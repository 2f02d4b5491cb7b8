package debate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/aura-debate/backend/internal/models"
)

// ErrSessionNotFound means the session key resolves to no stored debate.
var ErrSessionNotFound = errors.New("session not found")

// ContextLoader fetches the debate context for a session key. A nil
// context with nil error means the session does not exist.
type ContextLoader func(ctx context.Context, sessionID uuid.UUID) (*models.DebateContext, error)

// TranscriptPersister writes the full transcript for a session.
type TranscriptPersister func(ctx context.Context, sessionID uuid.UUID, transcript []models.Utterance) error

// ModeratorFactory builds the per-session moderator from its context.
type ModeratorFactory func(cx models.DebateContext) ModeratorService

// Options tune session timing and gating behavior.
type Options struct {
	CooldownOpeningClosing time.Duration
	CooldownDefault        time.Duration
	SilenceThreshold       time.Duration
	SilencePollInterval    time.Duration
	CheckpointEvery        int
	RecentHistory          int
	// PromptOnRelay generates an AI phase prompt on relayed phase_advance
	// events, not just explicit phase_command transitions.
	PromptOnRelay bool
}

func (o Options) withDefaults() Options {
	if o.CooldownOpeningClosing <= 0 {
		o.CooldownOpeningClosing = 45 * time.Second
	}
	if o.CooldownDefault <= 0 {
		o.CooldownDefault = 30 * time.Second
	}
	if o.SilenceThreshold <= 0 {
		o.SilenceThreshold = 15 * time.Second
	}
	if o.SilencePollInterval <= 0 {
		o.SilencePollInterval = 5 * time.Second
	}
	if o.CheckpointEvery <= 0 {
		o.CheckpointEvery = 5
	}
	if o.RecentHistory <= 0 {
		o.RecentHistory = 10
	}
	return o
}

// Registry owns all live sessions in this process. Sessions are created
// lazily on first join and torn down when the last connection leaves.
type Registry struct {
	loadContext  ContextLoader
	persist      TranscriptPersister
	newModerator ModeratorFactory
	opts         Options
	logger       *zap.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	group    singleflight.Group
}

// NewRegistry creates a session registry.
func NewRegistry(loader ContextLoader, persister TranscriptPersister, factory ModeratorFactory, opts Options, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		loadContext:  loader,
		persist:      persister,
		newModerator: factory,
		opts:         opts.withDefaults(),
		logger:       logger,
		sessions:     make(map[uuid.UUID]*Session),
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Join attaches a connection to the session for sessionID, creating the
// session on first join. The connection immediately receives a sync
// event with the current phase and elapsed seconds. Returns
// ErrSessionNotFound when the key resolves to no stored debate.
func (r *Registry) Join(ctx context.Context, sessionID uuid.UUID, conn Conn) (*Session, error) {
	for {
		s, err := r.getOrCreate(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		// Attach under the registry lock so a concurrent teardown cannot
		// strand this connection on a removed session.
		r.mu.Lock()
		if r.sessions[sessionID] != s {
			r.mu.Unlock()
			continue
		}
		sync := s.attach(conn)
		r.mu.Unlock()

		if err := conn.WriteJSON(sync); err != nil {
			r.Leave(s, conn)
			return nil, err
		}
		return s, nil
	}
}

// getOrCreate returns the live session or constructs it. Construction is
// single-flight per key so two simultaneous first connections share one
// moderator context and one watchdog.
func (r *Registry) getOrCreate(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	r.mu.Lock()
	if s, ok := r.sessions[sessionID]; ok {
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(sessionID.String(), func() (any, error) {
		r.mu.Lock()
		if s, ok := r.sessions[sessionID]; ok {
			r.mu.Unlock()
			return s, nil
		}
		r.mu.Unlock()

		cx, err := r.loadContext(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if cx == nil {
			return nil, ErrSessionNotFound
		}

		s := newSession(sessionID, *cx, r.newModerator(*cx), r, r.opts, r.logger)
		watchCtx, cancel := context.WithCancel(context.Background())
		s.cancelWatchdog = cancel
		go s.watch(watchCtx)

		r.mu.Lock()
		r.sessions[sessionID] = s
		r.mu.Unlock()
		r.logger.Info("session created", zap.String("session_id", sessionID.String()))
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Leave detaches a connection. When the connection set becomes empty the
// session is removed, its transcript is flushed exactly once and the
// watchdog is cancelled.
func (r *Registry) Leave(s *Session, conn Conn) {
	empty := s.detach(conn)
	if !empty {
		return
	}

	r.mu.Lock()
	// Re-check under the registry lock: a concurrent Join may have
	// attached since detach, and a concurrent Leave may have already
	// torn the session down.
	if r.sessions[s.id] != s || !s.isEmpty() {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, s.id)
	s.markClosed()
	r.mu.Unlock()

	s.cancelWatchdog()
	s.flush()
	r.logger.Info("session torn down", zap.String("session_id", s.id.String()))
}
