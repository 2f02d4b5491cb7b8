package evaluations

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-debate/backend/pkg/queue"
	"github.com/aura-debate/backend/pkg/response"
)

// Handler handles evaluation HTTP endpoints. Scoring is slow (several
// LLM calls per student) so Run only enqueues; the worker does the rest.
type Handler struct {
	repo   *Repository
	queue  *queue.Queue
	logger *zap.Logger
}

// NewHandler creates an evaluations handler.
func NewHandler(repo *Repository, q *queue.Queue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, queue: q, logger: logger}
}

// Run handles POST /debate-sessions/:id/evaluate with 202 Accepted.
func (h *Handler) Run(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	detail, err := h.repo.LoadSession(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("load session failed", zap.Error(err))
		response.Internal(c, "failed to load session")
		return
	}
	if detail == nil {
		response.NotFound(c, "debate session not found")
		return
	}

	if err := h.queue.EnqueueEvaluate(c.Request.Context(), queue.EvaluatePayload{DebateSessionID: sessionID}); err != nil {
		h.logger.Error("evaluate enqueue failed", zap.Error(err), zap.String("session_id", sessionID.String()))
		response.ServiceUnavailable(c, "evaluation queue unavailable")
		return
	}
	response.Accepted(c, gin.H{"debate_session_id": sessionID, "status": "queued"})
}

// ListBySession handles GET /debate-sessions/:id/evaluations.
func (h *Handler) ListBySession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	list, err := h.repo.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("list evaluations failed", zap.Error(err))
		response.Internal(c, "failed to list evaluations")
		return
	}
	response.OK(c, list)
}
