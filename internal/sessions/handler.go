package sessions

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-debate/backend/internal/models"
	"github.com/aura-debate/backend/pkg/response"
)

// Handler exposes debate session reads over HTTP. Live traffic goes
// over the WebSocket; these endpoints serve instructors after the fact.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a sessions handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// GetTranscript handles GET /debate-sessions/:id/transcript.
func (h *Handler) GetTranscript(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	transcript, err := h.repo.GetTranscript(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("load transcript failed", zap.Error(err), zap.String("session_id", sessionID.String()))
		response.Internal(c, "failed to load transcript")
		return
	}
	if transcript == nil {
		transcript = []models.Utterance{}
	}
	response.OK(c, gin.H{"debate_session_id": sessionID, "transcript": transcript})
}
