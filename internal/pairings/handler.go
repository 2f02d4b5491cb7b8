package pairings

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-debate/backend/internal/memos"
	"github.com/aura-debate/backend/internal/models"
	"github.com/aura-debate/backend/internal/sessions"
	"github.com/aura-debate/backend/pkg/response"
)

// Handler handles pairing HTTP endpoints.
type Handler struct {
	repo        *Repository
	memoRepo    *memos.Repository
	sessionRepo *sessions.Repository
	logger      *zap.Logger
}

// NewHandler creates a pairings handler.
func NewHandler(repo *Repository, memoRepo *memos.Repository, sessionRepo *sessions.Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, memoRepo: memoRepo, sessionRepo: sessionRepo, logger: logger}
}

type pairResponse struct {
	Pairings []models.Pairing `json:"pairings"`
	Unpaired []uuid.UUID      `json:"unpaired"`
}

// Pair handles POST /assignments/:id/pair: matches analyzed memos into
// opposing pairs, stores the pairings and opens a debate session for each.
// Re-pairing replaces earlier pairings for the assignment.
func (h *Handler) Pair(c *gin.Context) {
	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid assignment id")
		return
	}

	analyses, err := h.memoRepo.AnalyzedByAssignment(c.Request.Context(), assignmentID)
	if err != nil {
		h.logger.Error("load analyzed memos failed", zap.Error(err))
		response.Internal(c, "failed to load memos")
		return
	}

	candidates := make([]Candidate, 0, len(analyses))
	for studentID, analysis := range analyses {
		candidates = append(candidates, Candidate{
			StudentID: studentID,
			Position:  analysis.Position,
			Strength:  analysis.StanceStrength,
			KeyClaims: analysis.KeyClaims,
		})
	}
	result := MatchOpposing(candidates)

	if err := h.repo.DeleteByAssignment(c.Request.Context(), assignmentID); err != nil {
		h.logger.Error("clear pairings failed", zap.Error(err))
		response.Internal(c, "failed to reset pairings")
		return
	}

	stored := make([]models.Pairing, 0, len(result.Pairs))
	for _, pair := range result.Pairs {
		p := models.Pairing{
			AssignmentID: assignmentID,
			StudentAID:   pair.StudentAID,
			StudentBID:   pair.StudentBID,
			Reason:       pair.Reason,
		}
		if err := h.repo.Create(c.Request.Context(), &p); err != nil {
			h.logger.Error("store pairing failed", zap.Error(err))
			response.Internal(c, "failed to store pairings")
			return
		}
		if _, err := h.sessionRepo.Create(c.Request.Context(), p.ID); err != nil {
			h.logger.Error("create debate session failed", zap.Error(err), zap.String("pairing_id", p.ID.String()))
			response.Internal(c, "failed to create debate session")
			return
		}
		stored = append(stored, p)
	}

	h.logger.Info("assignment paired",
		zap.String("assignment_id", assignmentID.String()),
		zap.Int("pairs", len(stored)),
		zap.Int("unpaired", len(result.Unpaired)),
	)
	response.OK(c, pairResponse{Pairings: stored, Unpaired: result.Unpaired})
}

// ListByAssignment handles GET /assignments/:id/pairings.
func (h *Handler) ListByAssignment(c *gin.Context) {
	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid assignment id")
		return
	}
	list, err := h.repo.ListByAssignment(c.Request.Context(), assignmentID)
	if err != nil {
		h.logger.Error("list pairings failed", zap.Error(err))
		response.Internal(c, "failed to list pairings")
		return
	}
	response.OK(c, list)
}
