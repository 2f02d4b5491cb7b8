package usage

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-debate/backend/pkg/response"
)

// Handler exposes AI spend totals for the ops dashboard.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a usage handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// Totals handles GET /usage. Returns estimated cost per service.
func (h *Handler) Totals(c *gin.Context) {
	totals, err := h.repo.TotalsByService(c.Request.Context())
	if err != nil {
		h.logger.Error("usage totals failed", zap.Error(err))
		response.Internal(c, "failed to load usage totals")
		return
	}
	response.OK(c, gin.H{"totals_usd": totals})
}
