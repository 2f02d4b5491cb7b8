package memos

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-debate/backend/internal/models"
	"github.com/aura-debate/backend/pkg/queue"
	"github.com/aura-debate/backend/pkg/response"
	"github.com/aura-debate/backend/pkg/storage"
)

// Handler handles memo HTTP endpoints.
type Handler struct {
	repo   *Repository
	s3     *storage.S3
	queue  *queue.Queue
	logger *zap.Logger
}

// NewHandler creates a memos handler.
func NewHandler(repo *Repository, s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, s3: s3, queue: q, logger: logger}
}

// Upload handles POST /assignments/:id/memos. Multipart upload: stores
// the file in S3, records the memo and enqueues extraction + analysis.
func (h *Handler) Upload(c *gin.Context) {
	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid assignment id")
		return
	}
	studentID, err := uuid.Parse(c.PostForm("student_id"))
	if err != nil {
		response.BadRequest(c, "invalid student_id")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	if fileHeader.Size > storage.MaxMemoFileSize {
		response.BadRequest(c, "file exceeds 10MB limit")
		return
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !storage.ValidateMemoFileType(contentType, fileHeader.Filename) {
		response.UnprocessableEntity(c, "unsupported file type: upload .pdf, .docx, .txt or .md")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Internal(c, "failed to read upload")
		return
	}
	defer file.Close()

	memo := &models.Memo{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		FilePath:     storage.MemoKey(assignmentID.String(), uuid.New().String(), fileHeader.Filename),
	}

	if _, err := h.s3.Upload(c.Request.Context(), h.s3.MemosBucket(), memo.FilePath,
		storage.ContentTypeForFilename(fileHeader.Filename), file, fileHeader.Size); err != nil {
		h.logger.Error("memo upload to S3 failed", zap.Error(err))
		response.Internal(c, "failed to store file")
		return
	}

	if err := h.repo.Create(c.Request.Context(), memo); err != nil {
		h.logger.Error("memo insert failed", zap.Error(err))
		response.Internal(c, "failed to record memo")
		return
	}

	if err := h.queue.EnqueueMemoProcess(c.Request.Context(), queue.MemoProcessPayload{MemoID: memo.ID}); err != nil {
		h.logger.Error("memo job enqueue failed", zap.Error(err), zap.String("memo_id", memo.ID.String()))
		response.ServiceUnavailable(c, "processing queue unavailable")
		return
	}

	response.Accepted(c, memo)
}

// ListByAssignment handles GET /assignments/:id/memos.
func (h *Handler) ListByAssignment(c *gin.Context) {
	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid assignment id")
		return
	}
	list, err := h.repo.ListByAssignment(c.Request.Context(), assignmentID)
	if err != nil {
		h.logger.Error("list memos failed", zap.Error(err))
		response.Internal(c, "failed to list memos")
		return
	}
	response.OK(c, list)
}

// Get handles GET /memos/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid memo id")
		return
	}
	memo, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get memo failed", zap.Error(err))
		response.Internal(c, "failed to load memo")
		return
	}
	if memo == nil {
		response.NotFound(c, "memo not found")
		return
	}
	response.OK(c, memo)
}

// DownloadURL handles GET /memos/:id/download-url with a presigned GET.
func (h *Handler) DownloadURL(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid memo id")
		return
	}
	memo, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil || memo == nil {
		response.NotFound(c, "memo not found")
		return
	}
	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), h.s3.MemosBucket(), memo.FilePath, h.s3.PresignExpire())
	if err != nil {
		h.logger.Error("presign memo download failed", zap.Error(err))
		response.Internal(c, "failed to generate download url")
		return
	}
	response.OK(c, gin.H{"url": url})
}
