// Package worker runs queued background jobs: memo extraction and
// analysis, and post-debate evaluation.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/aura-debate/backend/internal/evaluations"
	"github.com/aura-debate/backend/internal/memos"
	"github.com/aura-debate/backend/internal/models"
	"github.com/aura-debate/backend/pkg/queue"
	"github.com/aura-debate/backend/pkg/storage"
)

// Processor consumes jobs from the queue and dispatches per job type.
type Processor struct {
	memoRepo  *memos.Repository
	analyzer  *memos.Analyzer
	evaluator *evaluations.Service
	s3        *storage.S3
	queue     *queue.Queue
	logger    *zap.Logger
}

// NewProcessor creates the background job processor.
func NewProcessor(memoRepo *memos.Repository, analyzer *memos.Analyzer, evaluator *evaluations.Service, s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		memoRepo:  memoRepo,
		analyzer:  analyzer,
		evaluator: evaluator,
		s3:        s3,
		queue:     q,
		logger:    logger,
	}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeMemoProcess:
		var payload queue.MemoProcessPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.processMemo(ctx, payload)
	case queue.JobTypeEvaluate:
		var payload queue.EvaluatePayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.evaluate(ctx, payload)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// processMemo downloads the memo file, extracts its text and runs the
// position analysis. Bad files (wrong type, empty) are terminal: the
// memo is marked error and the job is not retried.
func (p *Processor) processMemo(ctx context.Context, payload queue.MemoProcessPayload) error {
	memo, err := p.memoRepo.GetByID(ctx, payload.MemoID)
	if err != nil {
		return fmt.Errorf("load memo: %w", err)
	}
	if memo == nil {
		p.logger.Warn("memo vanished before processing", zap.String("memo_id", payload.MemoID.String()))
		return nil
	}
	if memo.Status == models.MemoStatusAnalyzed {
		p.logger.Info("memo already analyzed", zap.String("memo_id", memo.ID.String()))
		return nil
	}

	if err := p.memoRepo.SetStatus(ctx, memo.ID, models.MemoStatusExtracting); err != nil {
		return fmt.Errorf("set status: %w", err)
	}

	body, err := p.s3.GetObjectStream(ctx, p.s3.MemosBucket(), memo.FilePath)
	if err != nil {
		return fmt.Errorf("fetch memo file: %w", err)
	}
	data, err := io.ReadAll(io.LimitReader(body, storage.MaxMemoFileSize+1))
	body.Close()
	if err != nil {
		return fmt.Errorf("read memo file: %w", err)
	}

	text, err := memos.ExtractText(path.Base(memo.FilePath), data)
	if err != nil {
		if errors.Is(err, memos.ErrUnsupportedType) || errors.Is(err, memos.ErrEmptyDocument) {
			p.logger.Warn("memo extraction rejected",
				zap.String("memo_id", memo.ID.String()), zap.Error(err))
			if stErr := p.memoRepo.SetStatus(ctx, memo.ID, models.MemoStatusError); stErr != nil {
				return fmt.Errorf("mark memo error: %w", stErr)
			}
			return nil
		}
		return fmt.Errorf("extract text: %w", err)
	}

	if err := p.memoRepo.SetExtracted(ctx, memo.ID, text); err != nil {
		return fmt.Errorf("store extracted text: %w", err)
	}

	prompt, err := p.memoRepo.AssignmentPrompt(ctx, memo.AssignmentID)
	if err != nil {
		return fmt.Errorf("load assignment prompt: %w", err)
	}

	analysis, err := p.analyzer.Analyze(ctx, memo, text, prompt)
	if err != nil {
		if stErr := p.memoRepo.SetStatus(ctx, memo.ID, models.MemoStatusError); stErr != nil {
			p.logger.Error("mark memo error failed", zap.Error(stErr), zap.String("memo_id", memo.ID.String()))
		}
		return fmt.Errorf("analyze memo: %w", err)
	}

	if err := p.memoRepo.SetAnalysis(ctx, memo.ID, analysis); err != nil {
		return fmt.Errorf("store analysis: %w", err)
	}

	p.logger.Info("memo analyzed",
		zap.String("memo_id", memo.ID.String()),
		zap.String("position", analysis.Position),
		zap.String("stance", analysis.StanceStrength),
	)
	return nil
}

// evaluate scores both participants of a finished debate session.
func (p *Processor) evaluate(ctx context.Context, payload queue.EvaluatePayload) error {
	results, err := p.evaluator.Evaluate(ctx, payload.DebateSessionID)
	if err != nil {
		if errors.Is(err, evaluations.ErrSessionNotFound) {
			p.logger.Warn("evaluation skipped, session unknown",
				zap.String("session_id", payload.DebateSessionID.String()))
			return nil
		}
		return fmt.Errorf("evaluate session: %w", err)
	}
	p.logger.Info("session evaluated",
		zap.String("session_id", payload.DebateSessionID.String()),
		zap.Int("students", len(results)),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("worker stopping")
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
