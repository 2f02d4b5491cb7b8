// Package main runs the background worker: memo processing and debate evaluation.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-debate/backend/config"
	"github.com/aura-debate/backend/internal/evaluations"
	"github.com/aura-debate/backend/internal/memos"
	"github.com/aura-debate/backend/internal/usage"
	"github.com/aura-debate/backend/internal/worker"
	"github.com/aura-debate/backend/pkg/database"
	"github.com/aura-debate/backend/pkg/llm"
	"github.com/aura-debate/backend/pkg/queue"
	"github.com/aura-debate/backend/pkg/redis"
	"github.com/aura-debate/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Cfg := storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		MemosBucket:          cfg.AWS.MemosBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}
	s3Client, err := storage.NewS3(ctx, s3Cfg, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	var llmOpts []llm.Option
	if cfg.Anthropic.BaseURL != "" {
		llmOpts = append(llmOpts, llm.WithBaseURL(cfg.Anthropic.BaseURL))
	}
	llmClient := llm.NewClient(cfg.Anthropic.APIKey, llmOpts...)

	usageRepo := usage.NewRepository(pool)
	usageLog := usage.NewLogger(usageRepo, logger)
	defer usageLog.Close()

	memoRepo := memos.NewRepository(pool)
	analyzer := memos.NewAnalyzer(llmClient, usageLog, cfg.Anthropic.AnalysisModel, logger)

	evalRepo := evaluations.NewRepository(pool)
	scorer := evaluations.NewScorer(llmClient, usageLog, cfg.Anthropic.AnalysisModel, logger)
	summarizer := evaluations.NewSummarizer(llmClient, usageLog, cfg.Anthropic.AnalysisModel, logger)
	evaluator := evaluations.NewService(evalRepo, scorer, summarizer, logger)

	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewProcessor(memoRepo, analyzer, evaluator, s3Client, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
