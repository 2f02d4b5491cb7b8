// Package main runs the debate platform HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-debate/backend/config"
	"github.com/aura-debate/backend/internal/debate"
	"github.com/aura-debate/backend/internal/evaluations"
	"github.com/aura-debate/backend/internal/memos"
	"github.com/aura-debate/backend/internal/middleware"
	"github.com/aura-debate/backend/internal/models"
	"github.com/aura-debate/backend/internal/moderator"
	"github.com/aura-debate/backend/internal/pairings"
	"github.com/aura-debate/backend/internal/readings"
	"github.com/aura-debate/backend/internal/sessions"
	"github.com/aura-debate/backend/internal/usage"
	"github.com/aura-debate/backend/pkg/database"
	"github.com/aura-debate/backend/pkg/llm"
	"github.com/aura-debate/backend/pkg/queue"
	"github.com/aura-debate/backend/pkg/redis"
	"github.com/aura-debate/backend/pkg/response"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

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

	indexer := readings.NewClient(cfg.Indexer.URL, cfg.Indexer.TopK,
		time.Duration(cfg.Indexer.TimeoutSeconds)*time.Second, logger)

	// AI usage accounting: async inserts, never blocks callers.
	usageRepo := usage.NewRepository(pool)
	usageLog := usage.NewLogger(usageRepo, logger)
	defer usageLog.Close()
	usageHandler := usage.NewHandler(usageRepo, logger)

	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Memos
	memoRepo := memos.NewRepository(pool)
	memoHandler := memos.NewHandler(memoRepo, s3Client, jobQueue, logger)

	// Pairings
	sessionRepo := sessions.NewRepository(pool)
	pairingRepo := pairings.NewRepository(pool)
	pairingHandler := pairings.NewHandler(pairingRepo, memoRepo, sessionRepo, logger)

	// Evaluations
	evalRepo := evaluations.NewRepository(pool)
	evalHandler := evaluations.NewHandler(evalRepo, jobQueue, logger)

	// Live debate coordination
	sessionHandler := sessions.NewHandler(sessionRepo, logger)
	moderatorFactory := func(cx models.DebateContext) debate.ModeratorService {
		return moderator.New(cx, llmClient, indexer, usageLog, cfg.Anthropic.ModeratorModel, logger)
	}
	registry := debate.NewRegistry(
		sessionRepo.LoadContext,
		sessionRepo.SaveTranscript,
		moderatorFactory,
		debate.Options{
			CooldownOpeningClosing: cfg.Moderator.CooldownOpeningClosing,
			CooldownDefault:        cfg.Moderator.CooldownDefault,
			SilenceThreshold:       cfg.Moderator.SilenceThreshold,
			SilencePollInterval:    cfg.Moderator.SilencePollInterval,
			CheckpointEvery:        cfg.Moderator.CheckpointEvery,
			RecentHistory:          cfg.Moderator.RecentHistory,
			PromptOnRelay:          cfg.Moderator.PromptOnRelay,
		},
		logger,
	)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Memo pipeline
	router.POST("/assignments/:id/memos", memoHandler.Upload)
	router.GET("/assignments/:id/memos", memoHandler.ListByAssignment)
	router.GET("/memos/:id", memoHandler.Get)
	router.GET("/memos/:id/download-url", memoHandler.DownloadURL)

	// Pairing
	router.POST("/assignments/:id/pair", pairingHandler.Pair)
	router.GET("/assignments/:id/pairings", pairingHandler.ListByAssignment)

	// Debate sessions
	router.GET("/ws/:sessionID", debate.ServeWs(registry, logger))
	router.GET("/debate-sessions/:id/transcript", sessionHandler.GetTranscript)
	router.POST("/debate-sessions/:id/evaluate", evalHandler.Run)
	router.GET("/debate-sessions/:id/evaluations", evalHandler.ListBySession)

	// Ops
	router.GET("/usage", usageHandler.Totals)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
