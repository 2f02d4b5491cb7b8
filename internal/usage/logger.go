package usage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aura-debate/backend/internal/models"
)

const (
	defaultBuffer      = 256
	defaultInsertLimit = 5 * time.Second
)

// Logger drains usage records to storage on a dedicated goroutine. The
// Record call is non-blocking: when the buffer is full the record is
// dropped with a warning, so a slow database never stalls a live debate.
type Logger struct {
	inserter Inserter
	logger   *zap.Logger
	ch       chan models.UsageRecord
	done     chan struct{}
	once     sync.Once
}

// NewLogger starts the drain goroutine.
func NewLogger(inserter Inserter, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Logger{
		inserter: inserter,
		logger:   logger,
		ch:       make(chan models.UsageRecord, defaultBuffer),
		done:     make(chan struct{}),
	}
	go l.drain()
	return l
}

// Record enqueues a usage record. Never blocks.
func (l *Logger) Record(rec models.UsageRecord) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.EstimatedCost == 0 {
		rec.EstimatedCost = EstimateCost(rec.Model, rec.InputTokens, rec.OutputTokens, rec.DurationSeconds)
	}
	select {
	case l.ch <- rec:
	default:
		l.logger.Warn("usage record dropped, buffer full",
			zap.String("service", rec.Service),
			zap.String("call_type", rec.CallType),
		)
	}
}

func (l *Logger) drain() {
	defer close(l.done)
	for rec := range l.ch {
		ctx, cancel := context.WithTimeout(context.Background(), defaultInsertLimit)
		if err := l.inserter.Insert(ctx, rec); err != nil {
			l.logger.Error("usage insert failed",
				zap.Error(err),
				zap.String("service", rec.Service),
				zap.String("call_type", rec.CallType),
			)
		}
		cancel()
	}
}

// Close stops accepting records and waits for the buffer to flush.
func (l *Logger) Close() {
	l.once.Do(func() {
		close(l.ch)
	})
	<-l.done
}
