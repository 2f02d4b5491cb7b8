package usage

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aura-debate/backend/internal/models"
)

type memInserter struct {
	mu   sync.Mutex
	recs []models.UsageRecord
}

func (m *memInserter) Insert(_ context.Context, rec models.UsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memInserter) all() []models.UsageRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.UsageRecord(nil), m.recs...)
}

func TestLoggerDrainsRecords(t *testing.T) {
	ins := &memInserter{}
	l := NewLogger(ins, nil)

	l.Record(models.UsageRecord{Service: "moderator", Model: "claude-haiku-4-5-20251001", CallType: "moderation", InputTokens: 1000, OutputTokens: 200})
	l.Record(models.UsageRecord{Service: "evaluator", CallType: "scoring"})
	l.Close()

	recs := ins.all()
	assert.Len(t, recs, 2)
	assert.False(t, recs[0].CreatedAt.IsZero())
	assert.Greater(t, recs[0].EstimatedCost, 0.0)
}

func TestEstimateCost(t *testing.T) {
	// 1M in + 1M out on sonnet.
	assert.InDelta(t, 18.0, EstimateCost("claude-sonnet-4-5-20250929", 1_000_000, 1_000_000, 0), 1e-9)
	// haiku pricing.
	assert.InDelta(t, 0.80+4.0, EstimateCost("claude-haiku-4-5-20251001", 1_000_000, 1_000_000, 0), 1e-9)
	// transcription is duration based.
	assert.InDelta(t, 60*0.0043, EstimateCost("deepgram-nova", 0, 0, 60), 1e-9)
	// unknown models cost nothing.
	assert.Zero(t, EstimateCost("mystery-model", 1000, 1000, 0))
}

func TestRecordNeverBlocks(t *testing.T) {
	// An inserter that blocks until released.
	release := make(chan struct{})
	blocked := &blockingInserter{release: release}
	l := NewLogger(blocked, nil)

	// Fill well past the buffer; Record must return regardless.
	for i := 0; i < defaultBuffer*2; i++ {
		l.Record(models.UsageRecord{Service: "moderator", CallType: "moderation"})
	}
	close(release)
	l.Close()
}

type blockingInserter struct {
	release chan struct{}
}

func (b *blockingInserter) Insert(context.Context, models.UsageRecord) error {
	<-b.release
	return nil
}
