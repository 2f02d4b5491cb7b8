// Package usage records AI spend (tokens, duration, estimated cost)
// without blocking the calling path.
package usage

import (
	"context"
	"strings"

	"github.com/aura-debate/backend/internal/models"
)

// Recorder accepts usage records. Implementations must not block.
type Recorder interface {
	Record(rec models.UsageRecord)
}

// Nop discards all records. Useful in tests.
type Nop struct{}

func (Nop) Record(models.UsageRecord) {}

// Per-million-token pricing in USD. Unknown models cost zero rather
// than failing the record.
var modelPricing = map[string]struct{ in, out float64 }{
	"claude-sonnet-4-5-20250929": {in: 3.0, out: 15.0},
	"claude-haiku-4-5-20251001":  {in: 0.80, out: 4.0},
}

// TranscriptionRatePerSecond is the speech-to-text price per audio second.
const TranscriptionRatePerSecond = 0.0043

// EstimateCost returns the estimated USD cost for a call. Token-based
// models use per-Mtok rates; transcription uses audio duration.
func EstimateCost(model string, inputTokens, outputTokens int, durationSeconds float64) float64 {
	if strings.HasPrefix(model, "deepgram") || (model == "" && durationSeconds > 0) {
		return durationSeconds * TranscriptionRatePerSecond
	}
	p, ok := modelPricing[model]
	if !ok {
		return 0
	}
	return float64(inputTokens)/1e6*p.in + float64(outputTokens)/1e6*p.out
}

// Inserter persists a usage record. Satisfied by *Repository.
type Inserter interface {
	Insert(ctx context.Context, rec models.UsageRecord) error
}
