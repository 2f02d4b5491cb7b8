package memos

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/aura-debate/backend/internal/models"
	"github.com/aura-debate/backend/internal/usage"
	"github.com/aura-debate/backend/pkg/llm"
)

const analysisPrompt = `You are analyzing a student memo for a university assignment.

ASSIGNMENT PROMPT:
%s

STUDENT MEMO:
%s

Extract the following as JSON:
{
  "position": "net_positive" | "net_negative",
  "thesis": "one sentence summary of their main argument",
  "key_claims": ["claim 1", "claim 2", ...],
  "citations": [{"reading": "author/title", "how_used": "summary of usage"}],
  "stance_strength": "strong" | "moderate" | "weak",
  "reasoning": "brief explanation of your classification"
}

Classification rules:
- If the memo argues the subject's impact is predominantly positive -> "net_positive"
- If the memo argues the negative effects outweigh the positives -> "net_negative"
- For nuanced/mixed positions, determine which way the overall argument leans and classify accordingly
- Only use "net_positive" or "net_negative", no middle ground for pairing purposes

Return ONLY valid JSON, no other text.`

// Analyzer classifies memo positions and extracts theses via the LLM.
type Analyzer struct {
	llm    llm.Completer
	usage  usage.Recorder
	model  string
	logger *zap.Logger
}

// NewAnalyzer creates a memo analyzer.
func NewAnalyzer(completer llm.Completer, recorder usage.Recorder, model string, logger *zap.Logger) *Analyzer {
	if recorder == nil {
		recorder = usage.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{llm: completer, usage: recorder, model: model, logger: logger}
}

// Analyze runs the analysis prompt over the extracted memo text and
// validates the model's classification.
func (a *Analyzer) Analyze(ctx context.Context, memo *models.Memo, memoText, assignmentPrompt string) (*models.MemoAnalysis, error) {
	resp, err := a.llm.Complete(ctx, llm.Request{
		Model:     a.model,
		Prompt:    fmt.Sprintf(analysisPrompt, assignmentPrompt, memoText),
		MaxTokens: 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis call: %w", err)
	}
	a.usage.Record(models.UsageRecord{
		Service:      "memo_processor",
		Model:        a.model,
		CallType:     "memo_analysis",
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		AssignmentID: &memo.AssignmentID,
		MemoID:       &memo.ID,
	})

	var analysis models.MemoAnalysis
	if err := json.Unmarshal([]byte(llm.StripFences(resp.Text)), &analysis); err != nil {
		return nil, fmt.Errorf("parse analysis: %w", err)
	}
	if analysis.Position != models.PositionNetPositive && analysis.Position != models.PositionNetNegative {
		return nil, fmt.Errorf("invalid position %q", analysis.Position)
	}
	if analysis.Thesis == "" || len(analysis.KeyClaims) == 0 || analysis.StanceStrength == "" {
		return nil, fmt.Errorf("analysis missing required fields")
	}
	return &analysis, nil
}
