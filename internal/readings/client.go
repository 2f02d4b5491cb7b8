// Package readings queries the reading-indexer service for passages
// relevant to a debate utterance.
package readings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NoPassagesFallback is used in prompts when no passages are available.
const NoPassagesFallback = "No reading passages available."

// Passage is a retrieved chunk of assigned reading.
type Passage struct {
	SourceTitle string  `json:"source_title"`
	ChunkText   string  `json:"chunk_text"`
	Similarity  float64 `json:"similarity"`
}

// Retriever fetches reading passages relevant to a query.
type Retriever interface {
	Query(ctx context.Context, assignmentID uuid.UUID, query string, topK int) ([]Passage, error)
}

// Client talks to the reading-indexer HTTP service.
type Client struct {
	baseURL string
	topK    int
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates an indexer client. topK is the default passage count
// per query.
func NewClient(baseURL string, topK int, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if topK <= 0 {
		topK = 3
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		topK:    topK,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// TopK returns the default passage count.
func (c *Client) TopK() int { return c.topK }

type queryRequest struct {
	AssignmentID string `json:"assignment_id"`
	Query        string `json:"query"`
	TopK         int    `json:"top_k"`
}

type queryResponse struct {
	Results []Passage `json:"results"`
}

// Query posts to the indexer's /query endpoint and returns passages
// ranked by similarity.
func (c *Client) Query(ctx context.Context, assignmentID uuid.UUID, query string, topK int) ([]Passage, error) {
	if topK <= 0 {
		topK = c.topK
	}
	body, err := json.Marshal(queryRequest{
		AssignmentID: assignmentID.String(),
		Query:        query,
		TopK:         topK,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("indexer query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("indexer query: status %d", resp.StatusCode)
	}
	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode indexer response: %w", err)
	}
	return out.Results, nil
}

// FormatPassages renders passages for inclusion in a prompt. Returns
// NoPassagesFallback when the slice is empty.
func FormatPassages(passages []Passage) string {
	if len(passages) == 0 {
		return NoPassagesFallback
	}
	var b strings.Builder
	for i, p := range passages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s] %s", p.SourceTitle, p.ChunkText)
	}
	return b.String()
}
