// Package escalate resolves low-confidence classifications through an
// external batch classifier. The collaborator is strictly best-effort:
// when it is unavailable or fails, callers get an empty override set and
// every escalated file stays at Misc.
package escalate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magicfolder/brain/classify"
	"github.com/magicfolder/brain/llm"
)

// maxItemChars limits per-file content sent for escalation.
// ~4000 chars ≈ ~1000 tokens, enough signal for classification without
// blowing up the context window on large batches.
const maxItemChars = 4000

// Item is one uncertain file submitted for escalation.
type Item struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Override is the external classifier's verdict for one path.
type Override struct {
	Category   classify.Category
	Confidence float64
	Reason     string
}

// Classifier is the external batch-classification collaborator. One call
// covers the whole batch; implementations must never be invoked per file.
type Classifier interface {
	// Available reports whether the collaborator can be used. False is a
	// normal degraded mode.
	Available() bool

	// ClassifyBatch classifies all items in a single external call and
	// returns overrides keyed by path.
	ClassifyBatch(ctx context.Context, items []Item) (map[string]Override, error)
}

const classifySystemPrompt = `You classify files into exactly one of these categories:

["Screenshots", "Invoices", "TrainTickets", "IDProofs", "Misc", "Notes", "Credentials", "Resume"]

Classification rules:
- Base your decision on filename, extension, and content.
- If the file is an image clearly captured from a screen -> Screenshots
- If it contains billing, GST, totals, invoice numbers -> Invoices
- If it contains IRCTC, PNR, journey details -> TrainTickets
- If it contains government-issued identity info -> IDProofs
- If it contains usernames, passwords, API keys -> Credentials
- If it resembles a CV or professional profile -> Resume
- If it is meeting notes, ideas, todos -> Notes
- If confidence is low -> Misc

Return only JSON with this schema:

{
  "<path>": {
    "category": "<one of the categories>",
    "confidence": <number between 0 and 1>,
    "reason": "<short explanation>"
  }
}`

const classifyUserPrompt = `Files to classify:
%s`

// LLMClassifier implements Classifier on top of the LLM client.
type LLMClassifier struct {
	client      *llm.Client
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

// LLMOption configures an LLMClassifier.
type LLMOption func(*LLMClassifier)

// WithLLMLogger sets the logger.
func WithLLMLogger(logger *slog.Logger) LLMOption {
	return func(c *LLMClassifier) {
		c.logger = logger
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) LLMOption {
	return func(c *LLMClassifier) {
		c.temperature = t
	}
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) LLMOption {
	return func(c *LLMClassifier) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// NewLLMClassifier creates the LLM-backed batch classifier.
func NewLLMClassifier(client *llm.Client, opts ...LLMOption) *LLMClassifier {
	c := &LLMClassifier{
		client:      client,
		temperature: 0.5,
		maxTokens:   2000,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Available reports whether the LLM endpoint can be used.
func (c *LLMClassifier) Available() bool {
	return c.client != nil && c.client.Available()
}

// ClassifyBatch sends the whole batch in one completion request and parses
// the per-path verdicts out of the reply.
func (c *LLMClassifier) ClassifyBatch(ctx context.Context, items []Item) (map[string]Override, error) {
	if len(items) == 0 {
		return nil, nil
	}

	payload := make([]Item, len(items))
	for i, item := range items {
		payload[i] = Item{
			Path:    item.Path,
			Content: truncateContent(item.Content, maxItemChars),
		}
	}

	filesJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal escalation batch: %w", err)
	}

	temp := c.temperature
	resp, err := c.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: classifySystemPrompt},
			{Role: "user", Content: fmt.Sprintf(classifyUserPrompt, filesJSON)},
		},
		Temperature: &temp,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("batch classification: %w", err)
	}

	overrides, err := parseOverrides(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("parse batch classification: %w", err)
	}

	c.logger.Debug("batch classification complete",
		slog.String("request_id", resp.RequestID),
		slog.Int("items", len(items)),
		slog.Int("overrides", len(overrides)))

	return overrides, nil
}

// rawOverride is the wire shape of one verdict.
type rawOverride struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// parseOverrides extracts the verdict map, dropping entries with unknown
// categories rather than failing the batch.
func parseOverrides(content string) (map[string]Override, error) {
	jsonStr := llm.ExtractJSON(content)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON found in response")
	}

	var raw map[string]rawOverride
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}

	overrides := make(map[string]Override, len(raw))
	for path, r := range raw {
		cat := classify.ParseCategory(r.Category)
		if cat == "" {
			continue
		}
		overrides[path] = Override{
			Category:   cat,
			Confidence: r.Confidence,
			Reason:     r.Reason,
		}
	}
	return overrides, nil
}

// truncateContent truncates at a paragraph boundary when one falls in the
// second half of the budget.
func truncateContent(content string, maxChars int) string {
	if len(content) <= maxChars {
		return content
	}

	truncated := content[:maxChars]
	if lastPara := strings.LastIndex(truncated, "\n\n"); lastPara > maxChars/2 {
		return truncated[:lastPara]
	}
	return truncated
}
