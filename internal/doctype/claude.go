package doctype

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const claudeMaxTokens = 16

// classifyPromptTemplate wraps the user label in XML tags so it cannot
// carry instructions.
const classifyPromptTemplate = `Classify the identity document described below into exactly one of these labels:
Aadhaar, PAN, Voter, Driving, Passport, Other.

<document_label>%s</document_label>

Answer with the label only.`

// ClaudeNormalizer tries the keyword rules first and asks Claude only for
// labels the rules do not recognise. Any API failure degrades to Other.
type ClaudeNormalizer struct {
	heuristic *HeuristicNormalizer
	client    *anthropic.Client
	model     string
	logger    *slog.Logger
}

// NewClaudeNormalizer creates a normalizer backed by the Anthropic API.
func NewClaudeNormalizer(apiKey, model string, logger *slog.Logger, opts ...option.RequestOption) *ClaudeNormalizer {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := anthropic.NewClient(opts...)
	return &ClaudeNormalizer{
		heuristic: NewHeuristic(logger),
		client:    &client,
		model:     model,
		logger:    logger,
	}
}

// Normalize returns the canonical label for raw.
func (c *ClaudeNormalizer) Normalize(ctx context.Context, raw string) string {
	if label, ok := c.heuristic.Lookup(raw); ok {
		return label
	}
	if strings.TrimSpace(raw) == "" {
		return Other
	}

	label, err := c.classify(ctx, raw)
	if err != nil {
		c.logger.Warn("claude document classification failed, using Other", "raw", raw, "error", err)
		return Other
	}
	return label
}

func (c *ClaudeNormalizer) classify(ctx context.Context, raw string) (string, error) {
	prompt := fmt.Sprintf(classifyPromptTemplate, xmlEscape(raw))

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: claudeMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		System: []anthropic.TextBlockParam{
			{Text: "You are a strict classifier. Output one label and nothing else."},
		},
	})
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}

	label := strings.Trim(strings.TrimSpace(text), ".\"'")
	for _, canon := range Canonical {
		if strings.EqualFold(label, canon) {
			c.logger.Debug("claude classified document", "raw", raw, "type", canon)
			return canon, nil
		}
	}
	return "", fmt.Errorf("unexpected label %q", text)
}

func xmlEscape(s string) string {
	var buf strings.Builder
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return s
	}
	return buf.String()
}
