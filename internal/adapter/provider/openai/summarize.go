package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/port"
)

// maxSummaryInput caps the source text sent for document generation.
const maxSummaryInput = 60000

const summarySystemPrompt = `You turn raw transcripts and notes into a clean, structured markdown document.
Keep facts, names, numbers and decisions. Remove filler words and repetition.
Use headings and bullet lists where they help. Do not invent content.
Return ONLY a JSON object that matches this JSON Schema:
`

func (c *Client) Summarize(ctx context.Context, in port.SummarizeInput) (*port.Summary, error) {
	text := in.Text
	if len(text) > maxSummaryInput {
		text = truncateUTF8(text, maxSummaryInput)
	}

	var user strings.Builder
	if in.Title != "" {
		fmt.Fprintf(&user, "Title: %s\n", in.Title)
	}
	fmt.Fprintf(&user, "Content type: %s\n\nSource text:\n%s", in.ContentType, text)

	messages := []map[string]any{
		{"role": "system", "content": summarySystemPrompt + summarySchema.source},
		{"role": "user", "content": user.String()},
	}
	content, err := c.chatJSON(ctx, domain.JobTypeDocGenerate, c.cfg.SummaryModel, messages, summarySchema)
	if err != nil {
		return nil, err
	}

	var out struct {
		Content string `json:"content"`
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal(content, &out); err != nil {
		return nil, domain.Transient(domain.JobTypeDocGenerate, fmt.Errorf("unmarshal summary: %w", err))
	}
	return &port.Summary{Content: out.Content, Summary: out.Summary}, nil
}

func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && n < len(s) && (s[n]&0xC0) == 0x80 {
		n--
	}
	return s[:n]
}

var _ port.Summarizer = (*Client)(nil)
