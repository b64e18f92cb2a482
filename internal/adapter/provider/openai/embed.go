package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/port"
)

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	raw, err := c.postJSON(ctx, domain.JobTypeGenerateEmbeddings, "/embeddings", map[string]any{
		"model": c.cfg.EmbeddingModel,
		"input": texts,
	})
	if err != nil {
		return nil, err
	}

	var er embeddingResponse
	if err := json.Unmarshal(raw, &er); err != nil {
		return nil, domain.Transient(domain.JobTypeGenerateEmbeddings, fmt.Errorf("decode embeddings: %w", err))
	}
	if len(er.Data) != len(texts) {
		return nil, domain.Transient(domain.JobTypeGenerateEmbeddings,
			fmt.Errorf("provider returned %d embeddings for %d inputs", len(er.Data), len(texts)))
	}
	sort.Slice(er.Data, func(i, j int) bool { return er.Data[i].Index < er.Data[j].Index })

	out := make([][]float32, len(er.Data))
	for i, d := range er.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

var _ port.Embedder = (*Client)(nil)
