package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/port"
)

const visionPrompt = `Describe this video frame for search indexing. Mention visible text topics,
people count, UI elements, charts and objects. Classify the scene.
Return ONLY a JSON object that matches this JSON Schema:
`

func (c *Client) DescribeFrame(ctx context.Context, imagePath string) (*port.FrameDescription, error) {
	img, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	dataURL := "data:" + http.DetectContentType(img) + ";base64," + base64.StdEncoding.EncodeToString(img)

	messages := []map[string]any{
		{"role": "user", "content": []map[string]any{
			{"type": "text", "text": visionPrompt + frameSchema.source},
			{"type": "image_url", "image_url": map[string]any{"url": dataURL, "detail": "low"}},
		}},
	}
	content, err := c.chatJSON(ctx, domain.JobTypeIndexFrames, c.cfg.VisionModel, messages, frameSchema)
	if err != nil {
		return nil, err
	}

	var out struct {
		Description string   `json:"description"`
		SceneType   string   `json:"scene_type"`
		Elements    []string `json:"elements"`
	}
	if err := json.Unmarshal(content, &out); err != nil {
		return nil, domain.Transient(domain.JobTypeIndexFrames, fmt.Errorf("unmarshal frame description: %w", err))
	}
	return &port.FrameDescription{
		Description: out.Description,
		SceneType:   out.SceneType,
		Elements:    out.Elements,
	}, nil
}

var _ port.VisionDescriber = (*Client)(nil)
