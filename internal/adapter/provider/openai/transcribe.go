package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/port"
)

const ProviderName = "openai"

type transcriptionResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		AvgLogprob   float64 `json:"avg_logprob"`
		NoSpeechProb float64 `json:"no_speech_prob"`
	} `json:"segments"`
}

func (c *Client) Transcribe(ctx context.Context, audioPath string) (*port.Transcription, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	// Stream the multipart body instead of buffering the whole file.
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeTranscriptionForm(mw, c.cfg.TranscribeModel, filepath.Base(audioPath), f))
	}()

	raw, err := c.do(ctx, domain.JobTypeTranscribe, "/audio/transcriptions", mw.FormDataContentType(), pr)
	_ = pr.Close()
	if err != nil {
		return nil, err
	}

	var tr transcriptionResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, domain.Transient(domain.JobTypeTranscribe, fmt.Errorf("decode transcription: %w", err))
	}
	return &port.Transcription{
		Text:       tr.Text,
		Language:   tr.Language,
		Confidence: tr.confidence(),
		Provider:   ProviderName,
	}, nil
}

func writeTranscriptionForm(mw *multipart.Writer, model, filename string, audio io.Reader) error {
	if err := mw.WriteField("model", model); err != nil {
		return err
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return err
	}
	return mw.Close()
}

// confidence averages per-segment speech probability weighted by the
// token log probability. Without segments it reports 0.
func (tr transcriptionResponse) confidence() float64 {
	if len(tr.Segments) == 0 {
		return 0
	}
	var sum float64
	for _, s := range tr.Segments {
		p := 1 - s.NoSpeechProb
		if s.AvgLogprob < 0 {
			p *= math.Exp(s.AvgLogprob)
		}
		sum += p
	}
	return sum / float64(len(tr.Segments))
}

var _ port.Transcriber = (*Client)(nil)
