package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPayload_DecodesToSameVariant(t *testing.T) {
	target := Target{ContentID: "c1", OrgID: "org1"}

	for _, jt := range []JobType{
		JobTypeExtractAudio, JobTypeTranscribe, JobTypeExtractTextPDF, JobTypeExtractTextDOCX,
		JobTypeDocGenerate, JobTypeGenerateEmbeddings, JobTypeExtractFrames,
		JobTypeIndexFrames, JobTypeOCRFrames, JobTypeEmbedFrames,
	} {
		t.Run(string(jt), func(t *testing.T) {
			p, err := NewPayload(jt, target, "org1/c1/raw.bin")
			require.NoError(t, err)
			assert.Equal(t, jt, p.JobType())
			assert.Equal(t, target, p.Ref())

			raw, err := EncodePayload(p)
			require.NoError(t, err)

			decoded, err := DecodePayload(jt, raw)
			require.NoError(t, err)
			assert.Equal(t, p, decoded)
		})
	}
}

func TestNewPayload_TextNoteFormatFromPath(t *testing.T) {
	p, err := NewPayload(JobTypeProcessTextNote, Target{ContentID: "c1", OrgID: "o1"}, "o1/c1/raw.md")
	require.NoError(t, err)
	note, ok := p.(ProcessTextNotePayload)
	require.True(t, ok)
	assert.Equal(t, "md", note.Format)
}

func TestNewPayload_SystemTypesRejected(t *testing.T) {
	_, err := NewPayload(JobTypeCollectMetrics, Target{}, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDecodePayload_Invalid(t *testing.T) {
	tests := []struct {
		name string
		typ  JobType
		raw  string
	}{
		{"unknown type", JobType("render_3d"), `{}`},
		{"not json", JobTypeTranscribe, `{"content_id":`},
		{"missing content id", JobTypeTranscribe, `{"org_id":"o1","audio_path":"a.wav"}`},
		{"empty audio path", JobTypeTranscribe, `{"content_id":"c1","org_id":"o1","audio_path":""}`},
		{"wrong text format", JobTypeExtractTextPDF, `{"content_id":"c1","org_id":"o1","path":"p","format":"docx"}`},
		{"note format not allowed", JobTypeProcessTextNote, `{"content_id":"c1","org_id":"o1","path":"p","format":"rtf"}`},
		{"frame stage mismatch", JobTypeOCRFrames, `{"content_id":"c1","org_id":"o1","stage":"index_frames"}`},
		{"alerts window missing", JobTypeGenerateAlerts, `{"triggered_at":"2026-01-01T00:00:00Z"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePayload(tt.typ, json.RawMessage(tt.raw))
			assert.ErrorIs(t, err, ErrValidation)
			assert.False(t, IsRetryable(err))
		})
	}
}

func TestDecodePayload_System(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	raw, err := EncodePayload(AlertsPayload{TriggeredAt: at, ErrorRateMax: 0.2, FailedJobsMax: 10, WindowSeconds: 900})
	require.NoError(t, err)

	p, err := DecodePayload(JobTypeGenerateAlerts, raw)
	require.NoError(t, err)
	alerts, ok := p.(AlertsPayload)
	require.True(t, ok)
	assert.True(t, at.Equal(alerts.TriggeredAt))
	assert.Equal(t, int64(900), alerts.WindowSeconds)
	assert.Equal(t, Target{}, alerts.Ref())
}

func TestNewJobFor(t *testing.T) {
	job := NewJobFor(TranscribePayload{Target: Target{ContentID: "c1", OrgID: "o1"}, AudioPath: "a.wav"})
	assert.Equal(t, JobTypeTranscribe, job.Type)
	assert.Equal(t, "c1", job.ContentID)
	assert.Equal(t, "o1", job.OrgID)
	assert.Equal(t, ChainMain, ChainOf(job.Type))
}
