package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Target names the record a job works on.
type Target struct {
	ContentID string `json:"content_id"`
	OrgID     string `json:"org_id"`
}

// Payload is the typed body of a job. Each job type has exactly one
// concrete payload struct.
type Payload interface {
	JobType() JobType
	Ref() Target
}

type ExtractAudioPayload struct {
	Target
	RawPath string `json:"raw_path"`
}

type TranscribePayload struct {
	Target
	AudioPath string `json:"audio_path"`
}

type ExtractTextPayload struct {
	Target
	Path   string `json:"path"`
	Format string `json:"format"`
}

type ProcessTextNotePayload struct {
	Target
	Path   string `json:"path"`
	Format string `json:"format"`
}

type DocGeneratePayload struct {
	Target
}

type GenerateEmbeddingsPayload struct {
	Target
}

type ExtractFramesPayload struct {
	Target
	VideoPath string `json:"video_path"`
}

// FrameStagePayload drives index_frames, ocr_frames and embed_frames.
type FrameStagePayload struct {
	Target
	Stage JobType `json:"stage"`
}

type MetricsPayload struct {
	TriggeredAt time.Time `json:"triggered_at"`
}

type AlertsPayload struct {
	TriggeredAt    time.Time `json:"triggered_at"`
	ErrorRateMax   float64   `json:"error_rate_max"`
	FailedJobsMax  int64     `json:"failed_jobs_max"`
	StalledJobsMax int64     `json:"stalled_jobs_max"`
	WindowSeconds  int64     `json:"window_seconds"`
}

func (p ExtractAudioPayload) JobType() JobType       { return JobTypeExtractAudio }
func (p TranscribePayload) JobType() JobType         { return JobTypeTranscribe }
func (p ProcessTextNotePayload) JobType() JobType    { return JobTypeProcessTextNote }
func (p DocGeneratePayload) JobType() JobType        { return JobTypeDocGenerate }
func (p GenerateEmbeddingsPayload) JobType() JobType { return JobTypeGenerateEmbeddings }
func (p ExtractFramesPayload) JobType() JobType      { return JobTypeExtractFrames }
func (p FrameStagePayload) JobType() JobType         { return p.Stage }
func (p MetricsPayload) JobType() JobType            { return JobTypeCollectMetrics }
func (p AlertsPayload) JobType() JobType             { return JobTypeGenerateAlerts }

func (p ExtractTextPayload) JobType() JobType {
	if p.Format == "docx" {
		return JobTypeExtractTextDOCX
	}
	return JobTypeExtractTextPDF
}

func (t Target) Ref() Target         { return t }
func (p MetricsPayload) Ref() Target { return Target{} }
func (p AlertsPayload) Ref() Target  { return Target{} }

// NewPayload builds the payload for a pipeline stage. sourcePath is the
// storage path the stage reads from, when it reads one.
func NewPayload(t JobType, target Target, sourcePath string) (Payload, error) {
	switch t {
	case JobTypeExtractAudio:
		return ExtractAudioPayload{Target: target, RawPath: sourcePath}, nil
	case JobTypeTranscribe:
		return TranscribePayload{Target: target, AudioPath: sourcePath}, nil
	case JobTypeExtractTextPDF:
		return ExtractTextPayload{Target: target, Path: sourcePath, Format: "pdf"}, nil
	case JobTypeExtractTextDOCX:
		return ExtractTextPayload{Target: target, Path: sourcePath, Format: "docx"}, nil
	case JobTypeProcessTextNote:
		return ProcessTextNotePayload{Target: target, Path: sourcePath, Format: FileTypeOf(sourcePath)}, nil
	case JobTypeDocGenerate:
		return DocGeneratePayload{Target: target}, nil
	case JobTypeGenerateEmbeddings:
		return GenerateEmbeddingsPayload{Target: target}, nil
	case JobTypeExtractFrames:
		return ExtractFramesPayload{Target: target, VideoPath: sourcePath}, nil
	case JobTypeIndexFrames, JobTypeOCRFrames, JobTypeEmbedFrames:
		return FrameStagePayload{Target: target, Stage: t}, nil
	}
	return nil, fmt.Errorf("%w: no pipeline payload for job type %q", ErrValidation, t)
}

const targetProps = `"content_id": {"type": "string", "minLength": 1},
		"org_id": {"type": "string", "minLength": 1}`

func objectSchema(props string, required ...string) string {
	req, _ := json.Marshal(append([]string{"content_id", "org_id"}, required...))
	return `{"type": "object", "properties": {` + targetProps + props + `}, "required": ` + string(req) + `}`
}

var payloadSchemas = map[JobType]string{
	JobTypeExtractAudio:       objectSchema(`, "raw_path": {"type": "string", "minLength": 1}`, "raw_path"),
	JobTypeTranscribe:         objectSchema(`, "audio_path": {"type": "string", "minLength": 1}`, "audio_path"),
	JobTypeExtractTextPDF:     objectSchema(`, "path": {"type": "string", "minLength": 1}, "format": {"const": "pdf"}`, "path", "format"),
	JobTypeExtractTextDOCX:    objectSchema(`, "path": {"type": "string", "minLength": 1}, "format": {"const": "docx"}`, "path", "format"),
	JobTypeProcessTextNote:    objectSchema(`, "path": {"type": "string", "minLength": 1}, "format": {"enum": ["txt", "md"]}`, "path", "format"),
	JobTypeDocGenerate:        objectSchema(""),
	JobTypeGenerateEmbeddings: objectSchema(""),
	JobTypeExtractFrames:      objectSchema(`, "video_path": {"type": "string", "minLength": 1}`, "video_path"),
	JobTypeIndexFrames:        objectSchema(`, "stage": {"const": "index_frames"}`, "stage"),
	JobTypeOCRFrames:          objectSchema(`, "stage": {"const": "ocr_frames"}`, "stage"),
	JobTypeEmbedFrames:        objectSchema(`, "stage": {"const": "embed_frames"}`, "stage"),
	JobTypeCollectMetrics: `{"type": "object", "properties": {
		"triggered_at": {"type": "string"}}, "required": ["triggered_at"]}`,
	JobTypeGenerateAlerts: `{"type": "object", "properties": {
		"triggered_at": {"type": "string"},
		"error_rate_max": {"type": "number", "minimum": 0, "maximum": 1},
		"failed_jobs_max": {"type": "integer", "minimum": 0},
		"stalled_jobs_max": {"type": "integer", "minimum": 0},
		"window_seconds": {"type": "integer", "minimum": 1}},
		"required": ["triggered_at", "window_seconds"]}`,
}

var (
	compileOnce     sync.Once
	compiledSchemas map[JobType]*jsonschema.Schema
	compileErr      error
)

func schemas() (map[JobType]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiledSchemas = make(map[JobType]*jsonschema.Schema, len(payloadSchemas))
		for t, src := range payloadSchemas {
			s, err := jsonschema.CompileString(string(t)+".json", src)
			if err != nil {
				compileErr = fmt.Errorf("compile %s payload schema: %w", t, err)
				return
			}
			compiledSchemas[t] = s
		}
	})
	return compiledSchemas, compileErr
}

// EncodePayload marshals p after checking it against its type's schema.
func EncodePayload(p Payload) (json.RawMessage, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", p.JobType(), err)
	}
	if err := validatePayload(p.JobType(), raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// DecodePayload validates raw against the schema for t and returns the
// concrete payload. Unknown types and malformed bodies are validation errors.
func DecodePayload(t JobType, raw json.RawMessage) (Payload, error) {
	if err := validatePayload(t, raw); err != nil {
		return nil, err
	}

	var (
		p   Payload
		err error
	)
	switch t {
	case JobTypeExtractAudio:
		p, err = decodeAs[ExtractAudioPayload](raw)
	case JobTypeTranscribe:
		p, err = decodeAs[TranscribePayload](raw)
	case JobTypeExtractTextPDF, JobTypeExtractTextDOCX:
		p, err = decodeAs[ExtractTextPayload](raw)
	case JobTypeProcessTextNote:
		p, err = decodeAs[ProcessTextNotePayload](raw)
	case JobTypeDocGenerate:
		p, err = decodeAs[DocGeneratePayload](raw)
	case JobTypeGenerateEmbeddings:
		p, err = decodeAs[GenerateEmbeddingsPayload](raw)
	case JobTypeExtractFrames:
		p, err = decodeAs[ExtractFramesPayload](raw)
	case JobTypeIndexFrames, JobTypeOCRFrames, JobTypeEmbedFrames:
		p, err = decodeAs[FrameStagePayload](raw)
	case JobTypeCollectMetrics:
		p, err = decodeAs[MetricsPayload](raw)
	case JobTypeGenerateAlerts:
		p, err = decodeAs[AlertsPayload](raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s payload: %v", ErrValidation, t, err)
	}
	return p, nil
}

func decodeAs[T Payload](raw json.RawMessage) (Payload, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func validatePayload(t JobType, raw json.RawMessage) error {
	compiled, err := schemas()
	if err != nil {
		return err
	}
	schema, ok := compiled[t]
	if !ok {
		return fmt.Errorf("%w: unknown job type %q", ErrValidation, t)
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%w: %s payload is not JSON: %v", ErrValidation, t, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrValidation, t, err)
	}
	return nil
}
