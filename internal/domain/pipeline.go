package domain

import "fmt"

type ContentStatus string

const (
	StatusUploading     ContentStatus = "uploading"
	StatusUploaded      ContentStatus = "uploaded"
	StatusTranscribing  ContentStatus = "transcribing"
	StatusDocGenerating ContentStatus = "doc_generating"
	StatusEmbedding     ContentStatus = "embedding"
	StatusCompleted     ContentStatus = "completed"
	StatusError         ContentStatus = "error"
)

func (s ContentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// transitions lists the forward edges of the content state machine.
// Leaving a terminal state is only possible through RetryTransition.
var transitions = map[ContentStatus][]ContentStatus{
	StatusUploading:     {StatusUploaded, StatusError},
	StatusUploaded:      {StatusTranscribing, StatusError},
	StatusTranscribing:  {StatusTranscribing, StatusDocGenerating, StatusCompleted, StatusError},
	StatusDocGenerating: {StatusDocGenerating, StatusEmbedding, StatusCompleted, StatusError},
	StatusEmbedding:     {StatusCompleted, StatusError},
}

func CanTransition(from, to ContentStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func ValidateTransition(from, to ContentStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// RetryTransition validates the explicit retry action, which moves a failed
// record back to the status the retried stage runs under in its plan.
func RetryTransition(from ContentStatus, plan Plan, stage JobType) (ContentStatus, error) {
	if from != StatusError {
		return "", fmt.Errorf("%w: retry requires %s, record is %s", ErrInvalidTransition, StatusError, from)
	}
	to := plan.StatusOf(stage)
	if to == "" {
		return "", fmt.Errorf("%w: %s does not drive content status", ErrInvalidTransition, stage)
	}
	return to, nil
}

// Stage is one step of a plan and the status it puts the record in.
// Status is empty for chains that do not drive the record status.
type Stage struct {
	Job    JobType
	Status ContentStatus
}

type Plan struct {
	Chain  Chain
	Stages []Stage
}

func (p Plan) First() (Stage, bool) {
	if len(p.Stages) == 0 {
		return Stage{}, false
	}
	return p.Stages[0], true
}

// Next returns the stage after current, or false when current is the last one.
func (p Plan) Next(current JobType) (Stage, bool) {
	for i, s := range p.Stages {
		if s.Job == current && i+1 < len(p.Stages) {
			return p.Stages[i+1], true
		}
	}
	return Stage{}, false
}

func (p Plan) Contains(t JobType) bool {
	for _, s := range p.Stages {
		if s.Job == t {
			return true
		}
	}
	return false
}

// StatusOf returns the status a stage of the plan runs under, or empty when
// the stage is not part of it.
func (p Plan) StatusOf(t JobType) ContentStatus {
	for _, s := range p.Stages {
		if s.Job == t {
			return s.Status
		}
	}
	return ""
}

func (p Plan) JobTypes() []JobType {
	out := make([]JobType, len(p.Stages))
	for i, s := range p.Stages {
		out[i] = s.Job
	}
	return out
}

var (
	transcriptTail = []Stage{
		{JobTypeTranscribe, StatusTranscribing},
		{JobTypeDocGenerate, StatusDocGenerating},
		{JobTypeGenerateEmbeddings, StatusEmbedding},
	}

	mediaPlan = Plan{Chain: ChainMain, Stages: transcriptTail}

	videoPlan = Plan{Chain: ChainMain, Stages: append([]Stage{
		{JobTypeExtractAudio, StatusTranscribing},
	}, transcriptTail...)}

	// Documents and notes keep their shorter status sequences; the summary
	// and embedding stages run under the status already reached.
	pdfPlan = Plan{Chain: ChainMain, Stages: []Stage{
		{JobTypeExtractTextPDF, StatusTranscribing},
		{JobTypeDocGenerate, StatusTranscribing},
		{JobTypeGenerateEmbeddings, StatusTranscribing},
	}}

	docxPlan = Plan{Chain: ChainMain, Stages: []Stage{
		{JobTypeExtractTextDOCX, StatusTranscribing},
		{JobTypeDocGenerate, StatusTranscribing},
		{JobTypeGenerateEmbeddings, StatusTranscribing},
	}}

	textPlan = Plan{Chain: ChainMain, Stages: []Stage{
		{JobTypeProcessTextNote, StatusTranscribing},
		{JobTypeDocGenerate, StatusDocGenerating},
		{JobTypeGenerateEmbeddings, StatusDocGenerating},
	}}

	// FramesPlan is the video frame sub-pipeline. It never changes the
	// record status; its results are merged at search time.
	FramesPlan = Plan{Chain: ChainFrames, Stages: []Stage{
		{Job: JobTypeExtractFrames},
		{Job: JobTypeIndexFrames},
		{Job: JobTypeOCRFrames},
		{Job: JobTypeEmbedFrames},
	}}
)

type planKey struct {
	contentType ContentType
	fileType    string
}

var plans = map[planKey]Plan{
	{ContentTypeVideo, "mp4"}:      videoPlan,
	{ContentTypeVideo, "webm"}:     videoPlan,
	{ContentTypeVideo, "mov"}:      videoPlan,
	{ContentTypeVideo, "mkv"}:      videoPlan,
	{ContentTypeAudio, "mp3"}:      mediaPlan,
	{ContentTypeAudio, "wav"}:      mediaPlan,
	{ContentTypeAudio, "m4a"}:      mediaPlan,
	{ContentTypeAudio, "ogg"}:      mediaPlan,
	{ContentTypeAudio, "flac"}:     mediaPlan,
	{ContentTypeRecording, "webm"}: mediaPlan,
	{ContentTypeRecording, "mp4"}:  mediaPlan,
	{ContentTypeDocument, "pdf"}:   pdfPlan,
	{ContentTypeDocument, "docx"}:  docxPlan,
	{ContentTypeText, "txt"}:       textPlan,
	{ContentTypeText, "md"}:        textPlan,
}

// PlanFor returns the main-chain stage list for a content/file type pair.
func PlanFor(contentType ContentType, fileType string) (Plan, error) {
	p, ok := plans[planKey{contentType, fileType}]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %s/%s", ErrUnsupportedFormat, contentType, fileType)
	}
	return p, nil
}

// HasFrames reports whether the content type forks the frame sub-pipeline.
func HasFrames(contentType ContentType) bool {
	return contentType == ContentTypeVideo
}

// PlanForJob resolves the plan a job belongs to for the given record.
func PlanForJob(job *Job, c *Content) (Plan, error) {
	switch job.Chain {
	case ChainFrames:
		return FramesPlan, nil
	case ChainMain:
		return PlanFor(c.ContentType, c.FileType)
	}
	return Plan{Chain: job.Chain}, nil
}

// StalledStages returns, per chain, the job to run again for a record whose
// chain stopped without reaching its end: the last job completed but no
// successor was enqueued, as happens when a stage is skipped or its status
// write is dropped while the record is deleted. Chains with an active job
// are left alone, and failed chains are resumed through Retry instead.
func StalledStages(c *Content, jobs []*Job) []*Job {
	last := map[Chain]*Job{}
	active := map[Chain]bool{}
	for _, j := range jobs {
		if j.Status == JobStatusPending || j.Status == JobStatusProcessing {
			active[j.Chain] = true
		}
		if prev, ok := last[j.Chain]; !ok || j.ID > prev.ID {
			last[j.Chain] = j
		}
	}

	var out []*Job
	if j := last[ChainMain]; j != nil && !active[ChainMain] &&
		!c.IsTerminal() && j.Status == JobStatusCompleted {
		out = append(out, j)
	}
	if j := last[ChainFrames]; j != nil && !active[ChainFrames] &&
		c.Status != StatusError && j.Status == JobStatusCompleted {
		if _, more := FramesPlan.Next(j.Type); more {
			out = append(out, j)
		}
	}
	return out
}
