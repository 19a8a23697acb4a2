package pipeline

import (
	"github.com/google/uuid"

	"github.com/SAP-F-2025/attempt-engine/internal/models"
)

// Stage tracks each pipeline stage for a single transcription job.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageRecording  Stage = "recording"
	StageValidating Stage = "validating"
	StageUploading  Stage = "uploading"
	StageProcessing Stage = "processing"
	StageComplete   Stage = "complete"
	StageError      Stage = "error"
)

type Modality string

const (
	ModalityImage Modality = "image"
	ModalityVoice Modality = "voice"
)

// Job is one media-to-text conversion for one question and modality.
// Stages advance strictly sequentially; a new stage never begins before
// the prior one resolves. Err and Completed are mutually exclusive for a
// given run; retry clears Err and re-enters processing.
type Job struct {
	ID         string   `json:"id"`
	QuestionID uint     `json:"question_id"`
	Modality   Modality `json:"modality"`
	Stage      Stage    `json:"stage"`

	Text string `json:"text"`
	Err  string `json:"error,omitempty"`

	// Completed is distinct from "has text": a job can complete with an
	// empty extraction result.
	Completed bool `json:"completed"`

	// UploadID is the opaque id from the upload stage; retry reuses it
	// instead of uploading again.
	UploadID string `json:"upload_id,omitempty"`

	Image *models.ImageFile `json:"-"`
	Audio *models.AudioBlob `json:"-"`
}

func NewJob(questionID uint, modality Modality) *Job {
	return &Job{
		ID:         uuid.NewString(),
		QuestionID: questionID,
		Modality:   modality,
		Stage:      StageIdle,
	}
}

// Reset returns the job to its pre-capture state, dropping source media,
// upload id and any prior outcome.
func (j *Job) Reset() {
	j.Stage = StageIdle
	j.Text = ""
	j.Err = ""
	j.Completed = false
	j.UploadID = ""
	j.Image = nil
	j.Audio = nil
}

func (j *Job) fail(err error) {
	j.Stage = StageError
	j.Err = err.Error()
	j.Completed = false
}

func (j *Job) complete(text string) {
	j.Stage = StageComplete
	j.Text = text
	j.Err = ""
	j.Completed = true
}
