package pipeline

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/SAP-F-2025/attempt-engine/internal/errors"
	"github.com/SAP-F-2025/attempt-engine/internal/media"
	"github.com/SAP-F-2025/attempt-engine/internal/models"
	"github.com/SAP-F-2025/attempt-engine/internal/utils"
)

// Transcriber is the remote ASR backend.
type Transcriber interface {
	Transcribe(ctx context.Context, blob *models.AudioBlob) (string, error)
}

type ASRConfig struct {
	TranscribeTimeout time.Duration
}

// ASRPipeline runs record -> validate -> transcribe for one recording.
type ASRPipeline struct {
	transcriber Transcriber
	media       *media.Manager
	cfg         ASRConfig
	logger      utils.Logger
}

func NewASRPipeline(transcriber Transcriber, manager *media.Manager, cfg ASRConfig, logger utils.Logger) *ASRPipeline {
	return &ASRPipeline{
		transcriber: transcriber,
		media:       manager,
		cfg:         cfg,
		logger:      logger,
	}
}

// StartRecording acquires the microphone for the job's question and
// begins chunked capture.
func (p *ASRPipeline) StartRecording(ctx context.Context, job *Job, c media.Constraints) (*media.Recorder, error) {
	if job.Stage != StageIdle {
		return nil, ErrJobNotIdle
	}

	recorder, err := p.media.StartRecording(ctx, c)
	if err != nil {
		return nil, err
	}

	job.Stage = StageRecording
	p.logger.Debug("Recording started for question",
		"job_id", job.ID,
		"question_id", job.QuestionID,
		"encoding", recorder.Encoding())
	return recorder, nil
}

// StopAndTranscribe ends the recording, flushes the chunks and sends the
// blob for transcription. A recording with zero chunks aborts with a
// user-facing error; the microphone is released without transcribing.
func (p *ASRPipeline) StopAndTranscribe(ctx context.Context, job *Job, recorder *media.Recorder) error {
	if job.Stage != StageRecording {
		return ErrJobNotIdle
	}

	blob, err := recorder.Stop()
	if err != nil {
		if errors.Is(err, media.ErrNoAudioCaptured) {
			var errs apperrors.ValidationErrors
			errs = append(errs, *apperrors.NewValidationError("recording", "captured no audio", nil))
			job.fail(errs)
			return errs
		}
		perr := &PipelineError{Stage: StageRecording, Err: err}
		job.fail(perr)
		return perr
	}

	job.Stage = StageValidating
	job.Audio = blob

	return p.transcribe(ctx, job)
}

// Retry re-enters the pipeline at the transcribe stage only, reusing the
// already-captured blob.
func (p *ASRPipeline) Retry(ctx context.Context, job *Job) error {
	if job.Stage != StageError || job.Audio == nil {
		return ErrNotRetryable
	}
	job.Err = ""
	return p.transcribe(ctx, job)
}

// Discard drops the current recording and job state entirely, returning
// the question to its pre-recording state.
func (p *ASRPipeline) Discard(job *Job, recorder *media.Recorder) {
	if recorder != nil {
		recorder.Discard()
	}
	p.logger.Debug("ASR job discarded", "job_id", job.ID, "question_id", job.QuestionID)
	job.Reset()
}

func (p *ASRPipeline) transcribe(ctx context.Context, job *Job) error {
	job.Stage = StageProcessing

	transcribeCtx := ctx
	if p.cfg.TranscribeTimeout > 0 {
		var cancel context.CancelFunc
		transcribeCtx, cancel = context.WithTimeout(ctx, p.cfg.TranscribeTimeout)
		defer cancel()
	}

	text, err := p.transcriber.Transcribe(transcribeCtx, job.Audio)
	if err != nil {
		perr := &PipelineError{Stage: StageProcessing, Err: err}
		job.fail(perr)
		p.logger.Warn("Transcription failed",
			"job_id", job.ID,
			"question_id", job.QuestionID,
			"error", err)
		return perr
	}

	job.complete(text)
	p.logger.Info("Transcription complete",
		"job_id", job.ID,
		"question_id", job.QuestionID,
		"chars", len(text))
	return nil
}
