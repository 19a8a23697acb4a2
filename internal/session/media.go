package session

import (
	"context"

	"github.com/SAP-F-2025/attempt-engine/internal/events"
	"github.com/SAP-F-2025/attempt-engine/internal/media"
	"github.com/SAP-F-2025/attempt-engine/internal/models"
	"github.com/SAP-F-2025/attempt-engine/internal/pipeline"
)

// Media-backed open-ended answering: camera capture and OCR on the image
// path, microphone recording and ASR on the voice path. Both paths end
// the same way, with the pipeline's text landing in the answer buffer.

// CaptureImage acquires the camera, rasterizes one frame and releases
// the camera. The frame is not processed until SubmitImage.
func (c *Controller) CaptureImage(ctx context.Context, constraints media.Constraints) (*models.ImageFile, error) {
	if err := c.requireOpenEnded(models.InputModeImage); err != nil {
		return nil, err
	}

	stream, err := c.media.Acquire(ctx, media.KindCamera, constraints)
	if err != nil {
		return nil, err
	}
	frame, err := c.media.CaptureFrame(ctx, stream)
	if err != nil {
		c.media.Release(stream)
		return nil, err
	}
	return frame, nil
}

// SubmitImage runs the image through validate, upload and text
// extraction, then lands the result in the answer buffer.
func (c *Controller) SubmitImage(ctx context.Context, file *models.ImageFile) error {
	if err := c.requireOpenEnded(models.InputModeImage); err != nil {
		return err
	}

	c.mu.Lock()
	job := c.ocrJobs[c.index]
	index := c.index
	c.mu.Unlock()

	if err := c.ocr.Process(ctx, job, file); err != nil {
		c.publishPipelineFailure(ctx, job)
		return err
	}
	return c.completeTranscription(ctx, index, job)
}

// RetryOCR re-runs only the extraction stage of a failed image job.
func (c *Controller) RetryOCR(ctx context.Context) error {
	if err := c.requireOpenEnded(models.InputModeImage); err != nil {
		return err
	}

	c.mu.Lock()
	job := c.ocrJobs[c.index]
	index := c.index
	c.mu.Unlock()

	if err := c.ocr.Retry(ctx, job); err != nil {
		c.publishPipelineFailure(ctx, job)
		return err
	}
	return c.completeTranscription(ctx, index, job)
}

// ReplaceImage discards the current image job and processes a different
// image from scratch. The buffer keeps any edits the student made until
// the new extraction overwrites it.
func (c *Controller) ReplaceImage(ctx context.Context, file *models.ImageFile) error {
	if err := c.requireOpenEnded(models.InputModeImage); err != nil {
		return err
	}

	c.mu.Lock()
	job := c.ocrJobs[c.index]
	index := c.index
	c.mu.Unlock()

	c.ocr.Replace(job)
	if err := c.guard(func() error { return c.store.ClearTranscript(index, true) }); err != nil {
		return err
	}

	if err := c.ocr.Process(ctx, job, file); err != nil {
		c.publishPipelineFailure(ctx, job)
		return err
	}
	return c.completeTranscription(ctx, index, job)
}

// StartVoiceRecording acquires the microphone and begins chunked
// capture for the current question.
func (c *Controller) StartVoiceRecording(ctx context.Context, constraints media.Constraints) error {
	if err := c.requireOpenEnded(models.InputModeVoice); err != nil {
		return err
	}

	c.mu.Lock()
	if c.recorder != nil {
		c.mu.Unlock()
		return media.ErrDeviceBusy
	}
	job := c.asrJobs[c.index]
	c.mu.Unlock()

	recorder, err := c.asr.StartRecording(ctx, job, constraints)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.recorder = recorder
	c.mu.Unlock()
	return nil
}

// StopVoiceRecording ends the recording and transcribes it. A recording
// that captured nothing aborts with a validation error and releases the
// microphone without transcribing.
func (c *Controller) StopVoiceRecording(ctx context.Context) error {
	if err := c.requireOpenEnded(models.InputModeVoice); err != nil {
		return err
	}

	c.mu.Lock()
	recorder := c.recorder
	job := c.asrJobs[c.index]
	index := c.index
	c.recorder = nil
	c.mu.Unlock()

	if recorder == nil {
		return ErrNoActiveRecording
	}

	if err := c.asr.StopAndTranscribe(ctx, job, recorder); err != nil {
		c.publishPipelineFailure(ctx, job)
		return err
	}
	return c.completeTranscription(ctx, index, job)
}

// RetryASR re-runs only the transcription stage of a failed voice job,
// reusing the captured audio.
func (c *Controller) RetryASR(ctx context.Context) error {
	if err := c.requireOpenEnded(models.InputModeVoice); err != nil {
		return err
	}

	c.mu.Lock()
	job := c.asrJobs[c.index]
	index := c.index
	c.mu.Unlock()

	if err := c.asr.Retry(ctx, job); err != nil {
		c.publishPipelineFailure(ctx, job)
		return err
	}
	return c.completeTranscription(ctx, index, job)
}

// DiscardRecording drops the recording and any transcript it produced,
// returning the question to its pre-recording state.
func (c *Controller) DiscardRecording() error {
	if err := c.requireOpenEnded(models.InputModeVoice); err != nil {
		return err
	}

	c.mu.Lock()
	recorder := c.recorder
	job := c.asrJobs[c.index]
	index := c.index
	c.recorder = nil
	c.mu.Unlock()

	c.asr.Discard(job, recorder)
	return c.guard(func() error { return c.store.ClearTranscript(index, false) })
}

// OCRJob exposes the current question's image job for display.
func (c *Controller) OCRJob() *pipeline.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ocrJobs == nil {
		return nil
	}
	return c.ocrJobs[c.index]
}

// ASRJob exposes the current question's voice job for display.
func (c *Controller) ASRJob() *pipeline.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.asrJobs == nil {
		return nil
	}
	return c.asrJobs[c.index]
}

// completeTranscription lands pipeline output in the answer buffer and
// announces the completion.
func (c *Controller) completeTranscription(ctx context.Context, index int, job *pipeline.Job) error {
	if err := c.guard(func() error { return c.store.ApplyTranscript(index, job.Text) }); err != nil {
		return err
	}
	c.publish(ctx, events.NewSessionEvent(events.EventPipelineCompleted, events.PipelineCompletedEvent{
		QuestionID: job.QuestionID,
		Modality:   string(job.Modality),
		TextChars:  len(job.Text),
	}))
	return nil
}

func (c *Controller) publishPipelineFailure(ctx context.Context, job *pipeline.Job) {
	c.publish(ctx, events.NewSessionEvent(events.EventPipelineFailed, events.PipelineFailedEvent{
		QuestionID: job.QuestionID,
		Modality:   string(job.Modality),
		Stage:      string(job.Stage),
		Error:      job.Err,
	}))
}

// requireOpenEnded checks liveness, that the current question is
// open-ended, and that its input mode matches the requested path.
func (c *Controller) requireOpenEnded(mode models.InputMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return err
	}
	a, err := c.store.Answer(c.index)
	if err != nil {
		return err
	}
	oa, ok := a.(*models.OpenEndedAnswer)
	if !ok {
		return ErrWrongQuestionType
	}
	if oa.Mode != mode {
		return ErrWrongQuestionType
	}
	return nil
}
