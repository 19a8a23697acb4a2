package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/SAP-F-2025/attempt-engine/internal/errors"
	"github.com/SAP-F-2025/attempt-engine/internal/models"
	"github.com/SAP-F-2025/attempt-engine/internal/utils"
)

// TextExtractor is the remote OCR backend.
type TextExtractor interface {
	ExtractText(ctx context.Context, file *models.ImageFile) (string, error)
}

// Uploader produces an opaque id for an image. The default implementation
// simulates the transfer with a fixed short delay.
type Uploader interface {
	Upload(ctx context.Context, file *models.ImageFile) (string, error)
}

type simulatedUploader struct {
	delay time.Duration
}

func (u *simulatedUploader) Upload(ctx context.Context, _ *models.ImageFile) (string, error) {
	select {
	case <-time.After(u.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return uuid.NewString(), nil
}

// DefaultImageMIMEs are the image types accepted for OCR.
var DefaultImageMIMEs = []string{"image/jpeg", "image/png", "image/webp"}

type OCRConfig struct {
	MaxSizeBytes   int64
	AllowedMIMEs   []string
	UploadDelay    time.Duration
	ExtractTimeout time.Duration
}

// OCRPipeline runs validate -> upload -> extract for one image, strictly
// in order, one stage at a time.
type OCRPipeline struct {
	extractor TextExtractor
	uploader  Uploader
	cfg       OCRConfig
	logger    utils.Logger
}

func NewOCRPipeline(extractor TextExtractor, cfg OCRConfig, logger utils.Logger) *OCRPipeline {
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = DefaultImageMIMEs
	}
	return &OCRPipeline{
		extractor: extractor,
		uploader:  &simulatedUploader{delay: cfg.UploadDelay},
		cfg:       cfg,
		logger:    logger,
	}
}

// WithUploader swaps the upload stage implementation.
func (p *OCRPipeline) WithUploader(u Uploader) *OCRPipeline {
	p.uploader = u
	return p
}

// Process runs the full pipeline for a fresh image. Validation failures
// fail fast and never reach the upload stage.
func (p *OCRPipeline) Process(ctx context.Context, job *Job, file *models.ImageFile) error {
	if job.Stage != StageIdle {
		return ErrJobNotIdle
	}

	job.Stage = StageValidating
	if err := p.validate(file); err != nil {
		job.fail(err)
		return err
	}
	job.Image = file

	job.Stage = StageUploading
	uploadID, err := p.uploader.Upload(ctx, file)
	if err != nil {
		perr := &PipelineError{Stage: StageUploading, Err: err}
		job.fail(perr)
		return perr
	}
	job.UploadID = uploadID

	return p.extract(ctx, job)
}

// Retry re-enters the pipeline at the extract stage only, reusing the
// already-uploaded image; it never re-validates or re-uploads.
func (p *OCRPipeline) Retry(ctx context.Context, job *Job) error {
	if job.Stage != StageError || job.UploadID == "" || job.Image == nil {
		return ErrNotRetryable
	}
	job.Err = ""
	return p.extract(ctx, job)
}

// Replace resets the job entirely so a different image restarts from
// validation.
func (p *OCRPipeline) Replace(job *Job) {
	p.logger.Debug("OCR job reset for replacement image", "job_id", job.ID, "question_id", job.QuestionID)
	job.Reset()
}

func (p *OCRPipeline) extract(ctx context.Context, job *Job) error {
	job.Stage = StageProcessing

	extractCtx := ctx
	if p.cfg.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithTimeout(ctx, p.cfg.ExtractTimeout)
		defer cancel()
	}

	text, err := p.extractor.ExtractText(extractCtx, job.Image)
	if err != nil {
		perr := &PipelineError{Stage: StageProcessing, Err: err}
		job.fail(perr)
		p.logger.Warn("Text extraction failed",
			"job_id", job.ID,
			"question_id", job.QuestionID,
			"upload_id", job.UploadID,
			"error", err)
		return perr
	}

	job.complete(text)
	p.logger.Info("Text extraction complete",
		"job_id", job.ID,
		"question_id", job.QuestionID,
		"chars", len(text))
	return nil
}

func (p *OCRPipeline) validate(file *models.ImageFile) error {
	var errs apperrors.ValidationErrors
	if file == nil || len(file.Data) == 0 {
		errs = append(errs, *apperrors.NewValidationError("image", "is required", nil))
		return errs
	}
	if !mimeAllowed(p.cfg.AllowedMIMEs, file.MIME) {
		errs = append(errs, *apperrors.NewValidationError("image", fmt.Sprintf("unsupported type %s", file.MIME), file.MIME))
	}
	if p.cfg.MaxSizeBytes > 0 && file.Size() > p.cfg.MaxSizeBytes {
		errs = append(errs, *apperrors.NewValidationError("image", fmt.Sprintf("exceeds %d byte limit", p.cfg.MaxSizeBytes), file.Size()))
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func mimeAllowed(allowed []string, mime string) bool {
	for _, m := range allowed {
		if m == mime {
			return true
		}
	}
	return false
}
